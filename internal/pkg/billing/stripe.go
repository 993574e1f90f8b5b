package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// Price lookup keys configured per tier and interval in STRIPE_PRICE_* vars.
var intervalSuffix = map[string]string{
	"month": "MONTHLY",
	"year":  "YEARLY",
}

type StripeClient struct {
	SecretKey  string
	APIBaseURL string
	PublicURL  string

	HTTPClient *http.Client
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type PortalSession struct {
	URL string `json:"url"`
}

func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		PublicURL:  strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreateCheckoutSession starts a subscription checkout for an organization.
// The organization uuid and tier travel in the session metadata so the
// webhook reconciler can resolve the tenant when checkout completes.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, org *models.Organization, tier, interval string) (*CheckoutSession, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	if !IsKnownTier(tier) {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
	suffix, ok := intervalSuffix[strings.ToLower(strings.TrimSpace(interval))]
	if !ok {
		return nil, fmt.Errorf("unknown billing interval %q", interval)
	}

	priceVar := fmt.Sprintf("STRIPE_PRICE_%s_%s", strings.ToUpper(normalizeTier(tier)), suffix)
	priceID := strings.TrimSpace(env.GetEnv(priceVar, ""))
	if priceID == "" {
		return nil, fmt.Errorf("%s is not configured", priceVar)
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", c.PublicURL+"/billing?checkout=success")
	form.Set("cancel_url", c.PublicURL+"/billing?checkout=cancelled")
	form.Set("metadata[organization_id]", org.UUID)
	form.Set("metadata[tier]", normalizeTier(tier))
	form.Set("subscription_data[metadata][organization_id]", org.UUID)
	if org.StripeCustomerID != "" {
		form.Set("customer", org.StripeCustomerID)
	}

	var session CheckoutSession
	if err := c.postForm(ctx, "/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, errors.New("checkout session response missing url")
	}
	return &session, nil
}

// CancelSubscription cancels the subscription at the processor. The local
// state change arrives via the customer.subscription.deleted webhook, but
// callers may also apply it eagerly.
func (c *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("STRIPE_SECRET_KEY is not configured")
	}
	if strings.TrimSpace(subscriptionID) == "" {
		return errors.New("subscription id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.APIBaseURL+"/subscriptions/"+url.PathEscape(subscriptionID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe subscription cancel failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}

// CreatePortalSession opens the processor-hosted billing portal for invoice
// and payment-method management.
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID string) (*PortalSession, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}

	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", c.PublicURL+"/billing")

	var session PortalSession
	if err := c.postForm(ctx, "/billing_portal/sessions", form, &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, errors.New("portal session response missing url")
	}
	return &session, nil
}

func (c *StripeClient) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

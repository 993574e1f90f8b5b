package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/internal/pkg/billing"
)

const testWebhookSecret = "whsec_controller_test"

// memoryBillingRepo is an in-memory billing.Repository for webhook pipeline
// tests.
type memoryBillingRepo struct {
	orgs    []*models.Organization
	history []models.SubscriptionHistoryEntry
	invoice []models.Invoice
	events  []models.BillingWebhookEvent
}

func (r *memoryBillingRepo) GetOrganizationByExternalID(externalID string) (*models.Organization, error) {
	for _, o := range r.orgs {
		if o.UUID == externalID {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryBillingRepo) GetOrganizationByStripeCustomerID(customerID string) (*models.Organization, error) {
	for _, o := range r.orgs {
		if o.StripeCustomerID == customerID && customerID != "" {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryBillingRepo) GetOrganizationByStripeSubscriptionID(subscriptionID string) (*models.Organization, error) {
	for _, o := range r.orgs {
		if o.StripeSubscriptionID == subscriptionID && subscriptionID != "" {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryBillingRepo) ApplyOutcome(org *models.Organization, out billing.Outcome, changedBy *uint, invoiceNumber string) error {
	if !out.Changed {
		return nil
	}
	org.SubscriptionTier = out.State.Tier
	org.SubscriptionStatus = out.State.Status
	org.StripeCustomerID = out.State.StripeCustomerID
	org.StripeSubscriptionID = out.State.StripeSubscriptionID
	org.SubscriptionExpiresAt = out.State.SubscriptionExpiresAt
	if out.History != nil {
		r.history = append(r.history, models.SubscriptionHistoryEntry{
			OrganizationID: org.ID,
			FromTier:       out.History.FromTier,
			ToTier:         out.History.ToTier,
			FromStatus:     out.History.FromStatus,
			ToStatus:       out.History.ToStatus,
			ChangeType:     out.History.ChangeType,
			ChangedBy:      changedBy,
			EffectiveDate:  out.History.EffectiveDate,
		})
	}
	if out.Invoice != nil {
		r.invoice = append(r.invoice, models.Invoice{
			Number:            invoiceNumber,
			OrganizationID:    org.ID,
			ExternalInvoiceID: out.Invoice.ExternalInvoiceID,
			Amount:            out.Invoice.Amount,
			Currency:          out.Invoice.Currency,
			Status:            models.InvoiceStatusPaid,
		})
	}
	return nil
}

func (r *memoryBillingRepo) HasInvoiceForExternalID(externalInvoiceID string) (bool, error) {
	for _, inv := range r.invoice {
		if inv.ExternalInvoiceID == externalInvoiceID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryBillingRepo) ListHistoryByOrganization(orgID uint, limit int) ([]models.SubscriptionHistoryEntry, error) {
	return r.history, nil
}

func (r *memoryBillingRepo) ListInvoicesByOrganization(orgID uint, limit int) ([]models.Invoice, error) {
	return r.invoice, nil
}

func (r *memoryBillingRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	for i := range r.events {
		if r.events[i].Provider == event.Provider && r.events[i].ProviderEventID == event.ProviderEventID {
			return false, &r.events[i], nil
		}
	}
	event.ID = uint(len(r.events) + 1)
	r.events = append(r.events, *event)
	return true, event, nil
}

func (r *memoryBillingRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for i := range r.events {
		if r.events[i].ID == id {
			now := time.Now()
			r.events[i].ProcessedAt = &now
			r.events[i].ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryBillingRepo) ListWebhookEvents(offset, limit int) ([]models.BillingWebhookEvent, error) {
	return r.events, nil
}

type staticNumbers struct{ n int64 }

func (s *staticNumbers) Next(_ context.Context, year int) (int64, error) {
	s.n++
	return s.n, nil
}

func newWebhookTestApp(t *testing.T, repo *memoryBillingRepo) *fiber.App {
	t.Helper()
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)

	InitializeBillingController(billing.NewService(repo, &staticNumbers{}))
	t.Cleanup(func() { InitializeBillingController(nil) })

	prevNotifier := billingNotifier
	billingNotifier = func(billing.Event, *billing.ApplyResult) {}
	t.Cleanup(func() { billingNotifier = prevNotifier })

	app := fiber.New()
	app.Post("/webhooks/stripe", HandleStripeWebhook)
	return app
}

func signWebhookPayload(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, signature string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("stripe-signature", signature)
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

func checkoutPayload(eventID, orgUUID, tier string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {"object": {
			"customer": "cus_123",
			"subscription": "sub_123",
			"metadata": {"organization_id": %q, "tier": %q}
		}}
	}`, eventID, orgUUID, tier))
}

func TestHandleStripeWebhook_MissingSecret(t *testing.T) {
	repo := &memoryBillingRepo{}
	app := newWebhookTestApp(t, repo)
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	status, body := postWebhook(t, app, []byte(`{}`), "t=1,v1=abcd")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "not_configured", body["error"])
}

func TestHandleStripeWebhook_InvalidSignature(t *testing.T) {
	repo := &memoryBillingRepo{}
	app := newWebhookTestApp(t, repo)

	payload := checkoutPayload("evt_1", "org-uuid", "professional")

	status, body := postWebhook(t, app, payload, "t=123,v1=deadbeef")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_signature", body["error"])

	status, _ = postWebhook(t, app, payload, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	// No event may be recorded for a rejected delivery
	assert.Empty(t, repo.events)
}

func TestHandleStripeWebhook_MalformedPayload(t *testing.T) {
	repo := &memoryBillingRepo{}
	app := newWebhookTestApp(t, repo)

	payload := []byte(`{"id": "evt_2", "type": ""}`)
	sig := signWebhookPayload(payload, testWebhookSecret, time.Now().Unix())

	status, body := postWebhook(t, app, payload, sig)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_payload", body["error"])
}

func TestHandleStripeWebhook_CheckoutCompleted(t *testing.T) {
	org := &models.Organization{
		ID:                 1,
		UUID:               "7f9c0b1e-26c7-4b6e-9f60-9a1a3e2d4c5b",
		Name:               "Acme Sustainability",
		SubscriptionTier:   models.TierStarter,
		SubscriptionStatus: models.SubscriptionStatusTrialing,
	}
	repo := &memoryBillingRepo{orgs: []*models.Organization{org}}
	app := newWebhookTestApp(t, repo)

	payload := checkoutPayload("evt_checkout_1", org.UUID, "professional")
	sig := signWebhookPayload(payload, testWebhookSecret, time.Now().Unix())

	status, body := postWebhook(t, app, payload, sig)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])

	assert.Equal(t, models.TierProfessional, org.SubscriptionTier)
	assert.Equal(t, models.SubscriptionStatusActive, org.SubscriptionStatus)
	assert.Equal(t, "cus_123", org.StripeCustomerID)
	assert.Equal(t, "sub_123", org.StripeSubscriptionID)

	require.Len(t, repo.history, 1)
	assert.Equal(t, models.ChangeTypeCreate, repo.history[0].ChangeType)
	assert.Nil(t, repo.history[0].ChangedBy)

	require.Len(t, repo.events, 1)
	assert.NotNil(t, repo.events[0].ProcessedAt)
	assert.Empty(t, repo.events[0].ProcessingError)
}

func TestHandleStripeWebhook_DuplicateDelivery(t *testing.T) {
	org := &models.Organization{
		ID:                 1,
		UUID:               "a2e56c7b-4417-40fc-a9a3-b43e0e4d5f66",
		Name:               "Acme Sustainability",
		SubscriptionTier:   models.TierStarter,
		SubscriptionStatus: models.SubscriptionStatusTrialing,
	}
	repo := &memoryBillingRepo{orgs: []*models.Organization{org}}
	app := newWebhookTestApp(t, repo)

	payload := checkoutPayload("evt_dup_1", org.UUID, "professional")
	sig := signWebhookPayload(payload, testWebhookSecret, time.Now().Unix())

	status, _ := postWebhook(t, app, payload, sig)
	require.Equal(t, fiber.StatusOK, status)

	status, body := postWebhook(t, app, payload, sig)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])

	// Redelivery must not duplicate side effects
	assert.Len(t, repo.history, 1)
	assert.Len(t, repo.events, 1)
}

func TestHandleStripeWebhook_UnknownEventTypeAcknowledged(t *testing.T) {
	repo := &memoryBillingRepo{}
	app := newWebhookTestApp(t, repo)

	payload := []byte(`{"id": "evt_unknown", "type": "customer.created", "data": {"object": {}}}`)
	sig := signWebhookPayload(payload, testWebhookSecret, time.Now().Unix())

	status, body := postWebhook(t, app, payload, sig)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["ignored"])

	require.Len(t, repo.events, 1)
	assert.NotNil(t, repo.events[0].ProcessedAt)
}

func TestHandleStripeWebhook_UnknownOrganization(t *testing.T) {
	repo := &memoryBillingRepo{}
	app := newWebhookTestApp(t, repo)

	payload := checkoutPayload("evt_no_org", "00000000-0000-0000-0000-000000000000", "professional")
	sig := signWebhookPayload(payload, testWebhookSecret, time.Now().Unix())

	status, body := postWebhook(t, app, payload, sig)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "account_not_found", body["error"])

	// The delivery is recorded with its processing error for debugging
	require.Len(t, repo.events, 1)
	assert.NotEmpty(t, repo.events[0].ProcessingError)
}

func TestHandleStripeWebhook_RetryAfterAccountNotFound(t *testing.T) {
	repo := &memoryBillingRepo{}
	app := newWebhookTestApp(t, repo)

	orgUUID := "c4d8f3a1-5b2e-4c7d-9e0f-1a2b3c4d5e6f"
	payload := checkoutPayload("evt_retry_1", orgUUID, "professional")
	sig := signWebhookPayload(payload, testWebhookSecret, time.Now().Unix())

	// First delivery arrives before the organization row exists.
	status, _ := postWebhook(t, app, payload, sig)
	require.Equal(t, fiber.StatusNotFound, status)
	require.Len(t, repo.events, 1)
	assert.NotEmpty(t, repo.events[0].ProcessingError)

	// Stripe re-delivers once the organization has been created. The failed
	// first attempt must not be treated as an absorbed duplicate.
	org := &models.Organization{
		ID:                 3,
		UUID:               orgUUID,
		Name:               "Acme Sustainability",
		SubscriptionTier:   models.TierStarter,
		SubscriptionStatus: models.SubscriptionStatusTrialing,
	}
	repo.orgs = append(repo.orgs, org)

	status, body := postWebhook(t, app, payload, sig)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	assert.Nil(t, body["duplicate"])

	assert.Equal(t, models.TierProfessional, org.SubscriptionTier)
	assert.Equal(t, models.SubscriptionStatusActive, org.SubscriptionStatus)
	require.Len(t, repo.history, 1)

	require.Len(t, repo.events, 1)
	assert.NotNil(t, repo.events[0].ProcessedAt)
	assert.Empty(t, repo.events[0].ProcessingError)

	// A third delivery after success is a plain duplicate.
	status, body = postWebhook(t, app, payload, sig)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])
	assert.Len(t, repo.history, 1)
}

func TestBillingNoticeFor(t *testing.T) {
	notice, ok := billingNoticeFor(billing.InvoicePaymentFailed{}, "Acme")
	require.True(t, ok)
	assert.Equal(t, "payment_failed", notice.MailTemplate)
	assert.Contains(t, notice.MailSubject, "Acme")
	assert.Contains(t, notice.Content, "past due")

	notice, ok = billingNoticeFor(billing.SubscriptionDeleted{}, "Acme")
	require.True(t, ok)
	assert.Equal(t, "subscription_cancelled", notice.MailTemplate)
	assert.Contains(t, notice.MailSubject, "Acme")

	_, ok = billingNoticeFor(billing.InvoicePaid{}, "Acme")
	assert.False(t, ok)
}

func TestHandleStripeWebhook_PaymentFailedMarksPastDue(t *testing.T) {
	org := &models.Organization{
		ID:                 2,
		UUID:               "b7a3e18d-93b8-4de2-8f3c-2f8d9f0a1c2d",
		Name:               "Acme Sustainability",
		SubscriptionTier:   models.TierProfessional,
		SubscriptionStatus: models.SubscriptionStatusActive,
		StripeCustomerID:   "cus_pastdue",
	}
	repo := &memoryBillingRepo{orgs: []*models.Organization{org}}
	app := newWebhookTestApp(t, repo)

	payload := []byte(`{
		"id": "evt_fail_1",
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_9", "customer": "cus_pastdue", "amount_due": 4900, "currency": "eur"}}
	}`)
	sig := signWebhookPayload(payload, testWebhookSecret, time.Now().Unix())

	status, _ := postWebhook(t, app, payload, sig)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.SubscriptionStatusPastDue, org.SubscriptionStatus)
	// The tier is retained while past due
	assert.Equal(t, models.TierProfessional, org.SubscriptionTier)
}

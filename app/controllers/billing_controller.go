package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/app/repository"
	"github.com/greenfoldhq/greenfold/internal/pkg/billing"
	"github.com/greenfoldhq/greenfold/internal/pkg/database"
	"github.com/greenfoldhq/greenfold/internal/pkg/env"
	"github.com/greenfoldhq/greenfold/internal/pkg/jobqueue"
	"github.com/greenfoldhq/greenfold/internal/pkg/usercontext"
)

const stripeSignatureHeader = "stripe-signature"

var (
	billingService     *billing.Service
	billingServiceOnce sync.Once
)

// InitializeBillingController injects the billing service. Tests use this to
// run the webhook pipeline against an in-memory repository.
func InitializeBillingController(svc *billing.Service) {
	billingService = svc
}

func getBillingService() *billing.Service {
	billingServiceOnce.Do(func() {
		if billingService == nil {
			billingService = billing.NewServiceFromDB(database.GetDB())
		}
	})
	return billingService
}

type checkoutRequest struct {
	Tier     string `json:"tier"`
	Interval string `json:"interval"`
}

// HandleStripeWebhook receives Stripe webhook deliveries. The raw body is
// verified against the signature header before anything is parsed; invalid
// signatures are rejected with 400 so Stripe retries are not suppressed for
// transient verification setups. Events for organizations we do not know yet
// return 404 so Stripe re-delivers once the row exists.
func HandleStripeWebhook(c *fiber.Ctx) error {
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	if secret == "" {
		log.Error("stripe webhook received but STRIPE_WEBHOOK_SECRET is not configured")
		return jsonError(c, fiber.StatusInternalServerError, "not_configured", "Webhook secret is not configured")
	}

	payload := c.Body()
	signature := c.Get(stripeSignatureHeader)
	if !billing.VerifyStripeWebhookSignature(payload, signature, secret) {
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Webhook signature verification failed")
	}

	eventID, event, err := billing.ParseEvent(payload)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}

	svc := getBillingService()
	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	created, record, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: eventID,
		EventType:       billing.EventTypeOf(event),
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		log.Errorf("failed to record webhook event %s: %v", eventID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to record event")
	}
	if !created {
		// Only deliveries that fully succeeded are absorbed here. A prior
		// delivery that failed (for example the organization row did not
		// exist yet) must be retried, not acknowledged as duplicate.
		if record.Succeeded() {
			return c.JSON(fiber.Map{"received": true, "duplicate": true})
		}
		log.Infof("reprocessing webhook event %s after failed delivery", eventID)
	}

	if unknown, ok := event.(billing.UnknownEvent); ok {
		log.Infof("ignoring unhandled stripe event type %s (%s)", unknown.Type, eventID)
		if err := svc.MarkWebhookProcessed(ctx, record.ID, nil); err != nil {
			log.Warnf("failed to mark webhook event %d processed: %v", record.ID, err)
		}
		return c.JSON(fiber.Map{"received": true, "ignored": true})
	}

	result, err := svc.ApplyEvent(ctx, event, time.Now())
	if err != nil {
		if markErr := svc.MarkWebhookProcessed(ctx, record.ID, err); markErr != nil {
			log.Warnf("failed to mark webhook event %d processed: %v", record.ID, markErr)
		}
		if errors.Is(err, billing.ErrAccountNotFound) {
			return jsonError(c, fiber.StatusNotFound, "account_not_found", "No organization for this event")
		}
		log.Errorf("failed to apply stripe event %s: %v", eventID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to process event")
	}

	if err := svc.MarkWebhookProcessed(ctx, record.ID, nil); err != nil {
		log.Warnf("failed to mark webhook event %d processed: %v", record.ID, err)
	}

	if result.Changed {
		billingNotifier(event, result)
	}

	return c.JSON(fiber.Map{"received": true})
}

// billingNotifier is indirected so webhook tests can observe notifications
// without a database-backed member list.
var billingNotifier = notifyBillingChange

// billingNotice holds the in-app and mail wording for one billing event.
type billingNotice struct {
	Content      string
	MailSubject  string
	MailTemplate string
}

// billingNoticeFor maps a billing event to its member-facing notice. The
// second return is false for events that need no fan-out.
func billingNoticeFor(event billing.Event, orgName string) (billingNotice, bool) {
	switch event.(type) {
	case billing.InvoicePaymentFailed:
		return billingNotice{
			Content:      "A subscription payment failed. The subscription is past due until payment succeeds.",
			MailSubject:  fmt.Sprintf("Payment failed for %s", orgName),
			MailTemplate: "payment_failed",
		}, true
	case billing.SubscriptionDeleted:
		return billingNotice{
			Content:      "The subscription was cancelled. The organization falls back to the starter tier.",
			MailSubject:  fmt.Sprintf("Subscription cancelled for %s", orgName),
			MailTemplate: "subscription_cancelled",
		}, true
	default:
		return billingNotice{}, false
	}
}

// notifyBillingChange fans out billing notifications and mails to members who
// can manage billing. Failures only log; the webhook is already acknowledged.
func notifyBillingChange(event billing.Event, result *billing.ApplyResult) {
	notice, ok := billingNoticeFor(event, result.Organization.Name)
	if !ok {
		return
	}

	members, err := repository.GetGlobalFactory().GetOrganizationRepository().GetMembers(result.Organization.ID)
	if err != nil {
		log.Warnf("failed to load members for billing notification: %v", err)
		return
	}
	for _, m := range members {
		if !m.CanManageBilling() {
			continue
		}
		if err := jobqueue.EnqueueNotification(m.UserID, models.NotificationTypeBilling, notice.Content, result.Organization.ID); err != nil {
			log.Warnf("failed to enqueue billing notification for user %d: %v", m.UserID, err)
		}
		if m.User.Email == "" {
			continue
		}
		if err := jobqueue.EnqueueBillingMail(m.User.Email, m.User.Name, result.Organization.Name, notice.MailSubject, notice.MailTemplate); err != nil {
			log.Warnf("failed to enqueue billing mail for user %d: %v", m.UserID, err)
		}
	}
}

// HandleCreateCheckoutSession starts a Stripe Checkout session for a tier.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if !member.CanManageBilling() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only owners and admins may manage billing")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	tier := strings.ToLower(strings.TrimSpace(req.Tier))
	if !billing.IsKnownTier(tier) || tier == models.TierStarter {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Tier must be professional or enterprise")
	}
	interval := strings.ToLower(strings.TrimSpace(req.Interval))
	if interval == "" {
		interval = "monthly"
	}

	client := billing.NewStripeClientFromEnv()
	sessionObj, err := client.CreateCheckoutSession(c.UserContext(), org, tier, interval)
	if err != nil {
		log.Errorf("failed to create checkout session for organization %d: %v", org.ID, err)
		return jsonError(c, fiber.StatusBadGateway, "upstream_error", "Failed to create checkout session")
	}

	return c.JSON(fiber.Map{"checkout_url": sessionObj.URL, "session_id": sessionObj.ID})
}

// HandleCancelSubscription cancels at the payment provider and records the
// local cancellation with the acting user.
func HandleCancelSubscription(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if !member.CanManageBilling() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only owners and admins may manage billing")
	}
	if org.SubscriptionStatus == models.SubscriptionStatusCancelled {
		return jsonError(c, fiber.StatusConflict, "conflict", "Subscription is already cancelled")
	}

	if org.StripeSubscriptionID != "" {
		client := billing.NewStripeClientFromEnv()
		if err := client.CancelSubscription(c.UserContext(), org.StripeSubscriptionID); err != nil {
			log.Errorf("failed to cancel stripe subscription %s: %v", org.StripeSubscriptionID, err)
			return jsonError(c, fiber.StatusBadGateway, "upstream_error", "Failed to cancel subscription at the payment provider")
		}
	}

	userID := usercontext.GetUserID(c)
	if err := getBillingService().CancelSubscription(c.UserContext(), org, &userID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to record cancellation")
	}

	return c.JSON(fiber.Map{"cancelled": true, "organization": org})
}

// HandleBillingPortal creates a Stripe customer portal session.
func HandleBillingPortal(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if !member.CanManageBilling() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only owners and admins may manage billing")
	}
	if org.StripeCustomerID == "" {
		return jsonError(c, fiber.StatusConflict, "conflict", "Organization has no billing customer yet")
	}

	client := billing.NewStripeClientFromEnv()
	portal, err := client.CreatePortalSession(c.UserContext(), org.StripeCustomerID)
	if err != nil {
		log.Errorf("failed to create portal session for organization %d: %v", org.ID, err)
		return jsonError(c, fiber.StatusBadGateway, "upstream_error", "Failed to create portal session")
	}
	return c.JSON(fiber.Map{"portal_url": portal.URL})
}

// HandleBillingOverview returns current billing state, subscription history
// and invoices for an organization.
func HandleBillingOverview(c *fiber.Ctx) error {
	org, _, err := requireMembership(c)
	if err != nil {
		return err
	}

	history, invoices, err := getBillingService().Overview(c.UserContext(), org.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load billing overview")
	}

	expires := ""
	if org.SubscriptionExpiresAt != nil {
		expires = org.SubscriptionExpiresAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(fiber.Map{
		"subscription": fiber.Map{
			"tier":       org.SubscriptionTier,
			"status":     org.SubscriptionStatus,
			"expires_at": expires,
		},
		"history":  history,
		"invoices": invoices,
	})
}

// describeTierChange builds the admin audit string for an override.
func describeTierChange(from, to string) string {
	return fmt.Sprintf("Subscription tier changed from %s to %s.", from, to)
}

package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/internal/pkg/cache"
	"gorm.io/gorm"
)

// ErrAccountNotFound means the event references an organization this system
// does not know yet. The webhook sender retries later, so callers must
// surface this as a non-2xx response; the organization row may simply not
// have been created yet due to delivery ordering.
var ErrAccountNotFound = errors.New("no organization for billing event")

// Service applies verified payment-processor events to organization billing
// state. All state transitions run through the pure Reconcile functions; the
// service only adds lookup, idempotency and persistence.
type Service struct {
	repo    Repository
	numbers InvoiceNumberSource
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, numbers InvoiceNumberSource) *Service {
	return &Service{repo: repo, numbers: numbers}
}

// NewServiceFromDB creates a billing service from a GORM DB handle, using
// Redis for invoice number sequencing.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewRedisSequence(cache.GetClient()))
}

// ApplyResult reports what one event did to the system.
type ApplyResult struct {
	Organization *models.Organization
	Changed      bool
	Invoice      *models.Invoice
	PriorStatus  string
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool is false when the provider event id was seen before.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// ApplyEvent resolves the organization the event refers to, reconciles and
// persists. Unknown events must be filtered out by the caller beforehand.
func (s *Service) ApplyEvent(ctx context.Context, ev Event, now time.Time) (*ApplyResult, error) {
	org, err := s.lookup(ev)
	if err != nil {
		return nil, err
	}

	// A paid invoice we already recorded is a re-delivery; acknowledge
	// without creating a second Invoice/Payment pair.
	if paid, ok := ev.(InvoicePaid); ok && paid.ExternalInvoiceID != "" {
		exists, err := s.repo.HasInvoiceForExternalID(paid.ExternalInvoiceID)
		if err != nil {
			return nil, err
		}
		if exists {
			return &ApplyResult{Organization: org, Changed: false, PriorStatus: org.SubscriptionStatus}, nil
		}
	}

	prior := org.SubscriptionStatus
	out, err := Reconcile(StateOf(org), ev, now)
	if err != nil {
		return nil, err
	}

	invoiceNumber := ""
	if out.Invoice != nil {
		n, err := s.numbers.Next(ctx, now.Year())
		if err != nil {
			return nil, err
		}
		invoiceNumber = FormatInvoiceNumber(now.Year(), n)
	}

	if err := s.repo.ApplyOutcome(org, out, nil, invoiceNumber); err != nil {
		return nil, err
	}

	result := &ApplyResult{Organization: org, Changed: out.Changed, PriorStatus: prior}
	if out.Invoice != nil {
		invoices, err := s.repo.ListInvoicesByOrganization(org.ID, 1)
		if err == nil && len(invoices) > 0 {
			result.Invoice = &invoices[0]
		}
	}
	return result, nil
}

// ChangeTier applies an application-initiated tier change (admin override or
// self-service plan switch) with audit attribution.
func (s *Service) ChangeTier(ctx context.Context, org *models.Organization, tier string, changedBy *uint) error {
	_ = ctx
	out, err := ReconcileTierChange(StateOf(org), tier, time.Now())
	if err != nil {
		return err
	}
	return s.repo.ApplyOutcome(org, out, changedBy, "")
}

// CancelSubscription applies an application-initiated cancellation with
// audit attribution. The caller is responsible for telling the payment
// processor.
func (s *Service) CancelSubscription(ctx context.Context, org *models.Organization, changedBy *uint) error {
	_ = ctx
	out := ReconcileCancel(StateOf(org), time.Now())
	return s.repo.ApplyOutcome(org, out, changedBy, "")
}

// Overview returns the audit trail and invoices for the billing page.
func (s *Service) Overview(ctx context.Context, orgID uint) ([]models.SubscriptionHistoryEntry, []models.Invoice, error) {
	_ = ctx
	history, err := s.repo.ListHistoryByOrganization(orgID, 0)
	if err != nil {
		return nil, nil, err
	}
	invoices, err := s.repo.ListInvoicesByOrganization(orgID, 0)
	if err != nil {
		return nil, nil, err
	}
	return history, invoices, nil
}

// ListWebhookEvents exposes the raw delivery log for admin tooling.
func (s *Service) ListWebhookEvents(ctx context.Context, offset, limit int) ([]models.BillingWebhookEvent, error) {
	_ = ctx
	return s.repo.ListWebhookEvents(offset, limit)
}

func (s *Service) lookup(ev Event) (*models.Organization, error) {
	var (
		org *models.Organization
		err error
	)
	switch e := ev.(type) {
	case CheckoutSessionCompleted:
		org, err = s.repo.GetOrganizationByExternalID(e.OrganizationID)
	case SubscriptionUpdated:
		org, err = s.repo.GetOrganizationByStripeSubscriptionID(e.SubscriptionID)
	case SubscriptionDeleted:
		org, err = s.repo.GetOrganizationByStripeSubscriptionID(e.SubscriptionID)
	case InvoicePaid:
		org, err = s.repo.GetOrganizationByExternalID(e.OrganizationID)
	case InvoicePaymentFailed:
		org, err = s.repo.GetOrganizationByStripeCustomerID(e.CustomerID)
	default:
		return nil, ErrUnknownEvent
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return org, nil
}

// StateOf extracts the billing slice of an organization row.
func StateOf(org *models.Organization) BillingState {
	return BillingState{
		Tier:                  org.SubscriptionTier,
		Status:                org.SubscriptionStatus,
		StripeCustomerID:      org.StripeCustomerID,
		StripeSubscriptionID:  org.StripeSubscriptionID,
		SubscriptionExpiresAt: org.SubscriptionExpiresAt,
	}
}

package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRepository keeps everything in memory so service behavior is testable
// without a database.
type fakeRepository struct {
	orgs     map[uint]*models.Organization
	history  []models.SubscriptionHistoryEntry
	invoices []models.Invoice
	payments []models.Payment
	events   map[string]*models.BillingWebhookEvent
	nextID   uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		orgs:   make(map[uint]*models.Organization),
		events: make(map[string]*models.BillingWebhookEvent),
		nextID: 1,
	}
}

func (f *fakeRepository) addOrg(org models.Organization) *models.Organization {
	org.ID = f.nextID
	f.nextID++
	stored := org
	f.orgs[stored.ID] = &stored
	return &stored
}

func (f *fakeRepository) findOrg(match func(*models.Organization) bool) (*models.Organization, error) {
	for _, org := range f.orgs {
		if match(org) {
			return org, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetOrganizationByExternalID(externalID string) (*models.Organization, error) {
	return f.findOrg(func(o *models.Organization) bool { return o.UUID == externalID })
}

func (f *fakeRepository) GetOrganizationByStripeCustomerID(customerID string) (*models.Organization, error) {
	return f.findOrg(func(o *models.Organization) bool {
		return o.StripeCustomerID != "" && o.StripeCustomerID == customerID
	})
}

func (f *fakeRepository) GetOrganizationByStripeSubscriptionID(subscriptionID string) (*models.Organization, error) {
	return f.findOrg(func(o *models.Organization) bool {
		return o.StripeSubscriptionID != "" && o.StripeSubscriptionID == subscriptionID
	})
}

func (f *fakeRepository) ApplyOutcome(org *models.Organization, out Outcome, changedBy *uint, invoiceNumber string) error {
	if !out.Changed {
		return nil
	}
	stored := f.orgs[org.ID]
	stored.SubscriptionTier = out.State.Tier
	stored.SubscriptionStatus = out.State.Status
	stored.StripeCustomerID = out.State.StripeCustomerID
	stored.StripeSubscriptionID = out.State.StripeSubscriptionID
	stored.SubscriptionExpiresAt = out.State.SubscriptionExpiresAt
	*org = *stored

	if out.History != nil {
		f.history = append(f.history, models.SubscriptionHistoryEntry{
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
		paidAt := out.Invoice.PaidAt
		f.invoices = append(f.invoices, models.Invoice{
			ID:                uint(len(f.invoices) + 1),
			Number:            invoiceNumber,
			OrganizationID:    org.ID,
			ExternalInvoiceID: out.Invoice.ExternalInvoiceID,
			Amount:            out.Invoice.Amount,
			Currency:          out.Invoice.Currency,
			Status:            models.InvoiceStatusPaid,
			IssuedAt:          out.Invoice.IssuedAt,
			PaidAt:            &paidAt,
		})
	}
	if out.Payment != nil {
		f.payments = append(f.payments, models.Payment{
			OrganizationID:          org.ID,
			ExternalPaymentIntentID: out.Payment.ExternalPaymentIntentID,
			Amount:                  out.Payment.Amount,
			Currency:                out.Payment.Currency,
			Status:                  models.PaymentStatusSucceeded,
		})
	}
	return nil
}

func (f *fakeRepository) HasInvoiceForExternalID(externalInvoiceID string) (bool, error) {
	for _, inv := range f.invoices {
		if inv.ExternalInvoiceID == externalInvoiceID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) ListHistoryByOrganization(orgID uint, limit int) ([]models.SubscriptionHistoryEntry, error) {
	var out []models.SubscriptionHistoryEntry
	for _, e := range f.history {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListInvoicesByOrganization(orgID uint, limit int) ([]models.Invoice, error) {
	var out []models.Invoice
	for i := len(f.invoices) - 1; i >= 0; i-- {
		if f.invoices[i].OrganizationID == orgID {
			out = append(out, f.invoices[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		return false, existing, nil
	}
	event.ID = uint(len(f.events) + 1)
	f.events[key] = event
	return true, event, nil
}

func (f *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	for _, e := range f.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListWebhookEvents(offset, limit int) ([]models.BillingWebhookEvent, error) {
	var out []models.BillingWebhookEvent
	for _, e := range f.events {
		out = append(out, *e)
	}
	return out, nil
}

type fakeNumbers struct{ n int64 }

func (f *fakeNumbers) Next(ctx context.Context, year int) (int64, error) {
	f.n++
	return f.n, nil
}

func newTestService() (*Service, *fakeRepository) {
	repo := newFakeRepository()
	return NewService(repo, &fakeNumbers{}), repo
}

func trialOrg(repo *fakeRepository) *models.Organization {
	return repo.addOrg(models.Organization{
		UUID:               "org-uuid-1",
		Name:               "Acme Sustainability",
		SubscriptionTier:   models.TierStarter,
		SubscriptionStatus: models.SubscriptionStatusTrialing,
	})
}

func TestApplyEvent_Checkout(t *testing.T) {
	svc, repo := newTestService()
	org := trialOrg(repo)

	result, err := svc.ApplyEvent(context.Background(), CheckoutSessionCompleted{
		OrganizationID: org.UUID,
		Tier:           "professional",
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
	}, time.Now())
	require.NoError(t, err)
	assert.True(t, result.Changed)

	stored := repo.orgs[org.ID]
	assert.Equal(t, models.TierProfessional, stored.SubscriptionTier)
	assert.Equal(t, models.SubscriptionStatusActive, stored.SubscriptionStatus)
	assert.Equal(t, "sub_1", stored.StripeSubscriptionID)

	require.Len(t, repo.history, 1)
	assert.Equal(t, models.ChangeTypeCreate, repo.history[0].ChangeType)
	assert.Nil(t, repo.history[0].ChangedBy, "webhook changes are not attributed to a user")
}

func TestApplyEvent_AccountNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ApplyEvent(context.Background(), CheckoutSessionCompleted{
		OrganizationID: "no-such-org",
		Tier:           "starter",
	}, time.Now())
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.ApplyEvent(context.Background(), SubscriptionDeleted{SubscriptionID: "sub_missing"}, time.Now())
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.ApplyEvent(context.Background(), InvoicePaymentFailed{CustomerID: "cus_missing"}, time.Now())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestApplyEvent_InvoicePaid(t *testing.T) {
	svc, repo := newTestService()
	org := trialOrg(repo)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := svc.ApplyEvent(context.Background(), InvoicePaid{
		OrganizationID:    org.UUID,
		ExternalInvoiceID: "in_789",
		PaymentIntentID:   "pi_555",
		AmountMinor:       1999,
		Currency:          "gbp",
	}, now)
	require.NoError(t, err)
	require.NotNil(t, result.Invoice)

	require.Len(t, repo.invoices, 1)
	inv := repo.invoices[0]
	assert.Equal(t, "INV-2026-000001", inv.Number)
	assert.InDelta(t, 19.99, inv.Amount, 1e-9)
	assert.Equal(t, "GBP", inv.Currency)
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)

	require.Len(t, repo.payments, 1)
	assert.Equal(t, models.PaymentStatusSucceeded, repo.payments[0].Status)

	// Billing state untouched by invoice events.
	assert.Equal(t, models.SubscriptionStatusTrialing, repo.orgs[org.ID].SubscriptionStatus)
}

func TestApplyEvent_InvoicePaidRedelivery(t *testing.T) {
	svc, repo := newTestService()
	org := trialOrg(repo)

	ev := InvoicePaid{
		OrganizationID:    org.UUID,
		ExternalInvoiceID: "in_789",
		AmountMinor:       1999,
		Currency:          "gbp",
	}
	_, err := svc.ApplyEvent(context.Background(), ev, time.Now())
	require.NoError(t, err)

	result, err := svc.ApplyEvent(context.Background(), ev, time.Now())
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Len(t, repo.invoices, 1, "re-delivery must not double-count the invoice")
	assert.Len(t, repo.payments, 1)
}

func TestApplyEvent_SubscriptionLifecycle(t *testing.T) {
	svc, repo := newTestService()
	org := trialOrg(repo)
	org.StripeSubscriptionID = "sub_1"
	org.StripeCustomerID = "cus_1"
	org.SubscriptionStatus = models.SubscriptionStatusActive

	// Payment failure marks past due via customer lookup.
	result, err := svc.ApplyEvent(context.Background(), InvoicePaymentFailed{CustomerID: "cus_1"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, result.PriorStatus)
	assert.Equal(t, models.SubscriptionStatusPastDue, repo.orgs[org.ID].SubscriptionStatus)

	// Recovery passes the processor status through.
	_, err = svc.ApplyEvent(context.Background(), SubscriptionUpdated{SubscriptionID: "sub_1", Status: "active"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, repo.orgs[org.ID].SubscriptionStatus)

	// Deletion cancels and stamps the expiry.
	before := time.Now()
	_, err = svc.ApplyEvent(context.Background(), SubscriptionDeleted{SubscriptionID: "sub_1"}, time.Now())
	require.NoError(t, err)
	stored := repo.orgs[org.ID]
	assert.Equal(t, models.SubscriptionStatusCancelled, stored.SubscriptionStatus)
	require.NotNil(t, stored.SubscriptionExpiresAt)
	assert.False(t, stored.SubscriptionExpiresAt.Before(before))

	// Re-delivery of the delete is a quiet no-op.
	result, err = svc.ApplyEvent(context.Background(), SubscriptionDeleted{SubscriptionID: "sub_1"}, time.Now())
	require.NoError(t, err)
	assert.False(t, result.Changed)
}

func TestRecordWebhookEvent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, stored, err := svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_1",
		EventType:       "invoice.paid",
		PayloadJSON:     "{}",
		SignatureValid:  true,
	})
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, stored)

	created, _, err = svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_1",
		EventType:       "invoice.paid",
		PayloadJSON:     "{}",
	})
	require.NoError(t, err)
	assert.False(t, created, "same event id must dedup")
}

func TestRecordWebhookEvent_HashFallback(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	created, stored, err := svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:    models.BillingProviderStripe,
		EventType:   "invoice.paid",
		PayloadJSON: `{"id":"x"}`,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, stored.ProviderEventID, "hash:")

	// Identical payload without an id still dedups.
	created, _, err = svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:    models.BillingProviderStripe,
		EventType:   "invoice.paid",
		PayloadJSON: `{"id":"x"}`,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, repo.events, 1)
}

func TestChangeTierAndCancelAttribution(t *testing.T) {
	svc, repo := newTestService()
	org := trialOrg(repo)
	adminID := uint(42)

	require.NoError(t, svc.ChangeTier(context.Background(), org, models.TierEnterprise, &adminID))
	require.Len(t, repo.history, 1)
	require.NotNil(t, repo.history[0].ChangedBy)
	assert.Equal(t, adminID, *repo.history[0].ChangedBy)

	require.NoError(t, svc.CancelSubscription(context.Background(), org, &adminID))
	require.Len(t, repo.history, 2)
	assert.Equal(t, models.ChangeTypeCancel, repo.history[1].ChangeType)
}

func TestMarkWebhookProcessed(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, stored, err := svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_9",
		EventType:       "checkout.session.completed",
		PayloadJSON:     "{}",
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("boom")))
	key := models.BillingProviderStripe + "/evt_9"
	assert.Equal(t, "boom", repo.events[key].ProcessingError)
	assert.NotNil(t, repo.events[key].ProcessedAt)
}

package billing

import (
	"time"

	"github.com/greenfoldhq/greenfold/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	GetOrganizationByExternalID(externalID string) (*models.Organization, error)
	GetOrganizationByStripeCustomerID(customerID string) (*models.Organization, error)
	GetOrganizationByStripeSubscriptionID(subscriptionID string) (*models.Organization, error)
	ApplyOutcome(org *models.Organization, out Outcome, changedBy *uint, invoiceNumber string) error
	HasInvoiceForExternalID(externalInvoiceID string) (bool, error)
	ListHistoryByOrganization(orgID uint, limit int) ([]models.SubscriptionHistoryEntry, error)
	ListInvoicesByOrganization(orgID uint, limit int) ([]models.Invoice, error)
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	ListWebhookEvents(offset, limit int) ([]models.BillingWebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrganizationByExternalID(externalID string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.Where("uuid = ?", externalID).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *gormRepository) GetOrganizationByStripeCustomerID(customerID string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.Where("stripe_customer_id = ? AND stripe_customer_id <> ''", customerID).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *gormRepository) GetOrganizationByStripeSubscriptionID(subscriptionID string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.Where("stripe_subscription_id = ? AND stripe_subscription_id <> ''", subscriptionID).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// ApplyOutcome persists a reconciliation outcome atomically: the billing
// columns, the audit entry and any financial records commit or roll back
// together.
func (r *gormRepository) ApplyOutcome(org *models.Organization, out Outcome, changedBy *uint, invoiceNumber string) error {
	if !out.Changed {
		return nil
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"subscription_tier":       out.State.Tier,
			"subscription_status":     out.State.Status,
			"stripe_customer_id":      out.State.StripeCustomerID,
			"stripe_subscription_id":  out.State.StripeSubscriptionID,
			"subscription_expires_at": out.State.SubscriptionExpiresAt,
		}
		if err := tx.Model(&models.Organization{}).Where("id = ?", org.ID).Updates(updates).Error; err != nil {
			return err
		}

		if out.History != nil {
			entry := models.SubscriptionHistoryEntry{
				OrganizationID: org.ID,
				FromTier:       out.History.FromTier,
				ToTier:         out.History.ToTier,
				FromStatus:     out.History.FromStatus,
				ToStatus:       out.History.ToStatus,
				ChangeType:     out.History.ChangeType,
				ChangedBy:      changedBy,
				EffectiveDate:  out.History.EffectiveDate,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		if out.Invoice != nil {
			invoice := models.Invoice{
				Number:            invoiceNumber,
				OrganizationID:    org.ID,
				ExternalInvoiceID: out.Invoice.ExternalInvoiceID,
				Amount:            out.Invoice.Amount,
				Currency:          out.Invoice.Currency,
				Status:            models.InvoiceStatusPaid,
				IssuedAt:          out.Invoice.IssuedAt,
				PaidAt:            &out.Invoice.PaidAt,
			}
			if err := tx.Create(&invoice).Error; err != nil {
				return err
			}
			if out.Payment != nil {
				payment := models.Payment{
					OrganizationID:          org.ID,
					InvoiceID:               invoice.ID,
					ExternalPaymentIntentID: out.Payment.ExternalPaymentIntentID,
					Amount:                  out.Payment.Amount,
					Currency:                out.Payment.Currency,
					Status:                  models.PaymentStatusSucceeded,
				}
				if err := tx.Create(&payment).Error; err != nil {
					return err
				}
			}
		}

		org.SubscriptionTier = out.State.Tier
		org.SubscriptionStatus = out.State.Status
		org.StripeCustomerID = out.State.StripeCustomerID
		org.StripeSubscriptionID = out.State.StripeSubscriptionID
		org.SubscriptionExpiresAt = out.State.SubscriptionExpiresAt
		return nil
	})
}

func (r *gormRepository) HasInvoiceForExternalID(externalInvoiceID string) (bool, error) {
	if externalInvoiceID == "" {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.Invoice{}).Where("external_invoice_id = ?", externalInvoiceID).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) ListHistoryByOrganization(orgID uint, limit int) ([]models.SubscriptionHistoryEntry, error) {
	var entries []models.SubscriptionHistoryEntry
	q := r.db.Where("organization_id = ?", orgID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

func (r *gormRepository) ListInvoicesByOrganization(orgID uint, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	q := r.db.Where("organization_id = ?", orgID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&invoices).Error
	return invoices, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) ListWebhookEvents(offset, limit int) ([]models.BillingWebhookEvent, error) {
	var events []models.BillingWebhookEvent
	if limit <= 0 {
		limit = 50
	}
	err := r.db.Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, err
}

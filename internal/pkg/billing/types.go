package billing

import "time"

// BillingState is the billing slice of an organization row, decoupled from
// persistence so the reconciler stays pure and unit-testable.
type BillingState struct {
	Tier                  string
	Status                string
	StripeCustomerID      string
	StripeSubscriptionID  string
	SubscriptionExpiresAt *time.Time
}

// HistoryChange is an audit-trail entry produced by a reconciliation.
type HistoryChange struct {
	FromTier      string
	ToTier        string
	FromStatus    string
	ToStatus      string
	ChangeType    string
	EffectiveDate time.Time
}

// InvoiceDraft is an invoice to be persisted as a side record. Amount is in
// major currency units.
type InvoiceDraft struct {
	ExternalInvoiceID string
	Amount            float64
	Currency          string
	IssuedAt          time.Time
	PaidAt            time.Time
}

// PaymentDraft is a payment to be persisted alongside its invoice.
type PaymentDraft struct {
	ExternalPaymentIntentID string
	Amount                  float64
	Currency                string
}

// Outcome is the full effect of applying one event to one organization.
// Changed is false for no-op re-applies (e.g. cancelling an already
// cancelled subscription).
type Outcome struct {
	State   BillingState
	Changed bool
	History *HistoryChange
	Invoice *InvoiceDraft
	Payment *PaymentDraft
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

package models

import "time"

const (
	InvoiceStatusSent = "sent"
	InvoiceStatusPaid = "paid"
)

const PaymentStatusSucceeded = "succeeded"

// Invoice is a financial record created when the payment processor reports a
// paid invoice. Amounts are stored in major currency units; the processor
// sends minor units. Immutable once created except for the sent -> paid
// status transition.
type Invoice struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	Number            string       `gorm:"type:varchar(40);uniqueIndex" json:"number"`
	OrganizationID    uint         `gorm:"not null;index" json:"organization_id"`
	Organization      Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	ExternalInvoiceID string       `gorm:"type:varchar(191);default:'';index" json:"external_invoice_id"`
	Amount            float64      `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency          string       `gorm:"type:varchar(3);not null" json:"currency"`
	Status            string       `gorm:"type:varchar(20);not null;default:'sent'" json:"status"`
	IssuedAt          time.Time    `gorm:"type:timestamp;not null" json:"issued_at"`
	PaidAt            *time.Time   `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// Payment records the settlement of an invoice.
type Payment struct {
	ID                      uint      `gorm:"primaryKey" json:"id"`
	OrganizationID          uint      `gorm:"not null;index" json:"organization_id"`
	InvoiceID               uint      `gorm:"not null;index" json:"invoice_id"`
	Invoice                 Invoice   `gorm:"foreignKey:InvoiceID" json:"-"`
	ExternalPaymentIntentID string    `gorm:"type:varchar(191);default:''" json:"external_payment_intent_id"`
	Amount                  float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency                string    `gorm:"type:varchar(3);not null" json:"currency"`
	Status                  string    `gorm:"type:varchar(20);not null;default:'succeeded'" json:"status"`
	CreatedAt               time.Time `gorm:"autoCreateTime" json:"created_at"`
}

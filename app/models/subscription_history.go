package models

import "time"

// Change types recorded in the subscription audit trail.
const (
	ChangeTypeCreate    = "create"
	ChangeTypeUpgrade   = "upgrade"
	ChangeTypeDowngrade = "downgrade"
	ChangeTypeCancel    = "cancel"
)

// SubscriptionHistoryEntry is an append-only audit record of a tier or status
// transition. Entries are never updated or deleted; replaying them in
// creation order reconstructs the organization's current billing state.
// ChangedBy is NULL for webhook-driven changes.
type SubscriptionHistoryEntry struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	OrganizationID uint         `gorm:"not null;index" json:"organization_id"`
	Organization   Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	FromTier       string       `gorm:"type:varchar(32);default:''" json:"from_tier"`
	ToTier         string       `gorm:"type:varchar(32);not null" json:"to_tier"`
	FromStatus     string       `gorm:"type:varchar(32);default:''" json:"from_status"`
	ToStatus       string       `gorm:"type:varchar(32);not null" json:"to_status"`
	ChangeType     string       `gorm:"type:varchar(20);not null;index" json:"change_type"`
	ChangedBy      *uint        `gorm:"default:null" json:"changed_by,omitempty"`
	EffectiveDate  time.Time    `gorm:"type:timestamp;not null" json:"effective_date"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Subscription tiers sold through checkout. An organization without a paid
// subscription stays on the starter tier in trialing status.
const (
	TierStarter      = "starter"
	TierProfessional = "professional"
	TierEnterprise   = "enterprise"
)

const (
	SubscriptionStatusTrialing  = "trialing"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPastDue   = "past_due"
	SubscriptionStatusCancelled = "cancelled"
)

// Organization is the tenant. Billing state lives directly on the tenant row
// and is mutated only by the webhook reconciler, the checkout flow and admin
// overrides.
type Organization struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	UUID                  string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	Name                  string         `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=2,max=200"`
	Slug                  string         `gorm:"type:varchar(200);uniqueIndex" json:"slug"`
	Industry              string         `gorm:"type:varchar(100);default:''" json:"industry"`
	SubscriptionTier      string         `gorm:"type:varchar(32);not null;default:'starter'" json:"subscription_tier" validate:"oneof=starter professional enterprise"`
	SubscriptionStatus    string         `gorm:"type:varchar(32);not null;default:'trialing';index" json:"subscription_status" validate:"oneof=trialing active past_due cancelled"`
	StripeCustomerID      string         `gorm:"type:varchar(191);default:'';index" json:"-"`
	StripeSubscriptionID  string         `gorm:"type:varchar(191);default:'';index" json:"-"`
	SubscriptionExpiresAt *time.Time     `gorm:"type:timestamp;default:null" json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

func (o *Organization) Validate() error {
	v := validator.New()
	return v.Struct(o)
}

// Membership roles within an organization.
const (
	OrgRoleOwner  = "owner"
	OrgRoleAdmin  = "admin"
	OrgRoleMember = "member"
	OrgRoleViewer = "viewer"
)

// OrganizationMember links users to organizations with a role.
type OrganizationMember struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	OrganizationID uint         `gorm:"not null;index:ux_org_members_org_user,unique,priority:1" json:"organization_id"`
	Organization   Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	UserID         uint         `gorm:"not null;index:ux_org_members_org_user,unique,priority:2" json:"user_id"`
	User           User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role           string       `gorm:"type:varchar(20);not null;default:'member'" json:"role" validate:"oneof=owner admin member viewer"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// CanManageBilling reports whether the role may start checkout or cancel the
// organization's subscription.
func (m *OrganizationMember) CanManageBilling() bool {
	return m.Role == OrgRoleOwner || m.Role == OrgRoleAdmin
}

// CanEditReports reports whether the role may create or modify reports.
func (m *OrganizationMember) CanEditReports() bool {
	switch m.Role {
	case OrgRoleOwner, OrgRoleAdmin, OrgRoleMember:
		return true
	default:
		return false
	}
}

package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ReportStatusDraft     = "draft"
	ReportStatusInReview  = "in_review"
	ReportStatusPublished = "published"
)

// Report is a sustainability report authored by an organization against a
// regulatory framework.
type Report struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	OrganizationID  uint           `gorm:"not null;index" json:"organization_id"`
	Organization    Organization   `gorm:"foreignKey:OrganizationID" json:"-"`
	FrameworkID     uint           `gorm:"not null;index" json:"framework_id"`
	Framework       Framework      `gorm:"foreignKey:FrameworkID" json:"framework,omitempty"`
	Title           string         `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=3,max=255"`
	ReportingPeriod string         `gorm:"type:varchar(20);not null" json:"reporting_period" validate:"required,max=20"`
	Status          string         `gorm:"type:varchar(20);not null;default:'draft';index" json:"status" validate:"oneof=draft in_review published"`
	CreatedBy       uint           `gorm:"not null" json:"created_by"`
	PublishedAt     *time.Time     `gorm:"type:timestamp;default:null" json:"published_at,omitempty"`
	Sections        []ReportSection `gorm:"foreignKey:ReportID" json:"sections,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Report) Validate() error {
	v := validator.New()
	return v.Struct(r)
}

// IsEditable reports whether content changes are still allowed.
func (r *Report) IsEditable() bool {
	return r.Status != ReportStatusPublished
}

// ReportSection holds disclosure content for one framework requirement.
type ReportSection struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ReportID        uint      `gorm:"not null;index:ux_report_sections_report_code,unique,priority:1" json:"report_id"`
	RequirementCode string    `gorm:"type:varchar(40);not null;index:ux_report_sections_report_code,unique,priority:2" json:"requirement_code"`
	Title           string    `gorm:"type:varchar(255);default:''" json:"title"`
	Content         string    `gorm:"type:longtext" json:"content"`
	UpdatedBy       uint      `gorm:"default:0" json:"updated_by"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

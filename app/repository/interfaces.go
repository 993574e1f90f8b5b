package repository

import (
	"gorm.io/gorm"

	"github.com/greenfoldhq/greenfold/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// OrganizationRepository defines the interface for tenant database operations
type OrganizationRepository interface {
	Create(org *models.Organization) error
	GetByID(id uint) (*models.Organization, error)
	GetByUUID(uuid string) (*models.Organization, error)
	GetBySlug(slug string) (*models.Organization, error)
	Update(org *models.Organization) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Organization, error)
	Count() (int64, error)
	CountByStatus(status string) (int64, error)

	AddMember(member *models.OrganizationMember) error
	GetMember(orgID, userID uint) (*models.OrganizationMember, error)
	GetMembers(orgID uint) ([]models.OrganizationMember, error)
	UpdateMember(member *models.OrganizationMember) error
	RemoveMember(orgID, userID uint) error
	CountMembers(orgID uint) (int64, error)
	GetOrganizationsForUser(userID uint) ([]models.Organization, error)
}

// ReportRepository defines the interface for report-related database operations
type ReportRepository interface {
	Create(report *models.Report) error
	GetByID(id uint) (*models.Report, error)
	GetByUUID(uuid string) (*models.Report, error)
	GetByOrganizationID(orgID uint, offset, limit int) ([]models.Report, error)
	Update(report *models.Report) error
	Delete(id uint) error
	Count() (int64, error)
	CountByOrganizationID(orgID uint) (int64, error)

	UpsertSection(section *models.ReportSection) error
	GetSections(reportID uint) ([]models.ReportSection, error)
	DeleteSection(reportID uint, requirementCode string) error
}

// FrameworkRepository defines the interface for framework catalog operations
type FrameworkRepository interface {
	GetByID(id uint) (*models.Framework, error)
	GetByCode(code string) (*models.Framework, error)
	GetActive() ([]models.Framework, error)
	GetAll() ([]models.Framework, error)
}

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	Create(notification *models.Notification) error
	GetByUserID(userID uint, offset, limit int) ([]models.Notification, error)
	CountUnread(userID uint) (int64, error)
	MarkRead(id, userID uint) error
	MarkAllRead(userID uint) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Organization OrganizationRepository
	Report       ReportRepository
	Framework    FrameworkRepository
	Notification NotificationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Organization: NewOrganizationRepository(db),
		Report:       NewReportRepository(db),
		Framework:    NewFrameworkRepository(db),
		Notification: NewNotificationRepository(db),
	}
}

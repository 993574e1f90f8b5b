package repository

import (
	"gorm.io/gorm"

	"github.com/greenfoldhq/greenfold/app/models"
)

// organizationRepository implements the OrganizationRepository interface
type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new organization repository instance
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

// Create creates a new organization in the database
func (r *organizationRepository) Create(org *models.Organization) error {
	return r.db.Create(org).Error
}

// GetByID retrieves an organization by its ID
func (r *organizationRepository) GetByID(id uint) (*models.Organization, error) {
	var org models.Organization
	err := r.db.First(&org, id).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetByUUID retrieves an organization by its public UUID
func (r *organizationRepository) GetByUUID(uuid string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.Where("uuid = ?", uuid).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetBySlug retrieves an organization by its slug
func (r *organizationRepository) GetBySlug(slug string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.Where("slug = ?", slug).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// Update updates an existing organization in the database
func (r *organizationRepository) Update(org *models.Organization) error {
	return r.db.Save(org).Error
}

// Delete soft deletes an organization by its ID
func (r *organizationRepository) Delete(id uint) error {
	return r.db.Delete(&models.Organization{}, id).Error
}

// List retrieves a paginated list of organizations
func (r *organizationRepository) List(offset, limit int) ([]models.Organization, error) {
	var orgs []models.Organization
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orgs).Error
	return orgs, err
}

// Count returns the total number of organizations
func (r *organizationRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Organization{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of organizations with the given subscription status
func (r *organizationRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Organization{}).Where("subscription_status = ?", status).Count(&count).Error
	return count, err
}

// AddMember adds a user to an organization
func (r *organizationRepository) AddMember(member *models.OrganizationMember) error {
	return r.db.Create(member).Error
}

// GetMember retrieves a membership row for a user in an organization
func (r *organizationRepository) GetMember(orgID, userID uint) (*models.OrganizationMember, error) {
	var member models.OrganizationMember
	err := r.db.Where("organization_id = ? AND user_id = ?", orgID, userID).First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// GetMembers retrieves all members of an organization with their users preloaded
func (r *organizationRepository) GetMembers(orgID uint) ([]models.OrganizationMember, error) {
	var members []models.OrganizationMember
	err := r.db.Preload("User").Where("organization_id = ?", orgID).Order("created_at ASC").Find(&members).Error
	return members, err
}

// UpdateMember updates an existing membership row
func (r *organizationRepository) UpdateMember(member *models.OrganizationMember) error {
	return r.db.Save(member).Error
}

// RemoveMember removes a user from an organization
func (r *organizationRepository) RemoveMember(orgID, userID uint) error {
	return r.db.Where("organization_id = ? AND user_id = ?", orgID, userID).
		Delete(&models.OrganizationMember{}).Error
}

// CountMembers returns the number of members in an organization
func (r *organizationRepository) CountMembers(orgID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.OrganizationMember{}).Where("organization_id = ?", orgID).Count(&count).Error
	return count, err
}

// GetOrganizationsForUser retrieves all organizations a user belongs to
func (r *organizationRepository) GetOrganizationsForUser(userID uint) ([]models.Organization, error) {
	var orgs []models.Organization
	err := r.db.
		Joins("JOIN organization_members ON organization_members.organization_id = organizations.id").
		Where("organization_members.user_id = ?", userID).
		Order("organizations.created_at ASC").
		Find(&orgs).Error
	return orgs, err
}

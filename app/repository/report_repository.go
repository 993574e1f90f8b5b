package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/greenfoldhq/greenfold/app/models"
)

// reportRepository implements the ReportRepository interface
type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository instance
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// Create creates a new report in the database
func (r *reportRepository) Create(report *models.Report) error {
	return r.db.Create(report).Error
}

// GetByID retrieves a report by its ID
func (r *reportRepository) GetByID(id uint) (*models.Report, error) {
	var report models.Report
	err := r.db.Preload("Framework").First(&report, id).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetByUUID retrieves a report by its public UUID
func (r *reportRepository) GetByUUID(uuid string) (*models.Report, error) {
	var report models.Report
	err := r.db.Preload("Framework").Where("uuid = ?", uuid).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetByOrganizationID retrieves a paginated list of an organization's reports
func (r *reportRepository) GetByOrganizationID(orgID uint, offset, limit int) ([]models.Report, error) {
	var reports []models.Report
	err := r.db.Preload("Framework").
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&reports).Error
	return reports, err
}

// Update updates an existing report in the database
func (r *reportRepository) Update(report *models.Report) error {
	return r.db.Save(report).Error
}

// Delete soft deletes a report by its ID
func (r *reportRepository) Delete(id uint) error {
	return r.db.Delete(&models.Report{}, id).Error
}

// Count returns the total number of reports
func (r *reportRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Report{}).Count(&count).Error
	return count, err
}

// CountByOrganizationID returns the number of reports owned by an organization
func (r *reportRepository) CountByOrganizationID(orgID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Report{}).Where("organization_id = ?", orgID).Count(&count).Error
	return count, err
}

// UpsertSection creates or replaces the section for a requirement code.
// The (report_id, requirement_code) pair carries a unique index.
func (r *reportRepository) UpsertSection(section *models.ReportSection) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "report_id"}, {Name: "requirement_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "content", "updated_by", "updated_at"}),
	}).Create(section).Error
}

// GetSections retrieves all sections of a report ordered by requirement code
func (r *reportRepository) GetSections(reportID uint) ([]models.ReportSection, error) {
	var sections []models.ReportSection
	err := r.db.Where("report_id = ?", reportID).Order("requirement_code ASC").Find(&sections).Error
	return sections, err
}

// DeleteSection removes a single section from a report
func (r *reportRepository) DeleteSection(reportID uint, requirementCode string) error {
	return r.db.Where("report_id = ? AND requirement_code = ?", reportID, requirementCode).
		Delete(&models.ReportSection{}).Error
}

package repository

import (
	"gorm.io/gorm"

	"github.com/greenfoldhq/greenfold/app/models"
)

// frameworkRepository implements the FrameworkRepository interface
type frameworkRepository struct {
	db *gorm.DB
}

// NewFrameworkRepository creates a new framework repository instance
func NewFrameworkRepository(db *gorm.DB) FrameworkRepository {
	return &frameworkRepository{db: db}
}

// GetByID retrieves a framework by its ID
func (r *frameworkRepository) GetByID(id uint) (*models.Framework, error) {
	var framework models.Framework
	err := r.db.First(&framework, id).Error
	if err != nil {
		return nil, err
	}
	return &framework, nil
}

// GetByCode retrieves a framework by its code (GRI, TCFD, ...)
func (r *frameworkRepository) GetByCode(code string) (*models.Framework, error) {
	var framework models.Framework
	err := r.db.Where("code = ?", code).First(&framework).Error
	if err != nil {
		return nil, err
	}
	return &framework, nil
}

// GetActive retrieves all active frameworks
func (r *frameworkRepository) GetActive() ([]models.Framework, error) {
	var frameworks []models.Framework
	err := r.db.Where("is_active = ?", true).Order("code ASC").Find(&frameworks).Error
	return frameworks, err
}

// GetAll retrieves the complete framework catalog
func (r *frameworkRepository) GetAll() ([]models.Framework, error) {
	var frameworks []models.Framework
	err := r.db.Order("code ASC").Find(&frameworks).Error
	return frameworks, err
}

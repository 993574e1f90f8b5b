package models

import "time"

// Framework is a regulatory reporting framework (GRI, TCFD, SASB, ...)
// against which reports are authored.
type Framework struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name"`
	Version   string    `gorm:"type:varchar(30);default:''" json:"version"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultFrameworks seeds the framework catalog on first start.
func DefaultFrameworks() []Framework {
	return []Framework{
		{Code: "GRI", Name: "Global Reporting Initiative", Version: "2021"},
		{Code: "TCFD", Name: "Task Force on Climate-related Financial Disclosures", Version: "2017"},
		{Code: "SASB", Name: "Sustainability Accounting Standards Board", Version: "2023"},
		{Code: "CSRD", Name: "Corporate Sustainability Reporting Directive", Version: "2024"},
	}
}

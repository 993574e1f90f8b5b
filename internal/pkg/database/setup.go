package database

import (
	"fmt"
	"log"
	"time"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/internal/pkg/env"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

const maxRetries = 5
const retryDelay = 5 * time.Second

func SetupDatabase() {
	var err error
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{})
		if err == nil {
			DB.AutoMigrate(
				&models.User{},
				&models.Organization{},
				&models.OrganizationMember{},
				&models.Framework{},
				&models.Report{},
				&models.ReportSection{},
				&models.SubscriptionHistoryEntry{},
				&models.Invoice{},
				&models.Payment{},
				&models.BillingWebhookEvent{},
				&models.Notification{},
			)
			seedFrameworks()
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

func GetDB() *gorm.DB {
	return DB
}

// seedFrameworks inserts the framework catalog if it is empty.
func seedFrameworks() {
	var count int64
	if err := DB.Model(&models.Framework{}).Count(&count).Error; err != nil || count > 0 {
		return
	}
	for _, fw := range models.DefaultFrameworks() {
		fw.IsActive = true
		if err := DB.Create(&fw).Error; err != nil {
			log.Printf("Failed to seed framework %s: %v", fw.Code, err)
		}
	}
}

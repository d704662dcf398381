// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/synclear/synclear-backend/internal/config"
	"github.com/synclear/synclear-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.Request{},
		&models.License{},
		&models.LicenseTypeConfig{},
		&models.StatusHistory{},
		&models.GeneratedDocument{},
		&models.ClauseTemplate{},
		&models.ProviderEvent{},
		&models.AdminNotification{},
		&models.AuditLog{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Request indexes
		"CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status)",
		"CREATE INDEX IF NOT EXISTS idx_requests_licensee_email ON requests(licensee_email)",
		"CREATE INDEX IF NOT EXISTS idx_requests_package_reference ON requests(package_reference)",
		"CREATE INDEX IF NOT EXISTS idx_requests_signature_document ON requests(signature_document_id)",
		"CREATE INDEX IF NOT EXISTS idx_requests_payment_session ON requests(payment_session_id)",
		"CREATE INDEX IF NOT EXISTS idx_requests_created_at ON requests(created_at DESC)",

		// License indexes
		"CREATE INDEX IF NOT EXISTS idx_licenses_request ON licenses(request_id)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_type_status ON licenses(type_code, status)",

		// History and document indexes
		"CREATE INDEX IF NOT EXISTS idx_status_histories_request ON status_histories(request_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_generated_documents_request_kind ON generated_documents(request_id, kind)",
		// At most one executed document per request, enforced in the schema.
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_generated_documents_executed ON generated_documents(request_id) WHERE kind = 'executed'",

		// Provider event indexes
		"CREATE INDEX IF NOT EXISTS idx_provider_events_request ON provider_events(request_id)",
		"CREATE INDEX IF NOT EXISTS idx_provider_events_created ON provider_events(created_at DESC)",

		// Admin indexes
		"CREATE INDEX IF NOT EXISTS idx_admin_notifications_status ON admin_notifications(status, priority)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	licenseTypes := []models.LicenseTypeConfig{
		{
			Code:       "sync",
			Name:       "Synchronization License",
			DefaultFee: 500,
			Term:       "perpetual",
			Territory:  "worldwide",
			GrantText:  "Licensor grants Licensee the non-exclusive right to synchronize the Work with the visual images of the Production.",
			IsActive:   true,
		},
		{
			Code:       "master",
			Name:       "Master Use License",
			DefaultFee: 300,
			Term:       "perpetual",
			Territory:  "worldwide",
			GrantText:  "Licensor grants Licensee the non-exclusive right to use the master recording of the Work in the Production.",
			IsActive:   true,
		},
		{
			Code:         "mechanical",
			Name:         "Mechanical License",
			DefaultFee:   150,
			Term:         "5 years",
			Territory:    "worldwide",
			GrantText:    "Licensor grants Licensee the non-exclusive right to reproduce and distribute the Work in audio-only formats.",
			Restrictions: "No lyrical changes without prior written consent.",
			IsActive:     true,
		},
		{
			Code:       "performance",
			Name:       "Public Performance License",
			DefaultFee: 200,
			Term:       "1 year",
			Territory:  "worldwide",
			GrantText:  "Licensor grants Licensee the non-exclusive right to publicly perform the Work as embodied in the Production.",
			IsActive:   true,
		},
	}

	for _, lt := range licenseTypes {
		var count int64
		db.Model(&models.LicenseTypeConfig{}).Where("code = ?", lt.Code).Count(&count)
		if count == 0 {
			if err := db.Create(&lt).Error; err != nil {
				return fmt.Errorf("failed to seed license type %s: %w", lt.Code, err)
			}
		}
	}

	clauses := []models.ClauseTemplate{
		{
			Slug:     "parties",
			Title:    "Parties",
			Body:     "This Synchronization License Agreement ({{package_reference}}) is entered into as of {{effective_date}} between {{licensee_name}} ({{licensee_email}}) and the rights holder of record.",
			Position: 1,
			IsActive: true,
		},
		{
			Slug:     "work",
			Title:    "The Work",
			Body:     "The musical composition and/or master recording titled \"{{work_title}}\" by {{artist_name}} (the \"Work\"), licensed for use in \"{{project_title}}\".",
			Position: 2,
			IsActive: true,
		},
		{
			Slug:     "grant",
			Title:    "Grant of Rights",
			Body:     "{{grant_of_rights}}",
			Position: 3,
			IsActive: true,
		},
		{
			Slug:     "territory-term",
			Title:    "Territory and Term",
			Body:     "The rights granted herein extend to {{territory}} for a term of {{term}}.",
			Position: 4,
			IsActive: true,
		},
		{
			Slug:     "fee",
			Title:    "License Fee",
			Body:     "In consideration of the rights granted, Licensee shall pay a one-time fee of {{fee_amount}} {{currency}}, due upon execution of this Agreement.",
			Position: 5,
			IsActive: true,
		},
		{
			Slug:     "restrictions",
			Title:    "Restrictions",
			Body:     "{{restrictions}}",
			Position: 6,
			IsActive: true,
		},
		{
			Slug:     "execution",
			Title:    "Execution",
			Body:     "Executed electronically on {{execution_date}} under package reference {{package_reference}}.",
			Position: 7,
			IsActive: true,
		},
	}

	for _, clause := range clauses {
		var count int64
		db.Model(&models.ClauseTemplate{}).Where("slug = ?", clause.Slug).Count(&count)
		if count == 0 {
			if err := db.Create(&clause).Error; err != nil {
				return fmt.Errorf("failed to seed clause %s: %w", clause.Slug, err)
			}
		}
	}

	log.Println("Initial data seeding completed")
	return nil
}

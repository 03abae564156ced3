// Package db opens the postgres handle and owns schema migration and the
// first-boot seed.
package db

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"athens/internal/auth"
	"athens/internal/models"
)

// Open connects using DATABASE_URL.
func Open(lg *zap.SugaredLogger) (*gorm.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	lg.Infow("database connected")
	return gdb, nil
}

// Migrate applies the schema. AutoMigrate is additive; destructive changes
// go through hand-written migrations.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Tenant{},
		&models.Project{},
		&models.User{},
		&models.Session{},
		&models.CollaborationProject{},
		&models.CollaborationMember{},
		&models.CollaborationPolicy{},
		&models.CollaborationProjectLink{},
		&models.SchedulerRun{},
		&models.PermitType{},
		&models.PermitTypeTemplateOverride{},
		&models.Permit{},
		&models.IsolationPointLibrary{},
		&models.PermitIsolationPoint{},
		&models.GasReading{},
		&models.CloseoutChecklistTemplate{},
		&models.PermitCloseout{},
		&models.DigitalSignature{},
		&models.PermitAudit{},
		&models.PermitExtension{},
		&models.PermitWorkflowStep{},
		&models.EscalationRule{},
		&models.EscalationNotice{},
		&models.WebhookEndpoint{},
		&models.WebhookDeliveryLog{},
		&models.AttendanceEvent{},
		&models.TrainingSession{},
		&models.ToolboxTalk{},
		&models.Incident{},
	)
}

// Seed provisions the default tenant, its master admin and the baseline
// permit types on an empty database. Re-running is a no-op.
func Seed(gdb *gorm.DB, lg *zap.SugaredLogger) error {
	var count int64
	if err := gdb.Model(&models.Tenant{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	adminEmail := os.Getenv("SEED_ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@athens.local"
	}
	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "changeme123"
	}
	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}

	return gdb.Transaction(func(tx *gorm.DB) error {
		t := models.Tenant{
			Name:           "Default Tenant",
			EnabledModules: models.StringArray{"ptw", "attendance", "reports"},
			IsActive:       true,
		}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		admin := models.User{
			TenantID:     t.ID,
			Email:        adminEmail,
			PasswordHash: hash,
			FullName:     "Master Admin",
			UserType:     models.UserTypeMaster,
			AdminType:    models.AdminTypeMaster,
			Grade:        "A",
			IsActive:     true,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Tenant{}).Where("id = ?", t.ID).
			Update("master_admin_id", admin.ID).Error; err != nil {
			return err
		}

		types := []models.PermitType{
			{
				TenantID: t.ID, Name: "Hot Work", Category: models.CategoryHotWork,
				RiskLevel: "high", ValidityHours: 8,
				RequiresGasTesting: true, RequiresStructuredIsolation: true,
				RequiresFireWatch: true, RequiresDeisolationOnCloseout: true,
				RequiresIssuerSignature: true, RequiresReceiverSignature: true,
				MandatoryPPE: models.StringArray{"helmet", "fire_retardant_suit", "goggles"},
				IsActive:     true,
			},
			{
				TenantID: t.ID, Name: "Confined Space Entry", Category: models.CategoryConfined,
				RiskLevel: "high", ValidityHours: 8,
				RequiresGasTesting: true, RequiresStructuredIsolation: true,
				RequiresDeisolationOnCloseout: true,
				RequiresIssuerSignature:       true, RequiresReceiverSignature: true,
				MandatoryPPE: models.StringArray{"helmet", "harness", "gas_monitor"},
				IsActive:     true,
			},
			{
				TenantID: t.ID, Name: "Electrical Work", Category: models.CategoryElectrical,
				RiskLevel: "medium", ValidityHours: 12,
				RequiresStructuredIsolation:   true,
				RequiresDeisolationOnCloseout: true,
				RequiresIssuerSignature:       true,
				MandatoryPPE:                  models.StringArray{"helmet", "insulated_gloves"},
				IsActive:                      true,
			},
			{
				TenantID: t.ID, Name: "Work at Height", Category: models.CategoryHeight,
				RiskLevel: "medium", ValidityHours: 12,
				MandatoryPPE: models.StringArray{"helmet", "harness"},
				IsActive:     true,
			},
			{
				TenantID: t.ID, Name: "Cold Work", Category: models.CategoryColdWork,
				RiskLevel: "low", ValidityHours: 24,
				MandatoryPPE: models.StringArray{"helmet"},
				IsActive:     true,
			},
		}
		for i := range types {
			if err := tx.Create(&types[i]).Error; err != nil {
				return err
			}
		}
		lg.Infow("seeded default tenant", "tenant", t.ID, "admin", adminEmail, "permit_types", len(types))
		return nil
	})
}

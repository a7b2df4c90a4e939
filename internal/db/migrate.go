package db

import (
	"fmt"

	"mesh_manager/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate runs database migrations for all models
func Migrate(db *gorm.DB, log *logrus.Entry) error {
	log.Info("Starting database migration...")

	models := model.All()

	// Run AutoMigrate for all models
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Infof("✓ Database migration completed successfully (%d tables)", len(models))
	return nil
}

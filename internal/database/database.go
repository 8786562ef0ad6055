package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/config"
	logging "github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/logging"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

var DB *gorm.DB

func Init(log *zap.Logger) error {
	var err error
	dbConf := config.Conf.Database
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		dbConf.Host, dbConf.User, dbConf.Password, dbConf.DBName, dbConf.Port)

	gormLogger := logging.NewGormZapLogger(log)

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connection established successfully.")
	return runMigrations(log)
}

func runMigrations(log *zap.Logger) error {
	// GORM's AutoMigrate will create tables, columns, and foreign keys.
	// It will NOT create custom indexes, so we handle that separately.
	err := DB.AutoMigrate(
		&models.AttemptJournal{},
		&models.DetectionEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info("Database migrations completed successfully.")

	journalIndex := `CREATE INDEX IF NOT EXISTS idx_journal_query ON attempt_journals (email, model_id, created_at DESC);`
	if err := DB.Exec(journalIndex).Error; err != nil {
		return fmt.Errorf("failed to create custom index on attempt journal: %w", err)
	}
	log.Info("Custom indexes ensured successfully.")
	return nil
}

package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/onegreenvn/storybook-services-backend/internal/config"
	"github.com/onegreenvn/storybook-services-backend/internal/models"
)

// InitDB initializes the database connection and performs migrations
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing required database environment variables. Please check your .env file")
	}

	// Configure GORM logger
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// gen_random_uuid() is built in from postgres 13; older servers need pgcrypto
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pgcrypto").Error; err != nil {
		logrus.Warnf("Failed to enable pgcrypto extension: %v", err)
	}

	if err := db.AutoMigrate(&models.Story{}, &models.Illustration{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logrus.Info("Database connection established and migrations completed")
	return db, nil
}

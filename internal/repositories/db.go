// Package repositories provides data access layer implementations.
// It handles all database operations and data persistence logic.
package repositories

import (
	"fmt"
	"log"
	"os"
	"time"

	"viewly/internal/config"
	"viewly/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// activeRequestIndex enforces one pending or scheduled request per tenant and property.
const activeRequestIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_viewing_requests_active
ON viewing_requests (tenant_id, property_id)
WHERE status IN ('pending', 'scheduled')`

// InitDB opens the configured database and applies the connection pool settings.
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	// Configure GORM logger to ignore "record not found" errors
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  !config.IsProduction(),
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

// AutoMigrate creates or updates the escrow and property tables and their indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ViewingRequest{},
		&models.Transaction{},
		&models.Payout{},
		&models.Property{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if err := db.Exec(activeRequestIndex).Error; err != nil {
		return fmt.Errorf("create active request index: %w", err)
	}
	return nil
}

// ResetDatabase drops and recreates the escrow tables.
func ResetDatabase(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&models.Payout{}, &models.Transaction{}, &models.ViewingRequest{}, &models.Property{}); err != nil {
		return err
	}
	return AutoMigrate(db)
}

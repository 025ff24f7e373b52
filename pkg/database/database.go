package database

import (
	"fmt"
	"log"
	"time"

	"lead-responder/internal/conversation/domain"
	"lead-responder/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const pingAttempts = 5

func NewPostgresConnection(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// postgres may still be starting when the container comes up
	var pingErr error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if pingErr = sqlDB.Ping(); pingErr == nil {
			break
		}
		log.Printf("[Database] Not ready (attempt %d/%d): %v", attempt, pingAttempts, pingErr)
		time.Sleep(2 * time.Second)
	}
	if pingErr != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database after %d attempts: %w", pingAttempts, pingErr)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	log.Println("[Database] Connected")
	return db, nil
}

// AutoMigrate creates the tables this service owns. The products table
// belongs to the storefront and is only read.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Lead{}, &domain.ConversationRecord{}, &domain.Setting{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

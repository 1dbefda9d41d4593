package database

import (
	"fmt"

	"ge-ledger-go/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all ledger tables.
// The trade ledger is durable user data, so unlike a throwaway bot
// database nothing is ever dropped here.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Character{},
		&models.Trade{},
		&models.InventoryPosition{},
		&models.Bankroll{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

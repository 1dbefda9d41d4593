package models

import "gorm.io/gorm"

// Character represents a tracked OSRS account. Trades, positions and
// bankroll are all partitioned by its ID.
type Character struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	AccountType string `gorm:"default:ironman" json:"account_type"`
}

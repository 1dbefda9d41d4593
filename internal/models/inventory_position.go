package models

import (
	"time"

	"gorm.io/gorm"
)

// InventoryPosition is the derived holding of one item by one character.
// It is a materialized view over the trade ledger and can be rebuilt from
// scratch at any time. AverageBuyPrice is the weighted average across all
// buys; sells reduce RemainingQuantity but never recompute the average.
type InventoryPosition struct {
	gorm.Model
	CharacterID       uint      `gorm:"uniqueIndex:idx_character_item;not null" json:"character_id"`
	ItemID            int64     `gorm:"uniqueIndex:idx_character_item;not null" json:"item_id"`
	ItemName          string    `json:"item_name"`
	TotalQuantity     int64     `gorm:"not null" json:"total_quantity"`
	RemainingQuantity int64     `gorm:"not null" json:"remaining_quantity"`
	AverageBuyPrice   int64     `gorm:"not null" json:"average_buy_price"`
	TotalCost         int64     `gorm:"not null" json:"total_cost"`
	FirstBuyAt        time.Time `json:"first_buy_at"`
	LastBuyAt         time.Time `json:"last_buy_at"`
}

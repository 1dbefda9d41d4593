package models

import "gorm.io/gorm"

// Bankroll tracks a character's cash stack. There is at most one row per
// character. Balance is always InitialBalance plus the replayed cash flow
// of the ledger (sells credit, buys debit), so it can be rebuilt from the
// trade table whenever history changes.
type Bankroll struct {
	gorm.Model
	CharacterID    uint  `gorm:"uniqueIndex;not null" json:"character_id"`
	InitialBalance int64 `gorm:"not null" json:"initial_balance"`
	Balance        int64 `gorm:"not null" json:"balance"`
}

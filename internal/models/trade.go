package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TradeTypeBuy  = "buy"
	TradeTypeSell = "sell"
)

// Trade represents a single Grand Exchange buy or sell record in the ledger.
// Sell trades additionally carry the outcome of FIFO profit matching:
// MatchedTradeID points at the first buy lot the sell consumed, and
// ProfitPerItem/TotalProfit hold the weighted result across all consumed
// lots. All three stay nil for sells that never matched a buy.
type Trade struct {
	gorm.Model
	CharacterID  uint      `gorm:"index;not null" json:"character_id"`
	ItemID       int64     `gorm:"index;not null" json:"item_id"`
	ItemName     string    `json:"item_name"`
	TradeType    string    `gorm:"not null" json:"trade_type"` // "buy" or "sell"
	Quantity     int64     `gorm:"not null" json:"quantity"`
	PricePerItem int64     `gorm:"not null" json:"price_per_item"`
	TotalValue   int64     `gorm:"not null" json:"total_value"`
	TradedAt     time.Time `gorm:"index;not null" json:"traded_at"`
	Notes        string    `json:"notes,omitempty"`

	MatchedTradeID *uint  `gorm:"index" json:"matched_trade_id,omitempty"`
	ProfitPerItem  *int64 `json:"profit_per_item,omitempty"`
	TotalProfit    *int64 `json:"total_profit,omitempty"`
}

// IsBuy reports whether the trade is a buy.
func (t *Trade) IsBuy() bool { return t.TradeType == TradeTypeBuy }

// IsSell reports whether the trade is a sell.
func (t *Trade) IsSell() bool { return t.TradeType == TradeTypeSell }

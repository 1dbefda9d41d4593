package ledger

import (
	"errors"
	"fmt"

	"ge-ledger-go/internal/models"
	"gorm.io/gorm"
)

// applyBuyToPosition folds a buy into the character's position for the
// item, creating the position if this is the first tracked buy. The
// average buy price is the weighted average over all buys; sells never
// lower it, they only reduce the remaining quantity.
func applyBuyToPosition(tx *gorm.DB, trade *models.Trade) error {
	var pos models.InventoryPosition
	err := tx.Where("character_id = ? AND item_id = ?", trade.CharacterID, trade.ItemID).
		First(&pos).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		pos = models.InventoryPosition{
			CharacterID:       trade.CharacterID,
			ItemID:            trade.ItemID,
			ItemName:          trade.ItemName,
			TotalQuantity:     trade.Quantity,
			RemainingQuantity: trade.Quantity,
			AverageBuyPrice:   trade.PricePerItem,
			TotalCost:         trade.TotalValue,
			FirstBuyAt:        trade.TradedAt,
			LastBuyAt:         trade.TradedAt,
		}
		if err := tx.Create(&pos).Error; err != nil {
			return fmt.Errorf("could not create inventory position: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not load inventory position: %w", err)
	}

	pos.TotalQuantity += trade.Quantity
	pos.RemainingQuantity += trade.Quantity
	pos.TotalCost += trade.TotalValue
	pos.AverageBuyPrice = roundDiv(pos.TotalCost, pos.TotalQuantity)
	pos.ItemName = trade.ItemName
	if trade.TradedAt.Before(pos.FirstBuyAt) {
		pos.FirstBuyAt = trade.TradedAt
	}
	if trade.TradedAt.After(pos.LastBuyAt) {
		pos.LastBuyAt = trade.TradedAt
	}

	if err := tx.Save(&pos).Error; err != nil {
		return fmt.Errorf("could not update inventory position: %w", err)
	}
	return nil
}

// applySellToPosition reduces the remaining quantity, floored at zero.
// A sell with no tracked position is a no-op here; the trade itself is
// still recorded, just unmatched.
func applySellToPosition(tx *gorm.DB, trade *models.Trade) error {
	var pos models.InventoryPosition
	err := tx.Where("character_id = ? AND item_id = ?", trade.CharacterID, trade.ItemID).
		First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not load inventory position: %w", err)
	}

	pos.RemainingQuantity -= trade.Quantity
	if pos.RemainingQuantity < 0 {
		pos.RemainingQuantity = 0
	}

	if err := tx.Save(&pos).Error; err != nil {
		return fmt.Errorf("could not update inventory position: %w", err)
	}
	return nil
}

// recalculateInventoryPositions rebuilds every position for the character
// from the trade ledger alone: all rows are dropped, the ledger is
// replayed in chronological order with the same blend rules as the
// incremental path, and only items with at least one buy are re-inserted.
func recalculateInventoryPositions(tx *gorm.DB, characterID uint) error {
	err := tx.Unscoped().
		Where("character_id = ?", characterID).
		Delete(&models.InventoryPosition{}).Error
	if err != nil {
		return fmt.Errorf("could not clear inventory positions: %w", err)
	}

	var trades []models.Trade
	if err := tx.Where("character_id = ?", characterID).Find(&trades).Error; err != nil {
		return fmt.Errorf("could not load trades for inventory rebuild: %w", err)
	}
	sortChronologically(trades)

	positions := make(map[int64]*models.InventoryPosition)
	for i := range trades {
		t := &trades[i]
		pos := positions[t.ItemID]

		switch {
		case t.IsBuy():
			if pos == nil {
				positions[t.ItemID] = &models.InventoryPosition{
					CharacterID:       characterID,
					ItemID:            t.ItemID,
					ItemName:          t.ItemName,
					TotalQuantity:     t.Quantity,
					RemainingQuantity: t.Quantity,
					AverageBuyPrice:   t.PricePerItem,
					TotalCost:         t.TotalValue,
					FirstBuyAt:        t.TradedAt,
					LastBuyAt:         t.TradedAt,
				}
				continue
			}
			pos.TotalQuantity += t.Quantity
			pos.RemainingQuantity += t.Quantity
			pos.TotalCost += t.TotalValue
			pos.AverageBuyPrice = roundDiv(pos.TotalCost, pos.TotalQuantity)
			pos.ItemName = t.ItemName
			pos.LastBuyAt = t.TradedAt

		case t.IsSell():
			if pos == nil {
				continue
			}
			pos.RemainingQuantity -= t.Quantity
			if pos.RemainingQuantity < 0 {
				pos.RemainingQuantity = 0
			}
		}
	}

	for _, pos := range positions {
		if pos.TotalQuantity <= 0 {
			continue
		}
		if err := tx.Create(pos).Error; err != nil {
			return fmt.Errorf("could not insert rebuilt position for item %d: %w", pos.ItemID, err)
		}
	}

	return nil
}

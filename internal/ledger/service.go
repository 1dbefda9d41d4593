package ledger

import (
	"errors"
	"fmt"
	"time"

	"ge-ledger-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service validates and applies trade mutations, keeping the derived
// inventory, match and bankroll views consistent with the ledger.
//
// Mutations for the same character are expected to be serialized by the
// caller (one web request at a time); every mutation runs inside a single
// transaction so a trade row can never be observed without its inventory
// and bankroll effects.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new trade mutation service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// CreateTradeInput is the payload for recording a new trade.
type CreateTradeInput struct {
	ItemID       int64     `json:"item_id"`
	ItemName     string    `json:"item_name"`
	TradeType    string    `json:"trade_type"`
	Quantity     int64     `json:"quantity"`
	PricePerItem int64     `json:"price_per_item"`
	TradedAt     time.Time `json:"traded_at"`
	Notes        string    `json:"notes"`
}

// UpdateTradeInput carries a partial edit; nil fields are left unchanged.
type UpdateTradeInput struct {
	ItemName     *string    `json:"item_name"`
	TradeType    *string    `json:"trade_type"`
	Quantity     *int64     `json:"quantity"`
	PricePerItem *int64     `json:"price_per_item"`
	TradedAt     *time.Time `json:"traded_at"`
	Notes        *string    `json:"notes"`
}

// DeleteResult reports the outcome of a delete, including cascaded rows.
type DeleteResult struct {
	Success      bool  `json:"success"`
	DeletedCount int64 `json:"deleted_count"`
}

// DeleteImpact previews what a delete would cascade to, so the caller can
// confirm before committing.
type DeleteImpact struct {
	Trade          models.Trade   `json:"trade"`
	AffectedSells  []models.Trade `json:"affected_sells"`
	MatchedBuy     *models.Trade  `json:"matched_buy,omitempty"`
	WarningMessage string         `json:"warning_message"`
}

// RecalculateResult reports how many sells received a profit match.
type RecalculateResult struct {
	MatchesUpdated int64 `json:"matches_updated"`
}

// validateBounds checks the static input rules in order; first failure
// wins.
func validateBounds(quantity, pricePerItem int64) *ValidationError {
	if quantity <= 0 {
		return newValidationError(CodeInvalidQuantity, "quantity must be greater than zero")
	}
	if quantity > MaxQuantity {
		return newValidationError(CodeQuantityTooLarge,
			fmt.Sprintf("quantity cannot exceed %d", MaxQuantity))
	}
	if pricePerItem < 0 {
		return newValidationError(CodeNegativePrice, "price per item cannot be negative")
	}
	if pricePerItem > MaxPricePerItem {
		return newValidationError(CodePriceTooLarge,
			fmt.Sprintf("price per item cannot exceed %d", MaxPricePerItem))
	}
	return nil
}

// CreateTrade validates the input against current inventory and bankroll
// state, records the trade, and applies its derived effects atomically.
func (s *Service) CreateTrade(characterID uint, input CreateTradeInput) (*models.Trade, error) {
	if input.TradeType != models.TradeTypeBuy && input.TradeType != models.TradeTypeSell {
		return nil, fmt.Errorf("unknown trade type %q", input.TradeType)
	}
	if verr := validateBounds(input.Quantity, input.PricePerItem); verr != nil {
		return nil, verr
	}

	tradedAt := input.TradedAt
	if tradedAt.IsZero() {
		tradedAt = time.Now()
	}

	trade := models.Trade{
		CharacterID:  characterID,
		ItemID:       input.ItemID,
		ItemName:     input.ItemName,
		TradeType:    input.TradeType,
		Quantity:     input.Quantity,
		PricePerItem: input.PricePerItem,
		TotalValue:   input.Quantity * input.PricePerItem,
		TradedAt:     tradedAt,
		Notes:        input.Notes,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if trade.IsBuy() {
			return s.applyBuy(tx, &trade)
		}
		return s.applySell(tx, &trade)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trade recorded",
		zap.Uint("character_id", characterID),
		zap.Uint("trade_id", trade.ID),
		zap.String("trade_type", trade.TradeType),
		zap.Int64("item_id", trade.ItemID),
		zap.Int64("quantity", trade.Quantity),
		zap.Int64("total_value", trade.TotalValue),
	)
	return &trade, nil
}

func (s *Service) applyBuy(tx *gorm.DB, trade *models.Trade) error {
	bankroll, err := ensureBankroll(tx, trade.CharacterID)
	if err != nil {
		return err
	}
	if trade.TotalValue > 0 && bankroll.Balance < trade.TotalValue {
		available := bankroll.Balance
		return &ValidationError{
			Code: CodeInsufficientBankroll,
			Message: fmt.Sprintf("buy costs %d gp but only %d gp is available",
				trade.TotalValue, available),
			AvailableBankroll: &available,
		}
	}

	if err := tx.Create(trade).Error; err != nil {
		return fmt.Errorf("could not insert trade: %w", err)
	}
	if err := applyBuyToPosition(tx, trade); err != nil {
		return err
	}
	return adjustBankroll(tx, trade.CharacterID, -trade.TotalValue)
}

func (s *Service) applySell(tx *gorm.DB, trade *models.Trade) error {
	var pos models.InventoryPosition
	err := tx.Where("character_id = ? AND item_id = ?", trade.CharacterID, trade.ItemID).
		First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && pos.RemainingQuantity == 0) {
		return newValidationError(CodeNoInventory,
			fmt.Sprintf("no tracked inventory of %s to sell", trade.ItemName))
	}
	if err != nil {
		return fmt.Errorf("could not load inventory position: %w", err)
	}
	if trade.Quantity > pos.RemainingQuantity {
		available := pos.RemainingQuantity
		return &ValidationError{
			Code: CodeInsufficientInventory,
			Message: fmt.Sprintf("cannot sell %d of %s, only %d held",
				trade.Quantity, trade.ItemName, available),
			AvailableQuantity: &available,
		}
	}

	if _, err := ensureBankroll(tx, trade.CharacterID); err != nil {
		return err
	}
	if err := tx.Create(trade).Error; err != nil {
		return fmt.Errorf("could not insert trade: %w", err)
	}
	if err := matchNewSell(tx, trade); err != nil {
		return err
	}
	if err := applySellToPosition(tx, trade); err != nil {
		return err
	}
	return adjustBankroll(tx, trade.CharacterID, trade.TotalValue)
}

// UpdateTrade applies a partial edit. Edits to quantity, price, trade type
// or timestamp invalidate downstream matches, so they trigger a full
// recalculation of matches, positions and bankroll; correctness over
// performance. Returns (nil, nil) when the trade does not exist.
func (s *Service) UpdateTrade(characterID, tradeID uint, input UpdateTradeInput) (*models.Trade, error) {
	var updated *models.Trade

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var trade models.Trade
		err := tx.Where("id = ? AND character_id = ?", tradeID, characterID).
			First(&trade).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not load trade: %w", err)
		}

		needsRecalc := false
		if input.ItemName != nil {
			trade.ItemName = *input.ItemName
		}
		if input.Notes != nil {
			trade.Notes = *input.Notes
		}
		if input.TradeType != nil && *input.TradeType != trade.TradeType {
			if *input.TradeType != models.TradeTypeBuy && *input.TradeType != models.TradeTypeSell {
				return fmt.Errorf("unknown trade type %q", *input.TradeType)
			}
			trade.TradeType = *input.TradeType
			needsRecalc = true
		}
		if input.Quantity != nil && *input.Quantity != trade.Quantity {
			trade.Quantity = *input.Quantity
			needsRecalc = true
		}
		if input.PricePerItem != nil && *input.PricePerItem != trade.PricePerItem {
			trade.PricePerItem = *input.PricePerItem
			needsRecalc = true
		}
		if input.TradedAt != nil && !input.TradedAt.Equal(trade.TradedAt) {
			trade.TradedAt = *input.TradedAt
			needsRecalc = true
		}

		if verr := validateBounds(trade.Quantity, trade.PricePerItem); verr != nil {
			return verr
		}
		trade.TotalValue = trade.Quantity * trade.PricePerItem

		if trade.IsBuy() {
			// An edited buy is no longer the lot its sells were matched
			// against; the recalculation below reassigns them.
			trade.MatchedTradeID = nil
			trade.ProfitPerItem = nil
			trade.TotalProfit = nil
		}

		if err := tx.Save(&trade).Error; err != nil {
			return fmt.Errorf("could not save trade: %w", err)
		}

		if needsRecalc {
			if _, err := recalculateAll(tx, characterID); err != nil {
				return err
			}
			// Reload so the returned trade reflects any re-match.
			if err := tx.First(&trade, trade.ID).Error; err != nil {
				return fmt.Errorf("could not reload trade: %w", err)
			}
		}

		updated = &trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated != nil {
		s.logger.Info("trade updated",
			zap.Uint("character_id", characterID),
			zap.Uint("trade_id", tradeID),
		)
	}
	return updated, nil
}

// DeleteTrade removes a trade and everything that depended on it. Deleting
// a buy cascades to every sell matched against it, since their profit
// attribution assumed that lot existed. Each removed trade's cash flow is
// reversed, then the derived views are rebuilt.
func (s *Service) DeleteTrade(characterID, tradeID uint) (*DeleteResult, error) {
	result := &DeleteResult{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var trade models.Trade
		err := tx.Where("id = ? AND character_id = ?", tradeID, characterID).
			First(&trade).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not load trade: %w", err)
		}

		if _, err := ensureBankroll(tx, characterID); err != nil {
			return err
		}

		if trade.IsBuy() {
			var matchedSells []models.Trade
			err := tx.Where("character_id = ? AND matched_trade_id = ?", characterID, trade.ID).
				Find(&matchedSells).Error
			if err != nil {
				return fmt.Errorf("could not load matched sells: %w", err)
			}
			for _, sell := range matchedSells {
				if err := adjustBankroll(tx, characterID, -sell.TotalValue); err != nil {
					return err
				}
				if err := tx.Delete(&models.Trade{}, sell.ID).Error; err != nil {
					return fmt.Errorf("could not delete matched sell %d: %w", sell.ID, err)
				}
				result.DeletedCount++
			}
			if err := adjustBankroll(tx, characterID, trade.TotalValue); err != nil {
				return err
			}
		} else {
			if err := adjustBankroll(tx, characterID, -trade.TotalValue); err != nil {
				return err
			}
		}

		if err := tx.Delete(&trade).Error; err != nil {
			return fmt.Errorf("could not delete trade: %w", err)
		}
		result.DeletedCount++
		result.Success = true

		_, err = recalculateAll(tx, characterID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Success {
		s.logger.Info("trade deleted",
			zap.Uint("character_id", characterID),
			zap.Uint("trade_id", tradeID),
			zap.Int64("deleted_count", result.DeletedCount),
		)
	}
	return result, nil
}

// GetDeleteTradeImpact is a read-only preview of what DeleteTrade would
// remove. Returns (nil, nil) when the trade does not exist.
func (s *Service) GetDeleteTradeImpact(characterID, tradeID uint) (*DeleteImpact, error) {
	var trade models.Trade
	err := s.db.Where("id = ? AND character_id = ?", tradeID, characterID).
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load trade: %w", err)
	}

	impact := &DeleteImpact{Trade: trade, AffectedSells: []models.Trade{}}

	if trade.IsBuy() {
		err := s.db.Where("character_id = ? AND matched_trade_id = ?", characterID, trade.ID).
			Find(&impact.AffectedSells).Error
		if err != nil {
			return nil, fmt.Errorf("could not load matched sells: %w", err)
		}
		if n := len(impact.AffectedSells); n > 0 {
			impact.WarningMessage = fmt.Sprintf(
				"Deleting this buy will also delete %d sell(s) matched against it and reverse their bankroll credits.", n)
		} else {
			impact.WarningMessage = "No sells are matched against this buy."
		}
		return impact, nil
	}

	if trade.MatchedTradeID != nil {
		var buy models.Trade
		err := s.db.Where("id = ? AND character_id = ?", *trade.MatchedTradeID, characterID).
			First(&buy).Error
		if err == nil {
			impact.MatchedBuy = &buy
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("could not load matched buy: %w", err)
		}
	}
	impact.WarningMessage = "Deleting this sell reverses its bankroll credit and triggers a profit recalculation."
	return impact, nil
}

// RecalculateProfitMatches replays the character's entire ledger: profit
// matches first, then inventory positions and bankroll, so all three
// derived views stay consistent with each other.
func (s *Service) RecalculateProfitMatches(characterID uint) (*RecalculateResult, error) {
	var matches int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		matches, err = recalculateAll(tx, characterID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("profit matches recalculated",
		zap.Uint("character_id", characterID),
		zap.Int64("matches_updated", matches),
	)
	return &RecalculateResult{MatchesUpdated: matches}, nil
}

// recalculateAll rebuilds the three derived views in dependency order.
func recalculateAll(tx *gorm.DB, characterID uint) (int64, error) {
	matches, err := recalculateProfitMatches(tx, characterID)
	if err != nil {
		return 0, err
	}
	if err := recalculateInventoryPositions(tx, characterID); err != nil {
		return 0, err
	}
	if err := recalculateBankroll(tx, characterID); err != nil {
		return 0, err
	}
	return matches, nil
}

// ListTrades returns the character's trades, most recent first, optionally
// filtered to one item.
func (s *Service) ListTrades(characterID uint, itemID *int64) ([]models.Trade, error) {
	query := s.db.Where("character_id = ?", characterID)
	if itemID != nil {
		query = query.Where("item_id = ?", *itemID)
	}

	var trades []models.Trade
	if err := query.Order("traded_at desc, id desc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("could not list trades: %w", err)
	}
	return trades, nil
}

// ListPositions returns the character's current inventory positions.
func (s *Service) ListPositions(characterID uint) ([]models.InventoryPosition, error) {
	var positions []models.InventoryPosition
	err := s.db.Where("character_id = ?", characterID).
		Order("item_id asc").Find(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("could not list positions: %w", err)
	}
	return positions, nil
}

// GetBankroll returns the character's bankroll, creating it on first use.
func (s *Service) GetBankroll(characterID uint) (*models.Bankroll, error) {
	var bankroll *models.Bankroll
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		bankroll, err = ensureBankroll(tx, characterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bankroll, nil
}

// SetBankroll sets the character's initial balance and re-derives the
// current balance by replaying the ledger on top of it.
func (s *Service) SetBankroll(characterID uint, initialBalance int64) (*models.Bankroll, error) {
	var bankroll *models.Bankroll
	err := s.db.Transaction(func(tx *gorm.DB) error {
		b, err := ensureBankroll(tx, characterID)
		if err != nil {
			return err
		}
		b.InitialBalance = initialBalance
		if err := tx.Save(b).Error; err != nil {
			return fmt.Errorf("could not save bankroll: %w", err)
		}
		if err := recalculateBankroll(tx, characterID); err != nil {
			return err
		}
		bankroll, err = ensureBankroll(tx, characterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bankroll, nil
}

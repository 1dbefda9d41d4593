package ledger

import (
	"errors"
	"fmt"

	"ge-ledger-go/internal/models"
	"gorm.io/gorm"
)

// ensureBankroll returns the character's bankroll row, creating a zeroed
// one on first use.
func ensureBankroll(tx *gorm.DB, characterID uint) (*models.Bankroll, error) {
	var bankroll models.Bankroll
	err := tx.Where("character_id = ?", characterID).First(&bankroll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bankroll = models.Bankroll{CharacterID: characterID}
		if err := tx.Create(&bankroll).Error; err != nil {
			return nil, fmt.Errorf("could not create bankroll: %w", err)
		}
		return &bankroll, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load bankroll: %w", err)
	}
	return &bankroll, nil
}

// adjustBankroll applies a cash-flow delta to the character's balance.
// Buys pass a negative delta, sells a positive one.
func adjustBankroll(tx *gorm.DB, characterID uint, delta int64) error {
	err := tx.Model(&models.Bankroll{}).
		Where("character_id = ?", characterID).
		Update("balance", gorm.Expr("balance + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("could not adjust bankroll: %w", err)
	}
	return nil
}

// recalculateBankroll rebuilds the balance by replaying the ledger's cash
// flow in chronological order on top of the initial balance.
func recalculateBankroll(tx *gorm.DB, characterID uint) error {
	bankroll, err := ensureBankroll(tx, characterID)
	if err != nil {
		return err
	}

	var trades []models.Trade
	if err := tx.Where("character_id = ?", characterID).Find(&trades).Error; err != nil {
		return fmt.Errorf("could not load trades for bankroll rebuild: %w", err)
	}
	sortChronologically(trades)

	balance := bankroll.InitialBalance
	for _, t := range trades {
		if t.IsBuy() {
			balance -= t.TotalValue
		} else {
			balance += t.TotalValue
		}
	}

	bankroll.Balance = balance
	if err := tx.Save(bankroll).Error; err != nil {
		return fmt.Errorf("could not save rebuilt bankroll: %w", err)
	}
	return nil
}

package ledger

import (
	"fmt"
	"math"
	"sort"

	"ge-ledger-go/internal/models"
	"gorm.io/gorm"
)

// buyLot tracks the unconsumed remainder of a single buy during matching.
type buyLot struct {
	tradeID   uint
	price     int64
	remaining int64
}

// sellMatch is the computed match outcome for one sell trade. All fields
// stay nil when the sell consumed nothing (no buy history to match).
type sellMatch struct {
	matchedTradeID *uint
	profitPerItem  *int64
	totalProfit    *int64
}

// sortChronologically orders trades by TradedAt ascending, breaking ties by
// ID so that replay over the same ledger is always deterministic.
func sortChronologically(trades []models.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].TradedAt.Equal(trades[j].TradedAt) {
			return trades[i].ID < trades[j].ID
		}
		return trades[i].TradedAt.Before(trades[j].TradedAt)
	})
}

// matchItemTrades replays one item's trades chronologically and computes
// the FIFO match outcome for every sell. Buys enter the lot queue with
// their full quantity; each sell walks the queue oldest-first, consuming
// min(sellRemaining, lot.remaining) per lot until exhausted or the queue
// is drained. Profit per lot is (sellPrice - lotBuyPrice) * consumed; the
// sell's ProfitPerItem is the rounded weighted average across all lots it
// touched, and MatchedTradeID records only the first lot. Sell quantity
// beyond all buy history (items from an untracked source) contributes no
// profit.
//
// The input must contain all trades for a single (character, item) pair;
// it is sorted in place.
func matchItemTrades(trades []models.Trade) map[uint]sellMatch {
	sortChronologically(trades)

	matches := make(map[uint]sellMatch)
	var lots []buyLot

	for _, t := range trades {
		switch {
		case t.IsBuy():
			lots = append(lots, buyLot{tradeID: t.ID, price: t.PricePerItem, remaining: t.Quantity})

		case t.IsSell():
			sellRemaining := t.Quantity
			var totalProfit, matched int64
			var firstLot *uint

			for i := range lots {
				if sellRemaining == 0 {
					break
				}
				if lots[i].remaining == 0 {
					continue
				}
				consumed := sellRemaining
				if lots[i].remaining < consumed {
					consumed = lots[i].remaining
				}
				totalProfit += (t.PricePerItem - lots[i].price) * consumed
				lots[i].remaining -= consumed
				sellRemaining -= consumed
				matched += consumed
				if firstLot == nil {
					id := lots[i].tradeID
					firstLot = &id
				}
			}

			m := sellMatch{}
			if matched > 0 {
				per := roundDiv(totalProfit, matched)
				total := totalProfit
				m = sellMatch{matchedTradeID: firstLot, profitPerItem: &per, totalProfit: &total}
			}
			matches[t.ID] = m
		}
	}

	return matches
}

// roundDiv divides and rounds to the nearest integer, halves away from
// zero. Used for weighted per-item profit and average buy price.
func roundDiv(numerator, denominator int64) int64 {
	return int64(math.Round(float64(numerator) / float64(denominator)))
}

// matchNewSell computes and persists the match fields for a sell that was
// just inserted. It replays the item's full history to rebuild lot state,
// but only the new sell's row is written; existing sells keep their stored
// matches until a full recalculation runs.
func matchNewSell(tx *gorm.DB, sell *models.Trade) error {
	var trades []models.Trade
	err := tx.Where("character_id = ? AND item_id = ?", sell.CharacterID, sell.ItemID).
		Find(&trades).Error
	if err != nil {
		return fmt.Errorf("could not load trades for matching: %w", err)
	}

	m, ok := matchItemTrades(trades)[sell.ID]
	if !ok || m.totalProfit == nil {
		return nil
	}

	sell.MatchedTradeID = m.matchedTradeID
	sell.ProfitPerItem = m.profitPerItem
	sell.TotalProfit = m.totalProfit
	if err := tx.Save(sell).Error; err != nil {
		return fmt.Errorf("could not save sell match: %w", err)
	}
	return nil
}

// recalculateProfitMatches clears every sell's match fields for the
// character and replays each item's entire trade sequence from scratch.
// Because the replay rebuilds lot state incrementally as it walks forward,
// editing or deleting any historical trade yields a globally consistent
// re-match rather than a patch. Running it twice in a row is a no-op the
// second time. Returns the number of sells that received a match.
func recalculateProfitMatches(tx *gorm.DB, characterID uint) (int64, error) {
	err := tx.Model(&models.Trade{}).
		Where("character_id = ? AND trade_type = ?", characterID, models.TradeTypeSell).
		Updates(map[string]interface{}{
			"matched_trade_id": nil,
			"profit_per_item":  nil,
			"total_profit":     nil,
		}).Error
	if err != nil {
		return 0, fmt.Errorf("could not clear profit matches: %w", err)
	}

	var trades []models.Trade
	if err := tx.Where("character_id = ?", characterID).Find(&trades).Error; err != nil {
		return 0, fmt.Errorf("could not load trades for recalculation: %w", err)
	}

	byItem := make(map[int64][]models.Trade)
	for _, t := range trades {
		byItem[t.ItemID] = append(byItem[t.ItemID], t)
	}

	var updated int64
	for _, itemTrades := range byItem {
		for sellID, m := range matchItemTrades(itemTrades) {
			if m.totalProfit == nil {
				continue
			}
			err := tx.Model(&models.Trade{}).Where("id = ?", sellID).
				Updates(map[string]interface{}{
					"matched_trade_id": m.matchedTradeID,
					"profit_per_item":  m.profitPerItem,
					"total_profit":     m.totalProfit,
				}).Error
			if err != nil {
				return updated, fmt.Errorf("could not save profit match for trade %d: %w", sellID, err)
			}
			updated++
		}
	}

	return updated, nil
}

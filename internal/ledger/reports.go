package ledger

import (
	"fmt"
	"sort"
	"time"

	"ge-ledger-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PriceSource supplies current market sell prices by item id, used to
// value unsold inventory.
type PriceSource interface {
	SellPrices() (map[int64]int64, error)
}

// FlipSummary aggregates one item's realized flipping outcome over a
// period.
type FlipSummary struct {
	ItemID         int64   `json:"item_id"`
	ItemName       string  `json:"item_name"`
	BoughtQuantity int64   `json:"bought_quantity"`
	SoldQuantity   int64   `json:"sold_quantity"`
	TotalProfit    int64   `json:"total_profit"`
	ROI            float64 `json:"roi"`
}

// ProfitSummary is the aggregated read view over the ledger for a period.
type ProfitSummary struct {
	Period           string        `json:"period"`
	TotalProfit      int64         `json:"total_profit"`
	TotalRevenue     int64         `json:"total_revenue"`
	TotalCost        int64         `json:"total_cost"`
	BuyCount         int64         `json:"buy_count"`
	SellCount        int64         `json:"sell_count"`
	UnrealizedProfit int64         `json:"unrealized_profit"`
	TopFlips         []FlipSummary `json:"top_flips"`
	TopLossFlips     []FlipSummary `json:"top_loss_flips"`
}

// Reporter is the read-side aggregator over the ledger and the derived
// position table. It adds no invariants of its own; everything it reports
// is a fold over state the mutation service already keeps consistent.
type Reporter struct {
	db       *gorm.DB
	prices   PriceSource
	logger   *zap.Logger
	topFlips int
}

// NewReporter creates a profit reporter. topFlips bounds the top/loss
// lists.
func NewReporter(db *gorm.DB, prices PriceSource, logger *zap.Logger, topFlips int) *Reporter {
	if topFlips <= 0 {
		topFlips = 10
	}
	return &Reporter{db: db, prices: prices, logger: logger, topFlips: topFlips}
}

// periodStart maps a period name to its window start. Zero time means no
// lower bound.
func periodStart(period string, now time.Time) (time.Time, error) {
	switch period {
	case "24h":
		return now.Add(-24 * time.Hour), nil
	case "7d":
		return now.AddDate(0, 0, -7), nil
	case "30d":
		return now.AddDate(0, 0, -30), nil
	case "all", "":
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unknown period %q", period)
	}
}

// GetProfitSummary aggregates realized profit over the period and values
// the remaining positions at the live market sell price for unrealized
// profit. Items without a live price contribute nothing unrealized.
func (r *Reporter) GetProfitSummary(characterID uint, period string) (*ProfitSummary, error) {
	since, err := periodStart(period, time.Now())
	if err != nil {
		return nil, err
	}

	query := r.db.Where("character_id = ?", characterID)
	if !since.IsZero() {
		query = query.Where("traded_at >= ?", since)
	}
	var trades []models.Trade
	if err := query.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("could not load trades for summary: %w", err)
	}

	summary := &ProfitSummary{
		Period:       period,
		TopFlips:     []FlipSummary{},
		TopLossFlips: []FlipSummary{},
	}
	flips := make(map[int64]*FlipSummary)

	for _, t := range trades {
		flip := flips[t.ItemID]
		if flip == nil {
			flip = &FlipSummary{ItemID: t.ItemID, ItemName: t.ItemName}
			flips[t.ItemID] = flip
		}
		if t.ItemName != "" {
			flip.ItemName = t.ItemName
		}

		if t.IsBuy() {
			summary.BuyCount++
			summary.TotalCost += t.TotalValue
			flip.BoughtQuantity += t.Quantity
			continue
		}

		summary.SellCount++
		summary.TotalRevenue += t.TotalValue
		flip.SoldQuantity += t.Quantity
		if t.TotalProfit != nil {
			summary.TotalProfit += *t.TotalProfit
			flip.TotalProfit += *t.TotalProfit
		}
	}

	for _, flip := range flips {
		// ROI against the matched cost basis: what the sold units cost is
		// their revenue minus the profit attributed to them.
		costBasis := int64(0)
		for _, t := range trades {
			if t.ItemID == flip.ItemID && t.IsSell() && t.TotalProfit != nil {
				costBasis += t.TotalValue - *t.TotalProfit
			}
		}
		if costBasis > 0 {
			flip.ROI = float64(flip.TotalProfit) / float64(costBasis)
		}
	}

	summary.TopFlips = rankFlips(flips, r.topFlips, false)
	summary.TopLossFlips = rankFlips(flips, r.topFlips, true)

	unrealized, err := r.unrealizedProfit(characterID)
	if err != nil {
		return nil, err
	}
	summary.UnrealizedProfit = unrealized

	return summary, nil
}

// rankFlips ranks items by realized profit. losses selects the negative
// side, ranked worst first.
func rankFlips(flips map[int64]*FlipSummary, n int, losses bool) []FlipSummary {
	var ranked []FlipSummary
	for _, flip := range flips {
		if losses && flip.TotalProfit < 0 {
			ranked = append(ranked, *flip)
		}
		if !losses && flip.TotalProfit > 0 {
			ranked = append(ranked, *flip)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if losses {
			return ranked[i].TotalProfit < ranked[j].TotalProfit
		}
		return ranked[i].TotalProfit > ranked[j].TotalProfit
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	if ranked == nil {
		ranked = []FlipSummary{}
	}
	return ranked
}

// unrealizedProfit values every held position at the live sell price
// against its weighted-average cost basis.
func (r *Reporter) unrealizedProfit(characterID uint) (int64, error) {
	var positions []models.InventoryPosition
	err := r.db.Where("character_id = ? AND remaining_quantity > 0", characterID).
		Find(&positions).Error
	if err != nil {
		return 0, fmt.Errorf("could not load positions for summary: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	livePrices, err := r.prices.SellPrices()
	if err != nil {
		// Unrealized profit is best-effort; realized numbers stay useful
		// when the price feed is down.
		r.logger.Warn("could not fetch live prices for unrealized profit", zap.Error(err))
		return 0, nil
	}

	var unrealized int64
	for _, pos := range positions {
		price, ok := livePrices[pos.ItemID]
		if !ok {
			continue
		}
		unrealized += (price - pos.AverageBuyPrice) * pos.RemainingQuantity
	}
	return unrealized, nil
}

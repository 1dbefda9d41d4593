package ledger

import (
	"testing"
	"time"

	"ge-ledger-go/internal/models"
	"github.com/stretchr/testify/assert"
)

func tradeAt(id uint, tradeType string, quantity, price int64, minute int) models.Trade {
	t := models.Trade{
		TradeType:    tradeType,
		Quantity:     quantity,
		PricePerItem: price,
		TotalValue:   quantity * price,
		TradedAt:     time.Date(2024, 6, 1, 12, minute, 0, 0, time.UTC),
	}
	t.ID = id
	return t
}

func TestMatchItemTrades_SpansMultipleLots(t *testing.T) {
	// buy 10 @ 100, buy 10 @ 200, sell 15 @ 300: the sell drains the first
	// lot (profit 200*10) and takes 5 from the second (profit 100*5).
	trades := []models.Trade{
		tradeAt(1, models.TradeTypeBuy, 10, 100, 1),
		tradeAt(2, models.TradeTypeBuy, 10, 200, 2),
		tradeAt(3, models.TradeTypeSell, 15, 300, 3),
	}

	matches := matchItemTrades(trades)

	m, ok := matches[3]
	assert.True(t, ok)
	assert.NotNil(t, m.totalProfit)
	assert.Equal(t, int64(2500), *m.totalProfit)
	assert.Equal(t, int64(167), *m.profitPerItem) // round(2500/15)
	assert.Equal(t, uint(1), *m.matchedTradeID)   // first lot touched
}

func TestMatchItemTrades_NoBuyHistory(t *testing.T) {
	trades := []models.Trade{
		tradeAt(1, models.TradeTypeSell, 5, 100, 1),
	}

	matches := matchItemTrades(trades)

	m, ok := matches[1]
	assert.True(t, ok)
	assert.Nil(t, m.matchedTradeID)
	assert.Nil(t, m.profitPerItem)
	assert.Nil(t, m.totalProfit)
}

func TestMatchItemTrades_PartiallyUnmatched(t *testing.T) {
	// Selling more than was ever bought: only the matched portion earns
	// profit, the rest contributes nothing.
	trades := []models.Trade{
		tradeAt(1, models.TradeTypeBuy, 5, 100, 1),
		tradeAt(2, models.TradeTypeSell, 10, 150, 2),
	}

	matches := matchItemTrades(trades)

	m := matches[2]
	assert.Equal(t, int64(250), *m.totalProfit) // (150-100)*5
	assert.Equal(t, int64(50), *m.profitPerItem)
	assert.Equal(t, uint(1), *m.matchedTradeID)
}

func TestMatchItemTrades_LaterSellSkipsDrainedLots(t *testing.T) {
	trades := []models.Trade{
		tradeAt(1, models.TradeTypeBuy, 10, 100, 1),
		tradeAt(2, models.TradeTypeBuy, 10, 300, 2),
		tradeAt(3, models.TradeTypeSell, 10, 200, 3), // drains lot 1
		tradeAt(4, models.TradeTypeSell, 10, 400, 4), // must consume lot 2
	}

	matches := matchItemTrades(trades)

	first := matches[3]
	assert.Equal(t, int64(1000), *first.totalProfit) // (200-100)*10
	assert.Equal(t, uint(1), *first.matchedTradeID)

	second := matches[4]
	assert.Equal(t, int64(1000), *second.totalProfit) // (400-300)*10
	assert.Equal(t, uint(2), *second.matchedTradeID)
}

func TestMatchItemTrades_LossIsNegative(t *testing.T) {
	trades := []models.Trade{
		tradeAt(1, models.TradeTypeBuy, 4, 500, 1),
		tradeAt(2, models.TradeTypeSell, 4, 350, 2),
	}

	matches := matchItemTrades(trades)

	m := matches[2]
	assert.Equal(t, int64(-600), *m.totalProfit)
	assert.Equal(t, int64(-150), *m.profitPerItem)
}

func TestMatchItemTrades_OrdersByTimestampNotInsertion(t *testing.T) {
	// The backdated buy (earlier TradedAt, later ID) must be consumed
	// first.
	trades := []models.Trade{
		tradeAt(5, models.TradeTypeBuy, 10, 200, 2),
		tradeAt(9, models.TradeTypeBuy, 10, 100, 1), // backdated
		tradeAt(7, models.TradeTypeSell, 10, 300, 3),
	}

	matches := matchItemTrades(trades)

	m := matches[7]
	assert.Equal(t, int64(2000), *m.totalProfit) // matched the 100 gp lot
	assert.Equal(t, uint(9), *m.matchedTradeID)
}

func TestRoundDiv(t *testing.T) {
	testCases := []struct {
		name        string
		numerator   int64
		denominator int64
		expected    int64
	}{
		{"rounds up", 2500, 15, 167},
		{"rounds down", 100, 3, 33},
		{"exact", 100, 4, 25},
		{"half rounds away from zero", 5, 2, 3},
		{"negative rounds away from zero", -2500, 15, -167},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, roundDiv(tc.numerator, tc.denominator))
		})
	}
}

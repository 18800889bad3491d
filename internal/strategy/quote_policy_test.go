package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadolabs/makerbot/internal/domain"
)

func testParams() Params {
	return Params{
		Symbol:           "BTC-PERP",
		OrderSize:        0.0015,
		SpreadPercentage: 0.0003,
		MaxLongPosition:  400,
		MaxShortPosition: -400,
	}
}

func snapshot(bid, ask float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Symbol:     "BTC-PERP",
		Bid:        bid,
		Ask:        ask,
		ObservedAt: time.Now(),
	}
}

func flat() domain.PositionSnapshot {
	return domain.PositionSnapshot{Symbol: "BTC-PERP"}
}

func TestQuotes_InsideMarketPricing(t *testing.T) {
	policy := New(testParams())

	quotes, err := policy.Quotes(snapshot(100.00, 100.10), flat())
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	buy, sell := quotes[0], quotes[1]
	require.Equal(t, domain.SideBuy, buy.Side)
	require.Equal(t, domain.SideSell, sell.Side)

	// mid = 100.05, adjustment = 100.05 * 0.0003 = 0.030015
	assert.InDelta(t, 100.030015, buy.Price, 1e-9)
	assert.InDelta(t, 100.069985, sell.Price, 1e-9)

	// Both quotes rest strictly inside the market.
	assert.Greater(t, buy.Price, 100.00)
	assert.Less(t, buy.Price, 100.10)
	assert.Greater(t, sell.Price, 100.00)
	assert.Less(t, sell.Price, 100.10)
	assert.Less(t, buy.Price, sell.Price)

	assert.Equal(t, 0.0015, buy.Size)
	assert.Equal(t, 0.0015, sell.Size)
}

func TestQuotes_NeverCrossOnWideSpreadPercentage(t *testing.T) {
	params := testParams()
	params.SpreadPercentage = 0.05 // far wider than the book spread
	policy := New(params)

	quotes, err := policy.Quotes(snapshot(100.00, 100.10), flat())
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	buy, sell := quotes[0], quotes[1]
	assert.Less(t, buy.Price, sell.Price)
	assert.Greater(t, buy.Price, 100.00)
	assert.Less(t, sell.Price, 100.10)
}

func TestQuotes_LongLimitSuppressesBuy(t *testing.T) {
	policy := New(testParams())

	// 4.1 base units at mid 100.05 is ~410 in quote currency, past the 400
	// long limit.
	position := domain.PositionSnapshot{Symbol: "BTC-PERP", Base: 4.1}

	quotes, err := policy.Quotes(snapshot(100.00, 100.10), position)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, domain.SideSell, quotes[0].Side)
}

func TestQuotes_ShortLimitSuppressesSell(t *testing.T) {
	policy := New(testParams())
	position := domain.PositionSnapshot{Symbol: "BTC-PERP", Base: -4.1}

	quotes, err := policy.Quotes(snapshot(100.00, 100.10), position)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, domain.SideBuy, quotes[0].Side)
}

func TestQuotes_ExactlyAtLimitSuppresses(t *testing.T) {
	policy := New(testParams())

	// Base chosen so exposure equals the limit exactly at mid 100.
	position := domain.PositionSnapshot{Symbol: "BTC-PERP", Base: 4}

	quotes, err := policy.Quotes(snapshot(99, 101), position)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, domain.SideSell, quotes[0].Side)
}

func TestQuotes_CrossedBook(t *testing.T) {
	policy := New(testParams())

	for _, tc := range []struct {
		name     string
		bid, ask float64
	}{
		{"crossed", 100.10, 100.00},
		{"locked", 100.00, 100.00},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := policy.Quotes(snapshot(tc.bid, tc.ask), flat())
			require.ErrorIs(t, err, domain.ErrStaleMarketData)
		})
	}
}

func TestQuotes_MissingData(t *testing.T) {
	policy := New(testParams())

	for _, tc := range []struct {
		name     string
		bid, ask float64
	}{
		{"empty book", 0, 0},
		{"no bid", 0, 100.10},
		{"no ask", 100.00, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := policy.Quotes(snapshot(tc.bid, tc.ask), flat())
			require.ErrorIs(t, err, domain.ErrMissingData)
		})
	}
}

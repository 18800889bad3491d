// Package strategy computes the desired quote set for one instrument. The
// policy is a pure function of the market and position snapshots; it never
// touches the venue or the order book.
package strategy

import (
	"fmt"

	"github.com/nadolabs/makerbot/internal/domain"
)

// maxAdjustFraction caps the spread adjustment at just under half the book
// spread so the two quotes can never cross each other or the opposite side
// of the book, whatever spread_percentage is configured.
const maxAdjustFraction = 0.49

// Params are the quoting parameters, fixed for the lifetime of a run.
type Params struct {
	Symbol string

	// OrderSize is the per-quote quantity in base-asset units.
	OrderSize float64

	// SpreadPercentage positions each quote inside the market: the buy rests
	// mid×SpreadPercentage above best bid, the sell the same distance below
	// best ask.
	SpreadPercentage float64

	// Position limits in quote currency. MaxShortPosition is negative.
	MaxLongPosition  float64
	MaxShortPosition float64
}

// QuotePolicy derives desired quotes from snapshots.
type QuotePolicy struct {
	params Params
}

// New creates a QuotePolicy with the given parameters.
func New(params Params) *QuotePolicy {
	return &QuotePolicy{params: params}
}

// Quotes returns the desired quote set for the given snapshots: both sides
// in the normal case, one side when the position sits at a limit, and an
// error when the inputs cannot be quoted against.
//
// ErrMissingData when a snapshot is absent or empty, ErrStaleMarketData when
// the book is crossed or locked.
func (q *QuotePolicy) Quotes(market domain.MarketSnapshot, position domain.PositionSnapshot) ([]domain.DesiredQuote, error) {
	if market.Bid <= 0 || market.Ask <= 0 {
		return nil, fmt.Errorf("strategy: no best bid/ask for %s: %w", q.params.Symbol, domain.ErrMissingData)
	}
	if market.Crossed() {
		return nil, fmt.Errorf("strategy: book crossed (%.2f/%.2f): %w", market.Bid, market.Ask, domain.ErrStaleMarketData)
	}

	mid := market.Mid()

	// Inside-market prices: each quote steps a fraction of mid inside the
	// current spread, capped so buy and sell always stay strictly between
	// best bid and best ask.
	adjust := mid * q.params.SpreadPercentage
	if cap := market.Spread() * maxAdjustFraction; adjust > cap {
		adjust = cap
	}
	buyPrice := market.Bid + adjust
	sellPrice := market.Ask - adjust

	// Directional bias: at or beyond a position bound, quote only the side
	// that reduces exposure. Limits are in quote currency, the venue reports
	// base units; convert at mid.
	exposure := position.QuoteValue(mid)
	placeBuy := exposure < q.params.MaxLongPosition
	placeSell := exposure > q.params.MaxShortPosition

	quotes := make([]domain.DesiredQuote, 0, 2)
	if placeBuy {
		quotes = append(quotes, domain.DesiredQuote{
			Side:  domain.SideBuy,
			Price: buyPrice,
			Size:  q.params.OrderSize,
		})
	}
	if placeSell {
		quotes = append(quotes, domain.DesiredQuote{
			Side:  domain.SideSell,
			Price: sellPrice,
			Size:  q.params.OrderSize,
		})
	}
	return quotes, nil
}

package domain

import "time"

// MarketSnapshot is the top of the venue's order book at one instant.
type MarketSnapshot struct {
	Symbol     string
	Bid        float64
	Ask        float64
	ObservedAt time.Time
}

// Mid returns the midpoint between best bid and best ask.
func (m MarketSnapshot) Mid() float64 {
	return (m.Bid + m.Ask) / 2
}

// Spread returns the absolute bid-ask spread.
func (m MarketSnapshot) Spread() float64 {
	return m.Ask - m.Bid
}

// Crossed reports whether the book is crossed or locked (ask at or below
// bid). Such a snapshot is transient venue state and must not be quoted
// against.
func (m MarketSnapshot) Crossed() bool {
	return m.Ask <= m.Bid
}

// PositionSnapshot is the account's net perp position in base-asset units.
// Positive is long, negative is short.
type PositionSnapshot struct {
	Symbol     string
	Base       float64
	ObservedAt time.Time
}

// QuoteValue converts the base position to quote currency at the given mark
// price. Position limits are denominated in quote currency while the venue
// reports base units, so every limit check goes through this conversion.
func (p PositionSnapshot) QuoteValue(mark float64) float64 {
	return p.Base * mark
}

// Balance is one spot balance row of a subaccount.
type Balance struct {
	ProductID uint32
	Amount    float64
}

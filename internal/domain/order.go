// Package domain holds the shared types of the market-making bot: order and
// market snapshots, the resting-order lifecycle, and the interfaces the
// storage and telemetry backends implement.
package domain

import "time"

// Side indicates whether an order buys or sells the base asset.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign returns +1 for buys and -1 for sells, matching the sign convention of
// the venue's order amounts.
func (s Side) Sign() int {
	if s == SideSell {
		return -1
	}
	return 1
}

// OrderStatus tracks the lifecycle of a resting order.
//
// Open orders rest on the venue's book. PendingCancel means a cancel was
// requested but the venue has not confirmed it; the order still occupies its
// side until confirmation. Cancelled and Filled are terminal.
type OrderStatus string

const (
	OrderStatusOpen          OrderStatus = "open"
	OrderStatusPendingCancel OrderStatus = "pending_cancel"
	OrderStatusCancelled     OrderStatus = "cancelled"
	OrderStatusFilled        OrderStatus = "filled"
)

// Terminal reports whether the status is a final state.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusFilled
}

// DesiredQuote is one side of the quoting policy's output: a passive limit
// order the bot wants resting on the book.
type DesiredQuote struct {
	Side  Side
	Price float64
	Size  float64
}

// RestingOrder is the bot's in-process view of one of its own orders on the
// venue.
type RestingOrder struct {
	ID       string // venue order digest
	Side     Side
	Price    float64
	Size     float64
	Status   OrderStatus
	PlacedAt time.Time
}

// Age returns how long the order has been resting as of now.
func (o RestingOrder) Age(now time.Time) time.Duration {
	return now.Sub(o.PlacedAt)
}

// OrderRecord is the persisted journal row for a placement and its eventual
// outcome. The journal is an audit trail; the live book never reads it back.
type OrderRecord struct {
	ID       string // venue order digest
	RunID    string // uuid identifying the bot process that placed it
	Symbol   string
	Side     Side
	Price    float64
	Size     float64
	Status   OrderStatus
	PlacedAt time.Time
	ClosedAt *time.Time
}

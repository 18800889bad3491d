// Package venue defines the capability set the trading loop needs from an
// exchange. The concrete Nado implementation lives in venue/nado.
package venue

import (
	"context"
	"time"

	"github.com/nadolabs/makerbot/internal/domain"
)

// OrderRequest describes a passive limit order to be placed. All orders are
// maker-only: the venue must reject any request that would cross the book.
type OrderRequest struct {
	Symbol string
	Side   domain.Side
	Price  float64
	Size   float64
}

// Order is a venue-side view of one of the account's resting orders.
type Order struct {
	ID       string
	Side     domain.Side
	Price    float64
	Size     float64
	PlacedAt time.Time
}

// MarketSource provides top-of-book snapshots. Both the REST client and the
// websocket feed implement it.
type MarketSource interface {
	BestBidAsk(ctx context.Context, symbol string) (domain.MarketSnapshot, error)
}

// Client is the full venue capability set used by the application modes.
type Client interface {
	MarketSource

	// Position returns the account's net perp position for the instrument.
	Position(ctx context.Context, symbol string) (domain.PositionSnapshot, error)

	// OpenOrders lists the account's resting orders for the instrument.
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)

	// PlaceOrder submits a maker-only limit order and returns the venue's
	// order identifier. ErrOrderRejected when the venue refuses it.
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)

	// CancelOrder cancels a resting order. ErrOrderNotFound when the order is
	// no longer on the book.
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// Balances returns the subaccount's spot balances.
	Balances(ctx context.Context) ([]domain.Balance, error)
}

package domain

import "context"

// StatusBus broadcasts per-tick status snapshots to external consumers
// (dashboards, alerting sidecars) over an ephemeral channel.
type StatusBus interface {
	// PublishStatus sends a tick status to all current subscribers.
	PublishStatus(ctx context.Context, st TickStatus) error

	// SubscribeStatus returns a channel of tick statuses. The channel closes
	// when ctx is cancelled.
	SubscribeStatus(ctx context.Context) (<-chan TickStatus, error)
}

// QuoteCache stores the last observed top of book per symbol with a TTL so
// read-only tooling can serve prices without hitting the venue.
type QuoteCache interface {
	SetTopOfBook(ctx context.Context, snap MarketSnapshot) error

	// TopOfBook returns the cached best bid/ask. ErrNotFound when the key is
	// missing or expired.
	TopOfBook(ctx context.Context, symbol string) (MarketSnapshot, error)
}

// Package book tracks the bot's own resting orders, at most one per side.
// The trading loop is the only writer, so the book carries no locking.
package book

import (
	"fmt"
	"time"

	"github.com/nadolabs/makerbot/internal/domain"
)

// Book holds the resting orders the bot believes are live on the venue.
type Book struct {
	orders map[domain.Side]*domain.RestingOrder
}

// New returns an empty book.
func New() *Book {
	return &Book{orders: make(map[domain.Side]*domain.RestingOrder, 2)}
}

// Get returns the order occupying a side, or nil when the side is vacant.
// Orders pending cancellation still occupy their side.
func (b *Book) Get(side domain.Side) *domain.RestingOrder {
	return b.orders[side]
}

// RecordPlaced registers a newly placed order. A side can only hold one
// order at a time; placing into an occupied side is a bookkeeping bug.
func (b *Book) RecordPlaced(order domain.RestingOrder) error {
	if existing := b.orders[order.Side]; existing != nil {
		return fmt.Errorf("book: %s occupied by %s: %w", order.Side, existing.ID, domain.ErrDuplicateOrder)
	}
	order.Status = domain.OrderStatusOpen
	b.orders[order.Side] = &order
	return nil
}

// MarkCancelRequested flags an order whose cancel failed on the venue. The
// order keeps occupying its side until the venue confirms it is gone.
func (b *Book) MarkCancelRequested(side domain.Side) {
	if o := b.orders[side]; o != nil {
		o.Status = domain.OrderStatusPendingCancel
	}
}

// Remove vacates a side. Safe to call on an already vacant side.
func (b *Book) Remove(side domain.Side) {
	delete(b.orders, side)
}

// Open returns the orders currently occupying sides, buy first.
func (b *Book) Open() []domain.RestingOrder {
	out := make([]domain.RestingOrder, 0, 2)
	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		if o := b.orders[side]; o != nil {
			out = append(out, *o)
		}
	}
	return out
}

// Occupied reports whether a side holds an order.
func (b *Book) Occupied(side domain.Side) bool {
	return b.orders[side] != nil
}

// OldestAge returns the age of the oldest resting order, zero when empty.
func (b *Book) OldestAge(now time.Time) time.Duration {
	var oldest time.Duration
	for _, o := range b.orders {
		if age := o.Age(now); age > oldest {
			oldest = age
		}
	}
	return oldest
}

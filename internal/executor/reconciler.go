// Package executor reconciles the desired quote set against the orders
// resting on the venue. Each tick it decides, per side, whether to leave an
// order alone, cancel it, place a new one, or refresh it with a
// cancel-then-place.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadolabs/makerbot/internal/book"
	"github.com/nadolabs/makerbot/internal/domain"
	"github.com/nadolabs/makerbot/internal/venue"
)

// Result summarizes what one reconciliation pass did.
type Result struct {
	Placed    int
	Cancelled int

	// Filled holds orders that left the venue without our cancel taking
	// effect, which for post-only resting orders means they traded.
	Filled []domain.RestingOrder
}

// Reconciler drives order placement for one instrument. It owns the local
// order book and mirrors every state change into the journal when one is
// configured.
type Reconciler struct {
	venue        venue.Client
	book         *book.Book
	journal      domain.OrderJournal
	symbol       string
	runID        string
	orderTimeout time.Duration
	logger       *slog.Logger

	now func() time.Time
}

// New creates a Reconciler. journal may be nil, in which case order state
// lives only in memory.
func New(client venue.Client, journal domain.OrderJournal, symbol, runID string, orderTimeout time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		venue:        client,
		book:         book.New(),
		journal:      journal,
		symbol:       symbol,
		runID:        runID,
		orderTimeout: orderTimeout,
		logger:       logger.With(slog.String("component", "executor")),
		now:          time.Now,
	}
}

// Book exposes the local order book for status reporting.
func (r *Reconciler) Book() *book.Book {
	return r.book
}

// Reconcile brings the venue in line with the desired quote set. Failures on
// one side never block the other; a failed placement is simply retried by the
// next tick's desired set.
func (r *Reconciler) Reconcile(ctx context.Context, desired []domain.DesiredQuote) (Result, error) {
	var res Result

	if err := r.resolvePendingCancels(ctx, &res); err != nil {
		return res, err
	}

	wanted := make(map[domain.Side]domain.DesiredQuote, len(desired))
	for _, q := range desired {
		wanted[q.Side] = q
	}

	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		quote, want := wanted[side]
		open := r.book.Get(side)

		switch {
		case !want && open == nil:
			// Nothing desired, nothing resting.

		case !want:
			r.cancel(ctx, *open, &res)

		case open == nil:
			r.place(ctx, quote, &res)

		default:
			if open.Age(r.now()) < r.orderTimeout {
				// Still fresh; leave it resting.
				continue
			}
			// Refresh: the cancel must land before the replacement goes out,
			// otherwise both could rest at once.
			if !r.cancel(ctx, *open, &res) {
				continue
			}
			r.place(ctx, quote, &res)
		}
	}

	return res, nil
}

// CancelAll cancels every order the venue reports for our subaccount and
// clears the local book. Used at startup to sweep orphans from a previous
// run, and at shutdown to leave the venue clean.
func (r *Reconciler) CancelAll(ctx context.Context) error {
	orders, err := r.venue.OpenOrders(ctx, r.symbol)
	if err != nil {
		return fmt.Errorf("executor: list open orders: %w", err)
	}

	var errs []error
	for _, o := range orders {
		if err := r.venue.CancelOrder(ctx, r.symbol, o.ID); err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			errs = append(errs, err)
			continue
		}
		r.logger.Info("cancelled order",
			slog.String("order_id", o.ID),
			slog.String("side", string(o.Side)),
		)
		r.journalClose(ctx, o.ID, domain.OrderStatusCancelled)
	}

	r.book.Remove(domain.SideBuy)
	r.book.Remove(domain.SideSell)
	return errors.Join(errs...)
}

// resolvePendingCancels checks orders whose cancel previously failed against
// the venue's view. An order the venue no longer reports has resolved (filled
// or cancelled); one still resting gets another cancel attempt.
func (r *Reconciler) resolvePendingCancels(ctx context.Context, res *Result) error {
	var pending []domain.RestingOrder
	for _, o := range r.book.Open() {
		if o.Status == domain.OrderStatusPendingCancel {
			pending = append(pending, o)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	openOnVenue, err := r.venue.OpenOrders(ctx, r.symbol)
	if err != nil {
		return fmt.Errorf("executor: resolve pending cancels: %w", err)
	}
	resting := make(map[string]bool, len(openOnVenue))
	for _, o := range openOnVenue {
		resting[o.ID] = true
	}

	for _, o := range pending {
		if resting[o.ID] {
			r.cancel(ctx, o, res)
			continue
		}
		r.logger.Info("pending cancel resolved off venue",
			slog.String("order_id", o.ID),
			slog.String("side", string(o.Side)),
		)
		r.book.Remove(o.Side)
		r.journalClose(ctx, o.ID, domain.OrderStatusCancelled)
	}
	return nil
}

// cancel removes an order from the venue and the book. Returns true when the
// side is vacant afterwards. A cancel that fails for any reason other than
// the order already being gone leaves the order occupying its side in
// pending-cancel state, so the bot never double-quotes that side.
func (r *Reconciler) cancel(ctx context.Context, order domain.RestingOrder, res *Result) bool {
	err := r.venue.CancelOrder(ctx, r.symbol, order.ID)
	switch {
	case err == nil:
		r.logger.Info("cancelled order",
			slog.String("order_id", order.ID),
			slog.String("side", string(order.Side)),
			slog.Float64("price", order.Price),
		)
		r.book.Remove(order.Side)
		r.journalClose(ctx, order.ID, domain.OrderStatusCancelled)
		res.Cancelled++
		return true

	case errors.Is(err, domain.ErrOrderNotFound):
		// Already gone from the venue. A post-only order that disappeared
		// before we cancelled it was filled.
		r.logger.Info("order gone before cancel, treating as filled",
			slog.String("order_id", order.ID),
			slog.String("side", string(order.Side)),
		)
		r.book.Remove(order.Side)
		r.journalClose(ctx, order.ID, domain.OrderStatusFilled)
		res.Filled = append(res.Filled, order)
		return true

	default:
		r.logger.Warn("cancel failed, marking pending",
			slog.String("order_id", order.ID),
			slog.String("side", string(order.Side)),
			slog.String("error", err.Error()),
		)
		r.book.MarkCancelRequested(order.Side)
		return false
	}
}

// place submits one desired quote. A failed placement is logged and dropped;
// the next tick recomputes the desired set from fresh data anyway.
func (r *Reconciler) place(ctx context.Context, quote domain.DesiredQuote, res *Result) {
	id, err := r.venue.PlaceOrder(ctx, venue.OrderRequest{
		Symbol: r.symbol,
		Side:   quote.Side,
		Price:  quote.Price,
		Size:   quote.Size,
	})
	if err != nil {
		r.logger.Warn("place failed",
			slog.String("side", string(quote.Side)),
			slog.Float64("price", quote.Price),
			slog.Float64("size", quote.Size),
			slog.String("error", err.Error()),
		)
		return
	}

	placedAt := r.now()
	order := domain.RestingOrder{
		ID:       id,
		Side:     quote.Side,
		Price:    quote.Price,
		Size:     quote.Size,
		PlacedAt: placedAt,
	}
	if err := r.book.RecordPlaced(order); err != nil {
		// A place into an occupied side means the cancel bookkeeping broke;
		// surface it loudly but keep the venue-side order.
		r.logger.Error("book rejected placed order",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	r.logger.Info("placed order",
		slog.String("order_id", id),
		slog.String("side", string(quote.Side)),
		slog.Float64("price", quote.Price),
		slog.Float64("size", quote.Size),
	)
	res.Placed++

	if r.journal != nil {
		rec := domain.OrderRecord{
			ID:       id,
			RunID:    r.runID,
			Symbol:   r.symbol,
			Side:     quote.Side,
			Price:    quote.Price,
			Size:     quote.Size,
			Status:   domain.OrderStatusOpen,
			PlacedAt: placedAt,
		}
		if err := r.journal.Record(ctx, rec); err != nil {
			r.logger.Warn("journal record failed",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// journalClose records a terminal status for an order. Journal failures are
// logged, never fatal; the journal is an audit trail, not the source of truth.
func (r *Reconciler) journalClose(ctx context.Context, orderID string, status domain.OrderStatus) {
	if r.journal == nil {
		return
	}
	if err := r.journal.UpdateStatus(ctx, orderID, status, r.now()); err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn("journal update failed",
			slog.String("order_id", orderID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}

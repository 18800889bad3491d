package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nadolabs/makerbot/internal/domain"
)

// recentOrderLimit bounds the journal history shown by the status report.
const recentOrderLimit = 20

// StatusMode prints an operational report from the telemetry backends: the
// cached top of book from Redis and the recent order history from the
// journal. With watch enabled it subscribes to the status bus instead and
// streams one line per tick until interrupted. Requires at least one of
// Redis or Postgres to be enabled; it never talks to the venue.
func (a *App) StatusMode(ctx context.Context, deps *Dependencies) error {
	if a.watch {
		return a.watchStatus(ctx, deps)
	}
	return writeStatusReport(ctx, os.Stdout, a.cfg.Trading.Symbol, deps.QuoteCache, deps.Journal)
}

func (a *App) watchStatus(ctx context.Context, deps *Dependencies) error {
	if deps.StatusBus == nil {
		return fmt.Errorf("app: status watch requires redis to be enabled")
	}

	ch, err := deps.StatusBus.SubscribeStatus(ctx)
	if err != nil {
		return fmt.Errorf("app: status watch: subscribe: %w", err)
	}

	// The bus closes the channel when ctx is cancelled.
	for st := range ch {
		fmt.Println(formatTickStatus(st))
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// writeStatusReport renders the one-shot report. Either backend may be nil;
// the report covers whatever telemetry is configured.
func writeStatusReport(ctx context.Context, w io.Writer, symbol string, quotes domain.QuoteCache, journal domain.OrderJournal) error {
	if quotes == nil && journal == nil {
		return fmt.Errorf("app: status mode requires redis or postgres to be enabled")
	}

	if quotes != nil {
		snap, err := quotes.TopOfBook(ctx, symbol)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			fmt.Fprintf(w, "%s: no cached quote (is the bot running?)\n", symbol)
		case err != nil:
			return fmt.Errorf("app: status mode: quote cache: %w", err)
		default:
			fmt.Fprintf(w, "%s  bid %.2f  ask %.2f  mid %.2f  as of %s\n",
				symbol, snap.Bid, snap.Ask, snap.Mid(),
				snap.ObservedAt.UTC().Format("15:04:05Z"))
		}
	}

	if journal != nil {
		orders, err := journal.ListRecent(ctx, symbol, recentOrderLimit)
		if err != nil {
			return fmt.Errorf("app: status mode: journal: %w", err)
		}
		if len(orders) == 0 {
			fmt.Fprintln(w, "no journaled orders")
			return nil
		}

		fmt.Fprintf(w, "last %d orders:\n", len(orders))
		for _, o := range orders {
			closed := "-"
			if o.ClosedAt != nil {
				closed = o.ClosedAt.UTC().Format("15:04:05Z")
			}
			fmt.Fprintf(w, "  %s  %-4s %12.6f @ %.2f  %-14s placed %s  closed %s\n",
				shortID(o.ID), o.Side, o.Size, o.Price, o.Status,
				o.PlacedAt.UTC().Format("15:04:05Z"), closed)
		}
	}
	return nil
}

// formatTickStatus renders one status-bus update as a single line.
func formatTickStatus(st domain.TickStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  bid %.2f  ask %.2f  pos %.6f  open b%d/s%d  placed %d  cancelled %d",
		st.At.UTC().Format("15:04:05Z"), st.Symbol,
		st.Bid, st.Ask, st.PositionBase,
		st.OpenBuys, st.OpenSells, st.Placed, st.Cancelled)
	if st.Degraded {
		b.WriteString("  DEGRADED")
	}
	return b.String()
}

// shortID truncates a venue digest for column display.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + ".."
}

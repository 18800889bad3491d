package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nadolabs/makerbot/internal/domain"
	"github.com/nadolabs/makerbot/internal/executor"
	"github.com/nadolabs/makerbot/internal/notify"
	"github.com/nadolabs/makerbot/internal/scheduler"
	"github.com/nadolabs/makerbot/internal/strategy"
	"github.com/nadolabs/makerbot/internal/venue"
	"github.com/nadolabs/makerbot/internal/venue/nado"
)

// shutdownTimeout bounds the shutdown sweep that cancels resting orders
// after the run context is gone.
const shutdownTimeout = 10 * time.Second

// RunMode is the continuous market-making loop: sweep orphans, then quote
// both sides of the book until the context is cancelled, then sweep again so
// nothing rests after the bot exits.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	runID := uuid.New().String()
	log := a.logger.With(slog.String("run_id", runID))

	policy := strategy.New(strategy.Params{
		Symbol:           a.cfg.Trading.Symbol,
		OrderSize:        a.cfg.Trading.OrderSize,
		SpreadPercentage: a.cfg.Trading.SpreadPercentage,
		MaxLongPosition:  a.cfg.Trading.MaxLongPosition,
		MaxShortPosition: a.cfg.Trading.MaxShortPosition,
	})

	recon := executor.New(
		deps.Venue,
		deps.Journal,
		a.cfg.Trading.Symbol,
		runID,
		a.cfg.Trading.OrderTimeout.Duration,
		log,
	)

	// Sweep orders left over from a previous run before quoting anything.
	if err := recon.CancelAll(ctx); err != nil {
		return fmt.Errorf("app: startup sweep: %w", err)
	}
	log.InfoContext(ctx, "startup sweep complete")

	// Market data comes from the websocket feed when one is configured; the
	// REST orderbook endpoint is the fallback.
	var market venue.MarketSource = deps.Venue
	var feed *nado.Feed
	if a.cfg.Nado.WsURL != "" {
		feed = nado.NewFeed(
			a.cfg.Nado.WsURL,
			a.cfg.Trading.Symbol,
			a.cfg.Trading.TickerID,
			3*a.cfg.Trading.RefreshInterval.Duration,
			log,
		)
		market = feed
	}

	loop := scheduler.New(
		scheduler.Config{
			Symbol:          a.cfg.Trading.Symbol,
			RefreshInterval: a.cfg.Trading.RefreshInterval.Duration,
			CallTimeout:     a.cfg.Trading.CallTimeout.Duration,
		},
		market,
		deps.Venue,
		policy,
		recon,
		log,
	)
	if deps.StatusBus != nil {
		loop.SetStatusBus(deps.StatusBus)
	}
	if deps.QuoteCache != nil {
		loop.SetQuoteCache(deps.QuoteCache)
	}
	loop.OnDegraded(func(consecutive int) {
		_ = deps.Notifier.Notify(ctx, notify.Event{
			Type:  notify.EventDegradedHealth,
			Title: "Degraded health",
			Body:  "venue unreachable across consecutive ticks",
			Fields: []notify.Field{
				{Name: "symbol", Value: a.cfg.Trading.Symbol},
				{Name: "consecutive_failures", Value: strconv.Itoa(consecutive)},
			},
		})
	})
	loop.OnFilled(func(order domain.RestingOrder) {
		_ = deps.Notifier.Notify(ctx, notify.Event{
			Type:  notify.EventOrderFilled,
			Title: "Order filled",
			Body:  a.cfg.Trading.Symbol,
			Fields: []notify.Field{
				{Name: "side", Value: string(order.Side)},
				{Name: "size", Value: strconv.FormatFloat(order.Size, 'f', -1, 64)},
				{Name: "price", Value: strconv.FormatFloat(order.Price, 'f', 2, 64)},
			},
		})
	})

	_ = deps.Notifier.Notify(ctx, notify.Event{
		Type:  notify.EventBotStarted,
		Title: "Bot started",
		Body:  fmt.Sprintf("quoting %s every %s", a.cfg.Trading.Symbol, a.cfg.Trading.RefreshInterval.Duration),
		Fields: []notify.Field{
			{Name: "run_id", Value: runID},
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	if feed != nil {
		g.Go(func() error { return feed.Run(gctx) })
	}
	g.Go(func() error { return loop.Run(gctx) })
	if deps.Archiver != nil {
		g.Go(func() error { return a.runArchiver(gctx, deps) })
	}

	err := g.Wait()
	if feed != nil {
		feed.Close()
	}

	// The run context is gone; sweep with a fresh one so the venue is left
	// clean even on cancellation.
	sweepCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sweepErr := recon.CancelAll(sweepCtx); sweepErr != nil {
		log.Error("shutdown sweep failed", slog.String("error", sweepErr.Error()))
	} else {
		log.Info("shutdown sweep complete")
	}

	_ = deps.Notifier.Notify(sweepCtx, notify.Event{
		Type:  notify.EventBotStopped,
		Title: "Bot stopped",
		Body:  fmt.Sprintf("stopped quoting %s", a.cfg.Trading.Symbol),
		Fields: []notify.Field{
			{Name: "run_id", Value: runID},
		},
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: run mode: %w", err)
	}
	return nil
}

// runArchiver periodically exports aged journal rows to blob storage.
func (a *App) runArchiver(ctx context.Context, deps *Dependencies) error {
	log := a.logger.With(slog.String("component", "archive_loop"))
	retention := time.Duration(a.cfg.S3.ArchiveRetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(a.cfg.S3.ArchiveInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			count, err := deps.Archiver.ArchiveOrders(ctx, cutoff)
			if err != nil {
				log.Warn("archive pass failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				log.Info("archive pass complete", slog.Int64("orders", count))
			}
		}
	}
}

// BalanceMode prints the subaccount's spot balances and exits.
func (a *App) BalanceMode(ctx context.Context, deps *Dependencies) error {
	balances, err := deps.Venue.Balances(ctx)
	if err != nil {
		return fmt.Errorf("app: balance mode: %w", err)
	}

	fmt.Printf("subaccount %s\n", deps.Venue.Sender())
	if len(balances) == 0 {
		fmt.Println("no balances")
		return nil
	}
	for _, b := range balances {
		fmt.Printf("  product %d: %.8f\n", b.ProductID, b.Amount)
	}
	return nil
}

// PositionsMode prints the instrument's net perp position and exits.
func (a *App) PositionsMode(ctx context.Context, deps *Dependencies) error {
	symbol := a.cfg.Trading.Symbol

	pos, err := deps.Venue.Position(ctx, symbol)
	if err != nil {
		return fmt.Errorf("app: positions mode: %w", err)
	}

	fmt.Printf("%s position: %.8f\n", symbol, pos.Base)

	// Best effort valuation at the current mid.
	if snap, err := deps.Venue.BestBidAsk(ctx, symbol); err == nil {
		fmt.Printf("  mark %.2f, value %.2f\n", snap.Mid(), pos.QuoteValue(snap.Mid()))
	}
	return nil
}

// PriceMode prints the current top of book and exits. With watch enabled it
// subscribes to the websocket feed instead and streams every update until
// interrupted.
func (a *App) PriceMode(ctx context.Context, deps *Dependencies) error {
	symbol := a.cfg.Trading.Symbol

	if a.watch && a.cfg.Nado.WsURL != "" {
		feed := nado.NewFeed(a.cfg.Nado.WsURL, symbol, a.cfg.Trading.TickerID, 0, a.logger)
		feed.OnUpdate(func(snap domain.MarketSnapshot) {
			fmt.Printf("%s  bid %.2f  ask %.2f  mid %.2f  spread %.2f\n",
				symbol, snap.Bid, snap.Ask, snap.Mid(), snap.Spread())
		})
		defer feed.Close()
		if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: price watch: %w", err)
		}
		return nil
	}

	snap, err := deps.Venue.BestBidAsk(ctx, symbol)
	if err != nil {
		return fmt.Errorf("app: price mode: %w", err)
	}

	fmt.Printf("%s  bid %.2f  ask %.2f  mid %.2f  spread %.2f\n",
		symbol, snap.Bid, snap.Ask, snap.Mid(), snap.Spread())
	return nil
}

// OrderMode performs a single quoting pass: read the market, compute the
// desired quotes, place them, and exit. Orders are left resting and die on
// venue-side expiry. Useful for verifying signing and connectivity.
func (a *App) OrderMode(ctx context.Context, deps *Dependencies) error {
	symbol := a.cfg.Trading.Symbol

	policy := strategy.New(strategy.Params{
		Symbol:           symbol,
		OrderSize:        a.cfg.Trading.OrderSize,
		SpreadPercentage: a.cfg.Trading.SpreadPercentage,
		MaxLongPosition:  a.cfg.Trading.MaxLongPosition,
		MaxShortPosition: a.cfg.Trading.MaxShortPosition,
	})

	market, err := deps.Venue.BestBidAsk(ctx, symbol)
	if err != nil {
		return fmt.Errorf("app: order mode: market: %w", err)
	}
	position, err := deps.Venue.Position(ctx, symbol)
	if err != nil {
		return fmt.Errorf("app: order mode: position: %w", err)
	}

	quotes, err := policy.Quotes(market, position)
	if err != nil {
		return fmt.Errorf("app: order mode: %w", err)
	}

	for _, q := range quotes {
		id, err := deps.Venue.PlaceOrder(ctx, venue.OrderRequest{
			Symbol: symbol,
			Side:   q.Side,
			Price:  q.Price,
			Size:   q.Size,
		})
		if err != nil {
			return fmt.Errorf("app: order mode: place %s: %w", q.Side, err)
		}
		fmt.Printf("placed %s %.6f @ %.2f  digest %s\n", q.Side, q.Size, q.Price, id)
	}
	return nil
}

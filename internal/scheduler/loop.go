// Package scheduler runs the quoting loop: at a fixed period it reads the
// market and the position, computes the desired quotes, and hands them to the
// reconciler. One tick failing never stops the loop.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nadolabs/makerbot/internal/domain"
	"github.com/nadolabs/makerbot/internal/executor"
	"github.com/nadolabs/makerbot/internal/strategy"
	"github.com/nadolabs/makerbot/internal/venue"
)

// defaultDegradedAfter is how many consecutive connectivity failures flip the
// loop into degraded health.
const defaultDegradedAfter = 3

// PositionSource reads the current position for one instrument.
type PositionSource interface {
	Position(ctx context.Context, symbol string) (domain.PositionSnapshot, error)
}

// Config holds the loop timing parameters. CallTimeout bounds all venue work
// of one tick and must sit strictly below RefreshInterval so ticks never
// overlap.
type Config struct {
	Symbol          string
	RefreshInterval time.Duration
	CallTimeout     time.Duration

	// DegradedAfter overrides the consecutive-failure threshold; zero keeps
	// the default.
	DegradedAfter int
}

// Loop ties the market source, position source, quote policy, and reconciler
// together into the periodic trading loop.
type Loop struct {
	cfg       Config
	market    venue.MarketSource
	positions PositionSource
	policy    *strategy.QuotePolicy
	recon     *executor.Reconciler
	logger    *slog.Logger

	// Optional collaborators, nil when the backing service is disabled.
	status domain.StatusBus
	quotes domain.QuoteCache

	onDegraded func(consecutive int)
	onFilled   func(order domain.RestingOrder)

	failures int
	degraded bool

	// Replaceable in tests.
	now       func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

// New creates a Loop.
func New(cfg Config, market venue.MarketSource, positions PositionSource, policy *strategy.QuotePolicy, recon *executor.Reconciler, logger *slog.Logger) *Loop {
	if cfg.DegradedAfter <= 0 {
		cfg.DegradedAfter = defaultDegradedAfter
	}
	return &Loop{
		cfg:       cfg,
		market:    market,
		positions: positions,
		policy:    policy,
		recon:     recon,
		logger:    logger.With(slog.String("component", "scheduler")),
		now:       time.Now,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// SetStatusBus publishes a TickStatus after every tick.
func (l *Loop) SetStatusBus(bus domain.StatusBus) { l.status = bus }

// SetQuoteCache mirrors each tick's top of book into the cache.
func (l *Loop) SetQuoteCache(cache domain.QuoteCache) { l.quotes = cache }

// OnDegraded registers a callback fired once each time the loop enters
// degraded health.
func (l *Loop) OnDegraded(fn func(consecutive int)) { l.onDegraded = fn }

// OnFilled registers a callback fired for each detected fill.
func (l *Loop) OnFilled(fn func(order domain.RestingOrder)) { l.onFilled = fn }

// Run ticks until the context is cancelled. The first tick fires immediately.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("loop started",
		slog.String("symbol", l.cfg.Symbol),
		slog.Duration("refresh_interval", l.cfg.RefreshInterval),
		slog.Duration("call_timeout", l.cfg.CallTimeout),
	)
	defer l.logger.Info("loop stopped")

	ticks, stop := l.newTicker(l.cfg.RefreshInterval)
	defer stop()

	l.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			l.runTick(ctx)
		}
	}
}

// runTick executes one tick and folds its outcome into the health state.
func (l *Loop) runTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	tickCtx, cancel := context.WithTimeout(ctx, l.cfg.CallTimeout)
	err := l.tick(tickCtx)
	cancel()

	if err == nil {
		if l.degraded {
			l.logger.Info("connectivity recovered",
				slog.Int("after_failures", l.failures),
			)
		}
		l.failures = 0
		l.degraded = false
		return
	}
	if ctx.Err() != nil {
		return
	}

	l.logger.Warn("tick failed", slog.String("error", err.Error()))

	if !isConnectivity(err) {
		return
	}
	l.failures++
	if l.failures >= l.cfg.DegradedAfter && !l.degraded {
		l.degraded = true
		l.logger.Error("connectivity degraded",
			slog.Int("consecutive_failures", l.failures),
		)
		if l.onDegraded != nil {
			l.onDegraded(l.failures)
		}
	}
}

// tick performs one full read-decide-reconcile pass.
func (l *Loop) tick(ctx context.Context) error {
	var (
		market   domain.MarketSnapshot
		position domain.PositionSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		market, err = l.market.BestBidAsk(gctx, l.cfg.Symbol)
		return err
	})
	g.Go(func() error {
		var err error
		position, err = l.positions.Position(gctx, l.cfg.Symbol)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if l.quotes != nil {
		if err := l.quotes.SetTopOfBook(ctx, market); err != nil {
			l.logger.Warn("quote cache update failed", slog.String("error", err.Error()))
		}
	}

	desired, err := l.policy.Quotes(market, position)
	if err != nil {
		// Unquotable data leaves resting orders alone rather than pulling
		// them on a glitch; stale quotes die on venue-side expiry anyway.
		return err
	}

	res, err := l.recon.Reconcile(ctx, desired)
	if l.onFilled != nil {
		for _, o := range res.Filled {
			l.onFilled(o)
		}
	}
	if err != nil {
		return err
	}

	l.publishStatus(ctx, market, position, res)
	return nil
}

func (l *Loop) publishStatus(ctx context.Context, market domain.MarketSnapshot, position domain.PositionSnapshot, res executor.Result) {
	mid := market.Mid()
	status := domain.TickStatus{
		Symbol:        l.cfg.Symbol,
		Bid:           market.Bid,
		Ask:           market.Ask,
		Mid:           mid,
		PositionBase:  position.Base,
		PositionQuote: position.QuoteValue(mid),
		Placed:        res.Placed,
		Cancelled:     res.Cancelled,
		Degraded:      l.degraded,
		At:            l.now().UTC(),
	}
	book := l.recon.Book()
	if book.Occupied(domain.SideBuy) {
		status.OpenBuys = 1
	}
	if book.Occupied(domain.SideSell) {
		status.OpenSells = 1
	}

	l.logger.Info("tick",
		slog.Float64("bid", market.Bid),
		slog.Float64("ask", market.Ask),
		slog.Float64("position", position.Base),
		slog.Int("placed", res.Placed),
		slog.Int("cancelled", res.Cancelled),
	)

	if l.status != nil {
		if err := l.status.PublishStatus(ctx, status); err != nil {
			l.logger.Warn("status publish failed", slog.String("error", err.Error()))
		}
	}
}

// isConnectivity reports whether an error stems from failing to reach the
// venue rather than from the venue refusing a request.
func isConnectivity(err error) bool {
	return errors.Is(err, domain.ErrConnectivity) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrWSDisconnect)
}

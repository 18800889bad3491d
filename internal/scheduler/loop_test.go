package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadolabs/makerbot/internal/domain"
	"github.com/nadolabs/makerbot/internal/executor"
	"github.com/nadolabs/makerbot/internal/strategy"
	"github.com/nadolabs/makerbot/internal/venue"
)

// fakeVenue serves scripted snapshots and accepts every order.
type fakeVenue struct {
	mu        sync.Mutex
	market    domain.MarketSnapshot
	marketErr error
	position  domain.PositionSnapshot
	posErr    error
	nextID    int
}

func (f *fakeVenue) BestBidAsk(context.Context, string) (domain.MarketSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marketErr != nil {
		return domain.MarketSnapshot{}, f.marketErr
	}
	return f.market, nil
}

func (f *fakeVenue) Position(context.Context, string) (domain.PositionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.posErr != nil {
		return domain.PositionSnapshot{}, f.posErr
	}
	return f.position, nil
}

func (f *fakeVenue) Balances(context.Context) ([]domain.Balance, error) { return nil, nil }

func (f *fakeVenue) OpenOrders(context.Context, string) ([]venue.Order, error) {
	return nil, nil
}

func (f *fakeVenue) PlaceOrder(_ context.Context, req venue.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("order-%d", f.nextID), nil
}

func (f *fakeVenue) CancelOrder(context.Context, string, string) error { return nil }

func (f *fakeVenue) setMarketErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketErr = err
}

// memoryBus collects published statuses in memory.
type memoryBus struct {
	mu       sync.Mutex
	statuses []domain.TickStatus
}

func (b *memoryBus) PublishStatus(_ context.Context, st domain.TickStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, st)
	return nil
}

func (b *memoryBus) SubscribeStatus(context.Context) (<-chan domain.TickStatus, error) {
	return nil, nil
}

func (b *memoryBus) last() (domain.TickStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.statuses) == 0 {
		return domain.TickStatus{}, false
	}
	return b.statuses[len(b.statuses)-1], true
}

func testLoop(f *fakeVenue) *Loop {
	logger := slog.New(slog.DiscardHandler)
	policy := strategy.New(strategy.Params{
		Symbol:           "BTC-PERP",
		OrderSize:        0.0015,
		SpreadPercentage: 0.0003,
		MaxLongPosition:  400,
		MaxShortPosition: -400,
	})
	recon := executor.New(f, nil, "BTC-PERP", "run-1", 25*time.Second, logger)
	return New(Config{
		Symbol:          "BTC-PERP",
		RefreshInterval: 5 * time.Second,
		CallTimeout:     2 * time.Second,
	}, f, f, policy, recon, logger)
}

func healthyMarket() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Symbol:     "BTC-PERP",
		Bid:        100.00,
		Ask:        100.10,
		ObservedAt: time.Now(),
	}
}

func TestTick_PlacesQuotesAndPublishesStatus(t *testing.T) {
	f := &fakeVenue{market: healthyMarket()}
	l := testLoop(f)
	bus := &memoryBus{}
	l.SetStatusBus(bus)

	l.runTick(context.Background())

	st, ok := bus.last()
	require.True(t, ok)
	assert.Equal(t, "BTC-PERP", st.Symbol)
	assert.Equal(t, 100.00, st.Bid)
	assert.Equal(t, 100.10, st.Ask)
	assert.Equal(t, 1, st.OpenBuys)
	assert.Equal(t, 1, st.OpenSells)
	assert.Equal(t, 2, st.Placed)
	assert.False(t, st.Degraded)
}

func TestTick_FailureDoesNotStopSubsequentTicks(t *testing.T) {
	f := &fakeVenue{market: healthyMarket()}
	l := testLoop(f)
	bus := &memoryBus{}
	l.SetStatusBus(bus)

	f.setMarketErr(domain.ErrConnectivity)
	l.runTick(context.Background())
	_, ok := bus.last()
	assert.False(t, ok, "failed tick must not publish a status")

	f.setMarketErr(nil)
	l.runTick(context.Background())
	st, ok := bus.last()
	require.True(t, ok)
	assert.Equal(t, 2, st.Placed)
}

func TestTick_DegradedAfterConsecutiveConnectivityFailures(t *testing.T) {
	f := &fakeVenue{market: healthyMarket()}
	l := testLoop(f)

	var degradedAt int
	l.OnDegraded(func(consecutive int) { degradedAt = consecutive })

	f.setMarketErr(domain.ErrConnectivity)
	for i := 0; i < 3; i++ {
		l.runTick(context.Background())
	}
	assert.Equal(t, 3, degradedAt)
	assert.True(t, l.degraded)

	// Recovery clears the counter and the flag.
	f.setMarketErr(nil)
	l.runTick(context.Background())
	assert.False(t, l.degraded)
	assert.Zero(t, l.failures)
}

func TestTick_NonConnectivityErrorsDoNotDegrade(t *testing.T) {
	f := &fakeVenue{market: domain.MarketSnapshot{Symbol: "BTC-PERP", Bid: 100.10, Ask: 100.00}}
	l := testLoop(f)

	// Crossed book fails every tick, but it is a data problem, not a
	// connectivity one.
	for i := 0; i < 5; i++ {
		l.runTick(context.Background())
	}
	assert.False(t, l.degraded)
	assert.Zero(t, l.failures)
}

func TestRun_TicksOnScheduleAndStopsOnCancel(t *testing.T) {
	f := &fakeVenue{market: healthyMarket()}
	l := testLoop(f)
	bus := &memoryBus{}
	l.SetStatusBus(bus)

	ticks := make(chan time.Time)
	l.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// First tick fires immediately; drive two more.
	ticks <- time.Now()
	ticks <- time.Now()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancel")
	}

	bus.mu.Lock()
	count := len(bus.statuses)
	bus.mu.Unlock()
	assert.GreaterOrEqual(t, count, 3)
}

package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nadolabs/makerbot/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. The top of book
// for each instrument lives at Key("tob", symbol) with fields "bid", "ask",
// and "ts" (Unix nanoseconds), expiring after the configured TTL so a dead
// bot never serves stale prices to the status mode.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func tobKey(symbol string) string {
	return Key("tob", symbol)
}

// SetTopOfBook stores the latest best bid/ask snapshot.
func (qc *QuoteCache) SetTopOfBook(ctx context.Context, snap domain.MarketSnapshot) error {
	key := tobKey(snap.Symbol)
	fields := map[string]interface{}{
		"bid": strconv.FormatFloat(snap.Bid, 'f', -1, 64),
		"ask": strconv.FormatFloat(snap.Ask, 'f', -1, 64),
		"ts":  strconv.FormatInt(snap.ObservedAt.UnixNano(), 10),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set top of book %s: %w", snap.Symbol, err)
	}
	return nil
}

// TopOfBook retrieves the latest snapshot for a symbol. Returns
// domain.ErrNotFound when the key is absent or has expired.
func (qc *QuoteCache) TopOfBook(ctx context.Context, symbol string) (domain.MarketSnapshot, error) {
	vals, err := qc.rdb.HGetAll(ctx, tobKey(symbol)).Result()
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get top of book %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}

	bid, err := strconv.ParseFloat(vals["bid"], 64)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: parse bid %s: %w", symbol, err)
	}
	ask, err := strconv.ParseFloat(vals["ask"], 64)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: parse ask %s: %w", symbol, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: parse ts %s: %w", symbol, err)
	}

	return domain.MarketSnapshot{
		Symbol:     symbol,
		Bid:        bid,
		Ask:        ask,
		ObservedAt: time.Unix(0, tsNano),
	}, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)

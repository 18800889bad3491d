// Package redis is the bot's shared telemetry backend. The quoting loop
// publishes its top of book and per-tick status here so the status mode (and
// anything else watching the bot) can read them without touching the venue.
// All keys and channels live under a single namespace so the bot can share a
// Redis database with other services.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key and channel the bot touches.
const keyPrefix = "makerbot"

// Key joins parts into a namespaced key, e.g. Key("tob", "BTC-PERP")
// yields "makerbot:tob:BTC-PERP".
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client wraps a go-redis Client. The QuoteCache and StatusBus in this
// package are built on top of it; nothing else in the bot talks to Redis
// directly.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and pings it to verify connectivity. Telemetry is
// optional for the bot, so callers treat a failure here as "run without
// Redis" rather than fatal.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw *redis.Client for the cache and bus types in
// this package.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}

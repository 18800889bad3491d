package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nadolabs/makerbot/internal/domain"
)

// statusChannel is the Pub/Sub channel tick statuses are broadcast on.
var statusChannel = Key("status")

// StatusBus implements domain.StatusBus using Redis Pub/Sub. Delivery is
// fire-and-forget; consumers that were not subscribed at publish time miss
// the message, which is fine for a live status feed.
type StatusBus struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewStatusBus creates a StatusBus backed by the given Client.
func NewStatusBus(c *Client, logger *slog.Logger) *StatusBus {
	return &StatusBus{
		rdb:    c.Underlying(),
		logger: logger.With(slog.String("component", "status_bus")),
	}
}

// PublishStatus broadcasts one tick status as JSON.
func (sb *StatusBus) PublishStatus(ctx context.Context, st domain.TickStatus) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redis: marshal status: %w", err)
	}
	if err := sb.rdb.Publish(ctx, statusChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish status: %w", err)
	}
	return nil
}

// SubscribeStatus subscribes to the status channel and returns a channel of
// decoded statuses. The subscription closes with the context; the returned
// channel is closed at that point as well.
func (sb *StatusBus) SubscribeStatus(ctx context.Context) (<-chan domain.TickStatus, error) {
	pubsub := sb.rdb.Subscribe(ctx, statusChannel)

	// Verify the subscription is established before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe status: %w", err)
	}

	out := make(chan domain.TickStatus, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var st domain.TickStatus
				if err := json.Unmarshal([]byte(msg.Payload), &st); err != nil {
					sb.logger.Warn("dropping malformed status message",
						slog.String("error", err.Error()),
					)
					continue
				}
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.StatusBus = (*StatusBus)(nil)

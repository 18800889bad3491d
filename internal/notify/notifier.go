// Package notify delivers operator alerts for the trading loop's lifecycle
// events: startup, shutdown, detected fills, and degraded venue connectivity.
// Alerts carry structured detail fields (symbol, side, price) that each
// channel renders in its own format.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types emitted by the trading loop.
const (
	EventBotStarted     = "bot_started"
	EventBotStopped     = "bot_stopped"
	EventOrderFilled    = "order_filled"
	EventDegradedHealth = "degraded_health"
)

// Field is one detail line of an alert, e.g. ("side", "buy").
type Field struct {
	Name  string
	Value string
}

// Event is a single operator alert. Fields are rendered in order after the
// body; senders choose the markup.
type Event struct {
	Type   string
	Title  string
	Body   string
	Fields []Field
}

// Sender is one delivery channel for alerts.
type Sender interface {
	// Send delivers the event. Implementations must not retry; the notifier
	// treats alerts as best-effort.
	Send(ctx context.Context, ev Event) error
	// Name identifies the channel in logs (e.g. "telegram").
	Name() string
}

// Notifier fans an event out to every configured sender, filtered by the
// allowed event types from configuration.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders. Only event types
// listed in events pass the filter; an empty list allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers ev to all senders when its type passes the event filter.
// Sender failures are combined into one error; one channel failing never
// blocks the others.
func (n *Notifier) Notify(ctx context.Context, ev Event) error {
	if len(n.events) > 0 && !n.events[ev.Type] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", ev.Type),
		)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, ev); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", ev.Type),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", ev.Type),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

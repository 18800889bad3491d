package nado

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nadolabs/makerbot/internal/domain"
	"github.com/nadolabs/makerbot/internal/venue"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second
)

// wsSubscribe is the stream subscription command.
type wsSubscribe struct {
	Method string `json:"method"`
	Stream struct {
		Type     string `json:"type"`
		TickerID string `json:"ticker_id"`
	} `json:"stream"`
	ID int `json:"id"`
}

// wsBestBidOffer is a top-of-book update pushed by the gateway.
type wsBestBidOffer struct {
	Type     string `json:"type"`
	TickerID string `json:"ticker_id"`
	BidPrice string `json:"bid_price"`
	AskPrice string `json:"ask_price"`
}

// Feed maintains a live top-of-book view over the gateway websocket. It
// implements venue.MarketSource by serving the most recent update, so the
// trading loop can read prices without a REST round trip per tick.
type Feed struct {
	wsURL    string
	symbol   string
	tickerID string
	maxAge   time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	latest domain.MarketSnapshot
	seen   bool

	onUpdate  func(domain.MarketSnapshot)
	closeOnce sync.Once
	done      chan struct{}
}

// NewFeed creates a feed for one instrument. maxAge bounds how old a cached
// snapshot may be before reads fail with ErrStaleMarketData.
func NewFeed(wsURL, symbol, tickerID string, maxAge time.Duration, logger *slog.Logger) *Feed {
	return &Feed{
		wsURL:    wsURL,
		symbol:   symbol,
		tickerID: tickerID,
		maxAge:   maxAge,
		logger:   logger.With(slog.String("component", "nado_ws_feed")),
		done:     make(chan struct{}),
	}
}

// OnUpdate registers a callback invoked for every top-of-book update. Must be
// called before Run.
func (f *Feed) OnUpdate(fn func(domain.MarketSnapshot)) {
	f.onUpdate = fn
}

// BestBidAsk serves the most recent cached snapshot. ErrMissingData before
// the first update arrives, ErrStaleMarketData when the feed has gone quiet
// longer than maxAge.
func (f *Feed) BestBidAsk(_ context.Context, symbol string) (domain.MarketSnapshot, error) {
	f.mu.RLock()
	snap, seen := f.latest, f.seen
	f.mu.RUnlock()

	if !seen {
		return domain.MarketSnapshot{}, fmt.Errorf("nado: ws feed %s: no update yet: %w", symbol, domain.ErrMissingData)
	}
	if f.maxAge > 0 && time.Since(snap.ObservedAt) > f.maxAge {
		return domain.MarketSnapshot{}, fmt.Errorf("nado: ws feed %s: last update %s ago: %w",
			symbol, time.Since(snap.ObservedAt).Round(time.Millisecond), domain.ErrStaleMarketData)
	}
	return snap, nil
}

// Run connects, subscribes, and pumps updates until ctx is cancelled or
// Close is called. Disconnects are retried with a fixed delay.
func (f *Feed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("ws disconnected, reconnecting",
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// Close stops the feed.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *Feed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("nado: ws connect: %w", err)
	}
	defer conn.Close()

	sub := wsSubscribe{Method: "subscribe", ID: 1}
	sub.Stream.Type = "best_bid_offer"
	sub.Stream.TickerID = f.tickerID

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("nado: ws subscribe: %w", err)
	}

	f.logger.Info("ws subscribed", slog.String("ticker_id", f.tickerID))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Ping loop; stops when the connection drops or the feed shuts down.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-f.done:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("nado: %w: %v", domain.ErrWSDisconnect, err)
		}
		f.handleMessage(message)
	}
}

// handleMessage parses a raw message and publishes top-of-book updates.
// Messages of other types (subscription acks, heartbeats) are dropped.
func (f *Feed) handleMessage(raw []byte) {
	var msg wsBestBidOffer
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Type != "best_bid_offer" || msg.BidPrice == "" || msg.AskPrice == "" {
		return
	}

	bid, err := FromX18(msg.BidPrice)
	if err != nil {
		return
	}
	ask, err := FromX18(msg.AskPrice)
	if err != nil {
		return
	}

	snap := domain.MarketSnapshot{
		Symbol:     f.symbol,
		Bid:        bid,
		Ask:        ask,
		ObservedAt: time.Now(),
	}

	f.mu.Lock()
	f.latest = snap
	f.seen = true
	f.mu.Unlock()

	if f.onUpdate != nil {
		f.onUpdate(snap)
	}
}

// Compile-time interface check.
var _ venue.MarketSource = (*Feed)(nil)

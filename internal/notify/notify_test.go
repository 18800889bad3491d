package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillEvent() Event {
	return Event{
		Type:  EventOrderFilled,
		Title: "Order filled",
		Body:  "BTC-PERP",
		Fields: []Field{
			{Name: "side", Value: "buy"},
			{Name: "price", Value: "100.03"},
		},
	}
}

type fakeSender struct {
	name string
	got  []Event
	err  error
}

func (f *fakeSender) Send(_ context.Context, ev Event) error {
	f.got = append(f.got, ev)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func TestNotify_EventFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventOrderFilled}, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), Event{Type: EventBotStarted, Title: "Bot started"}))
	assert.Empty(t, s.got, "filtered event must not reach senders")

	require.NoError(t, n.Notify(context.Background(), fillEvent()))
	require.Len(t, s.got, 1)
	assert.Equal(t, "Order filled", s.got[0].Title)
}

func TestNotify_EmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), Event{Type: "anything"}))
	assert.Len(t, s.got, 1)
}

func TestNotify_SenderFailureDoesNotBlockOthers(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, slog.New(slog.DiscardHandler))

	err := n.Notify(context.Background(), fillEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.got, 1, "second sender still delivers")
}

func TestTelegramSend_RendersFields(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	// Point the bot API at the stub.
	s := NewTelegramSender("token", "chat-1")
	s.client = &http.Client{Transport: rewriteHost(srv, nil)}

	require.NoError(t, s.Send(context.Background(), fillEvent()))
	assert.Equal(t, "chat-1", got["chat_id"])
	assert.Equal(t, "Markdown", got["parse_mode"])
	assert.Contains(t, got["text"], "*Order filled*")
	assert.Contains(t, got["text"], "side: `buy`")
	assert.Contains(t, got["text"], "price: `100.03`")
}

func TestDiscordSend_BuildsEmbed(t *testing.T) {
	var got struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), fillEvent()))

	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Equal(t, "Order filled", embed.Title)
	assert.Equal(t, colorBlue, embed.Color)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "side", embed.Fields[0].Name)
	assert.True(t, embed.Fields[0].Inline)
}

func TestDiscordSend_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid webhook", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	err := s.Send(context.Background(), fillEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestEventColor(t *testing.T) {
	assert.Equal(t, colorGreen, eventColor(EventBotStarted))
	assert.Equal(t, colorRed, eventColor(EventDegradedHealth))
	assert.Equal(t, colorGrey, eventColor(EventBotStopped))
	assert.Equal(t, colorGrey, eventColor("unknown"))
}

// rewriteHost redirects every request to the test server regardless of the
// URL the sender builds.
func rewriteHost(srv *httptest.Server, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = srv.Listener.Addr().String()
		return base.RoundTrip(req)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

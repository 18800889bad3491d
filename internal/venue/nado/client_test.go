package nado

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadolabs/makerbot/internal/crypto"
	"github.com/nadolabs/makerbot/internal/domain"
	"github.com/nadolabs/makerbot/internal/venue"
)

// Throwaway key used only for signing in tests.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testDigest = "0x" + "11" + "22334455667788990011223344556677889900112233445566778899001122" // 32 bytes

// gatewayStub simulates the Nado gateway for one test.
type gatewayStub struct {
	t *testing.T

	orderbook      orderbookResponse
	orderbookCode  int
	perpBalance    string
	spotBalances   map[uint32]string
	openOrders     []subaccountOrder
	executeStatus  string
	executeError   string
	executeDigest  string
	executeCode    int
	lastExecuteRaw []byte
}

func (g *gatewayStub) server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /assets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []asset{
			{ProductID: 2, Symbol: "BTC-PERP", TickerID: "BTC-PERP_USDT0", PriceIncrement: "1000000000000000000"},
			{ProductID: 4, Symbol: "ETH-PERP", TickerID: "ETH-PERP_USDT0"},
		})
	})

	mux.HandleFunc("GET /orderbook", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(g.t, "BTC-PERP_USDT0", r.URL.Query().Get("ticker_id"))
		if g.orderbookCode != 0 {
			w.WriteHeader(g.orderbookCode)
			return
		}
		writeJSON(w, g.orderbook)
	})

	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		var q struct {
			Type string `json:"type"`
		}
		require.NoError(g.t, json.NewDecoder(r.Body).Decode(&q))

		switch q.Type {
		case "subaccount_info":
			info := subaccountInfo{}
			if g.perpBalance != "" {
				pb := productBalance{ProductID: 2}
				pb.Balance.Amount = g.perpBalance
				info.PerpBalances = append(info.PerpBalances, pb)
			}
			for id, amount := range g.spotBalances {
				sb := productBalance{ProductID: id}
				sb.Balance.Amount = amount
				info.SpotBalances = append(info.SpotBalances, sb)
			}
			writeJSON(w, queryEnvelope(g.t, info))
		case "subaccount_orders":
			writeJSON(w, queryEnvelope(g.t, subaccountOrders{ProductID: 2, Orders: g.openOrders}))
		default:
			g.t.Errorf("unexpected query type %q", q.Type)
		}
	})

	mux.HandleFunc("POST /execute", func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		require.NoError(g.t, json.NewDecoder(r.Body).Decode(&raw))
		g.lastExecuteRaw = raw

		if g.executeCode != 0 {
			w.WriteHeader(g.executeCode)
			return
		}
		resp := executeResponse{Status: g.executeStatus, Error: g.executeError}
		resp.Data.Digest = g.executeDigest
		writeJSON(w, resp)
	})

	return httptest.NewServer(mux)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func queryEnvelope(t *testing.T, data any) queryResponse {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return queryResponse{Status: "success", Data: raw}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	signer, err := crypto.NewSigner(testPrivateKey, 1, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)

	c, err := New(ClientConfig{
		GatewayURL:     srv.URL,
		GatewayV2URL:   srv.URL,
		Signer:         signer,
		SubaccountName: "default",
		TickerIDs:      map[string]string{"BTC-PERP": "BTC-PERP_USDT0"},
	})
	require.NoError(t, err)
	return c
}

func TestBestBidAsk(t *testing.T) {
	g := &gatewayStub{t: t, orderbook: orderbookResponse{
		Bids: [][2]string{{"100000000000000000000", "1500000000000000"}},
		Asks: [][2]string{{"100100000000000000000", "1500000000000000"}},
	}}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	snap, err := c.BestBidAsk(context.Background(), "BTC-PERP")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, snap.Bid, 1e-9)
	assert.InDelta(t, 100.1, snap.Ask, 1e-9)
	assert.Equal(t, "BTC-PERP", snap.Symbol)
	assert.False(t, snap.ObservedAt.IsZero())
}

func TestBestBidAsk_EmptySide(t *testing.T) {
	g := &gatewayStub{t: t, orderbook: orderbookResponse{
		Bids: [][2]string{{"100000000000000000000", "1500000000000000"}},
	}}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.BestBidAsk(context.Background(), "BTC-PERP")
	require.ErrorIs(t, err, domain.ErrMissingData)
}

func TestBestBidAsk_ServerErrorIsConnectivity(t *testing.T) {
	g := &gatewayStub{t: t, orderbookCode: http.StatusBadGateway}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.BestBidAsk(context.Background(), "BTC-PERP")
	require.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestPosition(t *testing.T) {
	g := &gatewayStub{t: t, perpBalance: "-1500000000000000"}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	pos, err := c.Position(context.Background(), "BTC-PERP")
	require.NoError(t, err)
	assert.InDelta(t, -0.0015, pos.Base, 1e-12)
}

func TestPosition_NoBalanceRowIsFlat(t *testing.T) {
	g := &gatewayStub{t: t}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	pos, err := c.Position(context.Background(), "BTC-PERP")
	require.NoError(t, err)
	assert.Zero(t, pos.Base)
}

func TestBalances_SkipsZeroRows(t *testing.T) {
	g := &gatewayStub{t: t, spotBalances: map[uint32]string{
		0: "5000000000000000000000",
		3: "0",
	}}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	balances, err := c.Balances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, uint32(0), balances[0].ProductID)
	assert.InDelta(t, 5000.0, balances[0].Amount, 1e-6)
}

func TestOpenOrders_SideFromAmountSign(t *testing.T) {
	buy := subaccountOrder{Digest: "0xbuy", PriceX18: "100000000000000000000", Amount: "1500000000000000", PlacedAt: 1700000000}
	sell := subaccountOrder{Digest: "0xsell", PriceX18: "100100000000000000000", Amount: "-1500000000000000", PlacedAt: 1700000001}
	g := &gatewayStub{t: t, openOrders: []subaccountOrder{buy, sell}}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	orders, err := c.OpenOrders(context.Background(), "BTC-PERP")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, domain.SideBuy, orders[0].Side)
	assert.InDelta(t, 0.0015, orders[0].Size, 1e-12)
	assert.Equal(t, domain.SideSell, orders[1].Side)
	assert.InDelta(t, 0.0015, orders[1].Size, 1e-12)
}

func TestPlaceOrder(t *testing.T) {
	g := &gatewayStub{t: t, executeStatus: "success", executeDigest: testDigest}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	id, err := c.PlaceOrder(context.Background(), venue.OrderRequest{
		Symbol: "BTC-PERP",
		Side:   domain.SideSell,
		Price:  64123.7,
		Size:   0.0015,
	})
	require.NoError(t, err)
	assert.Equal(t, testDigest, id)

	var body placeOrderRequest
	require.NoError(t, json.Unmarshal(g.lastExecuteRaw, &body))
	assert.Equal(t, uint32(2), body.PlaceOrder.ProductID)
	assert.Equal(t, c.Sender(), body.PlaceOrder.Order.Sender)
	assert.NotEmpty(t, body.PlaceOrder.Signature)

	// Sells carry a negative amount.
	assert.Equal(t, "-1500000000000000", body.PlaceOrder.Order.Amount)

	// Price is floored to the $1 tick.
	assert.Equal(t, "64123000000000000000000", body.PlaceOrder.Order.PriceX18)

	// The post-only order type rides in the top two expiration bits.
	exp, err := strconv.ParseUint(body.PlaceOrder.Order.Expiration, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), exp>>62)
}

func TestPlaceOrder_ConfiguredTickOverride(t *testing.T) {
	g := &gatewayStub{t: t, executeStatus: "success", executeDigest: testDigest}
	srv := g.server()
	defer srv.Close()

	signer, err := crypto.NewSigner(testPrivateKey, 1, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)

	c, err := New(ClientConfig{
		GatewayURL:      srv.URL,
		GatewayV2URL:    srv.URL,
		Signer:          signer,
		SubaccountName:  "default",
		TickerIDs:       map[string]string{"BTC-PERP": "BTC-PERP_USDT0"},
		PriceIncrements: map[string]float64{"BTC-PERP": 10.0},
	})
	require.NoError(t, err)

	_, err = c.PlaceOrder(context.Background(), venue.OrderRequest{
		Symbol: "BTC-PERP",
		Side:   domain.SideSell,
		Price:  64123.7,
		Size:   0.0015,
	})
	require.NoError(t, err)

	// The configured $10 tick wins over the listing's $1 increment.
	var body placeOrderRequest
	require.NoError(t, json.Unmarshal(g.lastExecuteRaw, &body))
	assert.Equal(t, "64120000000000000000000", body.PlaceOrder.Order.PriceX18)
}

func TestPlaceOrder_EngineRejection(t *testing.T) {
	g := &gatewayStub{t: t, executeStatus: "failure", executeError: "price would cross the book"}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.PlaceOrder(context.Background(), venue.OrderRequest{
		Symbol: "BTC-PERP", Side: domain.SideBuy, Price: 100, Size: 0.0015,
	})
	require.ErrorIs(t, err, domain.ErrOrderRejected)
}

func TestCancelOrder(t *testing.T) {
	g := &gatewayStub{t: t, executeStatus: "success"}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.CancelOrder(context.Background(), "BTC-PERP", testDigest))

	var body cancelOrdersRequest
	require.NoError(t, json.Unmarshal(g.lastExecuteRaw, &body))
	assert.Equal(t, []uint32{2}, body.CancelOrders.Tx.ProductIDs)
	assert.Equal(t, []string{testDigest}, body.CancelOrders.Tx.Digests)
	assert.NotEmpty(t, body.CancelOrders.Signature)
}

func TestCancelOrder_UnknownDigest(t *testing.T) {
	g := &gatewayStub{t: t, executeStatus: "failure", executeError: "order not found"}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.CancelOrder(context.Background(), "BTC-PERP", testDigest)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCancelOrder_ServerErrorIsConnectivity(t *testing.T) {
	g := &gatewayStub{t: t, executeCode: http.StatusInternalServerError}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.CancelOrder(context.Background(), "BTC-PERP", testDigest)
	require.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestResolveProduct_Unknown(t *testing.T) {
	g := &gatewayStub{t: t}
	srv := g.server()
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ResolveProduct(context.Background(), "DOGE-PERP")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

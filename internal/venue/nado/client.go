// Package nado implements the venue interfaces against the Nado gateway: a
// JSON REST API for queries and EIP-712-signed payloads for order placement
// and cancellation. All numeric fields on the wire are x18 fixed-point
// decimal strings.
package nado

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nadolabs/makerbot/internal/crypto"
	"github.com/nadolabs/makerbot/internal/domain"
	"github.com/nadolabs/makerbot/internal/venue"
)

// ClientConfig holds the gateway endpoints and signing identity.
type ClientConfig struct {
	// GatewayURL is the V1 API root used for engine queries and executes.
	GatewayURL string

	// GatewayV2URL is the V2 API root used for the asset listing and the
	// orderbook endpoint.
	GatewayV2URL string

	// Signer signs order and cancellation payloads. It may be nil for
	// read-only market-data use.
	Signer *crypto.Signer

	// SubaccountName selects the trading subaccount of the signing wallet.
	SubaccountName string

	// TickerIDs maps a symbol to an explicit orderbook ticker when the
	// listing's ticker_id differs from the symbol (e.g. "BTC-PERP" to
	// "BTC-PERP_USDT0").
	TickerIDs map[string]string

	// PriceIncrements maps a symbol to an explicit tick size in quote
	// currency, taking precedence over the venue's asset listing when
	// quantising order prices.
	PriceIncrements map[string]float64

	// OrderExpiry is the venue-side lifetime stamped into each order. It acts
	// as a backstop: even if the bot dies, orders leave the book on their own.
	OrderExpiry time.Duration
}

// Client is the REST client for the Nado gateway. It implements venue.Client.
type Client struct {
	gatewayURL   string
	gatewayV2URL string
	httpClient   *http.Client

	signer    *crypto.Signer
	sender    [32]byte
	senderHex string

	tickerIDs       map[string]string
	priceIncrements map[string]float64
	orderExpiry     time.Duration

	mu       sync.RWMutex
	products map[string]asset // resolved listing rows by symbol
}

// New creates a Nado client. When cfg.Signer is set, the subaccount sender is
// derived immediately so a bad subaccount name fails at startup.
func New(cfg ClientConfig) (*Client, error) {
	c := &Client{
		gatewayURL:      strings.TrimRight(cfg.GatewayURL, "/"),
		gatewayV2URL:    strings.TrimRight(cfg.GatewayV2URL, "/"),
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		signer:          cfg.Signer,
		tickerIDs:       cfg.TickerIDs,
		priceIncrements: cfg.PriceIncrements,
		orderExpiry:     cfg.OrderExpiry,
		products:        make(map[string]asset),
	}
	if c.orderExpiry <= 0 {
		c.orderExpiry = 60 * time.Second
	}

	if cfg.Signer != nil {
		sub := crypto.Subaccount{
			Owner: cfg.Signer.Address(),
			Name:  cfg.SubaccountName,
		}
		sender, err := sub.Bytes32()
		if err != nil {
			return nil, fmt.Errorf("nado: derive sender: %w", err)
		}
		hex, err := sub.Hex()
		if err != nil {
			return nil, fmt.Errorf("nado: derive sender: %w", err)
		}
		c.sender = sender
		c.senderHex = hex
	}

	return c, nil
}

// Sender returns the 0x-prefixed subaccount sender the client signs with.
func (c *Client) Sender() string {
	return c.senderHex
}

// ResolveProduct looks up the listing row for a symbol, matching either the
// listing's symbol or its ticker_id. Results are cached for the lifetime of
// the client; listings do not change mid-run.
func (c *Client) ResolveProduct(ctx context.Context, symbol string) (uint32, error) {
	c.mu.RLock()
	if a, ok := c.products[symbol]; ok {
		c.mu.RUnlock()
		return a.ProductID, nil
	}
	c.mu.RUnlock()

	body, err := c.doGet(ctx, c.gatewayV2URL+"/assets")
	if err != nil {
		return 0, fmt.Errorf("nado: list assets: %w", err)
	}

	var assets []asset
	if err := json.Unmarshal(body, &assets); err != nil {
		return 0, fmt.Errorf("nado: decode assets: %w", err)
	}

	for _, a := range assets {
		if a.Symbol == symbol || a.TickerID == symbol {
			c.mu.Lock()
			c.products[symbol] = a
			c.mu.Unlock()
			return a.ProductID, nil
		}
	}

	return 0, fmt.Errorf("nado: product %q: %w", symbol, domain.ErrNotFound)
}

// tickerFor returns the orderbook lookup key for a symbol.
func (c *Client) tickerFor(symbol string) string {
	if t, ok := c.tickerIDs[symbol]; ok {
		return t
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if a, ok := c.products[symbol]; ok && a.TickerID != "" {
		return a.TickerID
	}
	return symbol
}

// priceIncrementX18 returns the product's tick size. A configured override
// wins over the listing; 1.0 is the fallback when both are absent.
func (c *Client) priceIncrementX18(symbol string) *big.Int {
	if inc, ok := c.priceIncrements[symbol]; ok && inc > 0 {
		return ToX18(inc)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if a, ok := c.products[symbol]; ok && a.PriceIncrement != "" {
		if inc, ok := new(big.Int).SetString(a.PriceIncrement, 10); ok && inc.Sign() > 0 {
			return inc
		}
	}
	return ToX18(1.0)
}

// BestBidAsk fetches the depth-1 orderbook and returns the top of book.
// A book with an empty side maps to ErrMissingData; there is nothing to
// quote against.
func (c *Client) BestBidAsk(ctx context.Context, symbol string) (domain.MarketSnapshot, error) {
	q := url.Values{}
	q.Set("ticker_id", c.tickerFor(symbol))
	q.Set("depth", "1")

	body, err := c.doGet(ctx, c.gatewayV2URL+"/orderbook?"+q.Encode())
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("nado: get orderbook %s: %w", symbol, err)
	}

	var book orderbookResponse
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("nado: decode orderbook: %w", err)
	}

	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("nado: orderbook %s has an empty side: %w", symbol, domain.ErrMissingData)
	}

	bid, err := FromX18(book.Bids[0][0])
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("nado: parse best bid: %w", err)
	}
	ask, err := FromX18(book.Asks[0][0])
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("nado: parse best ask: %w", err)
	}

	return domain.MarketSnapshot{
		Symbol:     symbol,
		Bid:        bid,
		Ask:        ask,
		ObservedAt: time.Now(),
	}, nil
}

// Position queries the subaccount's perp balances and returns the net
// position for the instrument. A subaccount with no balance row for the
// product holds a flat position.
func (c *Client) Position(ctx context.Context, symbol string) (domain.PositionSnapshot, error) {
	productID, err := c.ResolveProduct(ctx, symbol)
	if err != nil {
		return domain.PositionSnapshot{}, err
	}

	data, err := c.doQuery(ctx, map[string]any{
		"type":       "subaccount_info",
		"subaccount": c.senderHex,
	})
	if err != nil {
		return domain.PositionSnapshot{}, fmt.Errorf("nado: subaccount info: %w", err)
	}

	var info subaccountInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.PositionSnapshot{}, fmt.Errorf("nado: decode subaccount info: %w", err)
	}

	snap := domain.PositionSnapshot{Symbol: symbol, ObservedAt: time.Now()}
	for _, pb := range info.PerpBalances {
		if pb.ProductID != productID {
			continue
		}
		base, err := FromX18(pb.Balance.Amount)
		if err != nil {
			return domain.PositionSnapshot{}, fmt.Errorf("nado: parse perp balance: %w", err)
		}
		snap.Base = base
		break
	}
	return snap, nil
}

// Balances returns the subaccount's non-zero spot balances.
func (c *Client) Balances(ctx context.Context) ([]domain.Balance, error) {
	data, err := c.doQuery(ctx, map[string]any{
		"type":       "subaccount_info",
		"subaccount": c.senderHex,
	})
	if err != nil {
		return nil, fmt.Errorf("nado: subaccount info: %w", err)
	}

	var info subaccountInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("nado: decode subaccount info: %w", err)
	}

	var out []domain.Balance
	for _, sb := range info.SpotBalances {
		amount, err := FromX18(sb.Balance.Amount)
		if err != nil {
			return nil, fmt.Errorf("nado: parse spot balance: %w", err)
		}
		if amount == 0 {
			continue
		}
		out = append(out, domain.Balance{ProductID: sb.ProductID, Amount: amount})
	}
	return out, nil
}

// OpenOrders lists the subaccount's resting orders for the instrument.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]venue.Order, error) {
	productID, err := c.ResolveProduct(ctx, symbol)
	if err != nil {
		return nil, err
	}

	data, err := c.doQuery(ctx, map[string]any{
		"type":       "subaccount_orders",
		"sender":     c.senderHex,
		"product_id": productID,
	})
	if err != nil {
		return nil, fmt.Errorf("nado: open orders: %w", err)
	}

	var resp subaccountOrders
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("nado: decode open orders: %w", err)
	}

	orders := make([]venue.Order, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		price, err := FromX18(o.PriceX18)
		if err != nil {
			return nil, fmt.Errorf("nado: parse order price: %w", err)
		}
		amount, err := FromX18(o.Amount)
		if err != nil {
			return nil, fmt.Errorf("nado: parse order amount: %w", err)
		}

		side := domain.SideBuy
		if amount < 0 {
			side = domain.SideSell
			amount = -amount
		}

		orders = append(orders, venue.Order{
			ID:       o.Digest,
			Side:     side,
			Price:    price,
			Size:     amount,
			PlacedAt: time.Unix(o.PlacedAt, 0),
		})
	}
	return orders, nil
}

// PlaceOrder signs and submits a post-only limit order, returning the
// engine's order digest.
func (c *Client) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("nado: place order: no signer configured")
	}

	productID, err := c.ResolveProduct(ctx, req.Symbol)
	if err != nil {
		return "", err
	}

	now := time.Now()
	priceX18 := RoundX18(ToX18(req.Price), c.priceIncrementX18(req.Symbol))
	amountX18 := ToX18(req.Size)
	if req.Side == domain.SideSell {
		amountX18.Neg(amountX18)
	}

	payload := crypto.OrderPayload{
		Sender:     c.sender,
		PriceX18:   priceX18,
		Amount:     amountX18,
		Expiration: expirationWith(orderTypePostOnly, now.Add(c.orderExpiry)),
		Nonce:      genNonce(now),
	}

	sig, digest, err := c.signer.SignOrder(payload)
	if err != nil {
		return "", fmt.Errorf("nado: %w: %v", domain.ErrSigningFailed, err)
	}

	var body placeOrderRequest
	body.PlaceOrder.ProductID = productID
	body.PlaceOrder.Order = wireOrder{
		Sender:     c.senderHex,
		PriceX18:   priceX18.String(),
		Amount:     amountX18.String(),
		Expiration: strconv.FormatUint(payload.Expiration, 10),
		Nonce:      strconv.FormatUint(payload.Nonce, 10),
	}
	body.PlaceOrder.Signature = sig

	resp, err := c.doExecute(ctx, body)
	if err != nil {
		return "", fmt.Errorf("nado: place order: %w", err)
	}
	if resp.Status != "success" {
		return "", fmt.Errorf("nado: place order: %s: %w", resp.Error, mapEngineError(resp.Error))
	}

	// The engine echoes the digest it computed; fall back to ours when the
	// response omits it.
	if resp.Data.Digest != "" {
		return resp.Data.Digest, nil
	}
	return "0x" + hex.EncodeToString(digest[:]), nil
}

// CancelOrder signs and submits a cancellation for a single order digest.
// ErrOrderNotFound means the order already left the book (filled, expired,
// or previously cancelled).
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if c.signer == nil {
		return fmt.Errorf("nado: cancel order: no signer configured")
	}

	productID, err := c.ResolveProduct(ctx, symbol)
	if err != nil {
		return err
	}

	var digest [32]byte
	raw := strings.TrimPrefix(orderID, "0x")
	decoded, err := parseHex32(raw)
	if err != nil {
		return fmt.Errorf("nado: cancel order %s: %w", orderID, err)
	}
	digest = decoded

	nonce := genNonce(time.Now())
	sig, err := c.signer.SignCancellation(crypto.CancellationPayload{
		Sender:     c.sender,
		ProductIDs: []uint32{productID},
		Digests:    [][32]byte{digest},
		Nonce:      nonce,
	})
	if err != nil {
		return fmt.Errorf("nado: %w: %v", domain.ErrSigningFailed, err)
	}

	var body cancelOrdersRequest
	body.CancelOrders.Tx.Sender = c.senderHex
	body.CancelOrders.Tx.ProductIDs = []uint32{productID}
	body.CancelOrders.Tx.Digests = []string{orderID}
	body.CancelOrders.Tx.Nonce = strconv.FormatUint(nonce, 10)
	body.CancelOrders.Signature = sig

	resp, err := c.doExecute(ctx, body)
	if err != nil {
		return fmt.Errorf("nado: cancel order %s: %w", orderID, err)
	}
	if resp.Status != "success" {
		return fmt.Errorf("nado: cancel order %s: %s: %w", orderID, resp.Error, mapEngineError(resp.Error))
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet issues a GET request and returns the response body after status
// checking.
func (c *Client) doGet(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// doQuery issues an engine query against the V1 gateway and unwraps the
// reply envelope.
func (c *Client) doQuery(ctx context.Context, query any) (json.RawMessage, error) {
	body, err := c.doPost(ctx, c.gatewayURL+"/query", query)
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("query failed: %s", resp.Error)
	}
	return resp.Data, nil
}

// doExecute issues a signed execute against the V1 gateway. The envelope is
// returned as-is; callers inspect Status and map engine errors themselves,
// since the mapping differs between place and cancel.
func (c *Client) doExecute(ctx context.Context, payload any) (executeResponse, error) {
	body, err := c.doPost(ctx, c.gatewayURL+"/execute", payload)
	if err != nil {
		return executeResponse{}, err
	}

	var resp executeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return executeResponse{}, fmt.Errorf("decode execute response: %w", err)
	}
	return resp, nil
}

func (c *Client) doPost(ctx context.Context, fullURL string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrConnectivity, err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to domain errors. Server-side
// and transport-level failures are connectivity problems; only well-formed
// engine rejections carry finer-grained classification.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	detail := strings.TrimSpace(string(body))
	if len(detail) > 256 {
		detail = detail[:256]
	}

	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("HTTP 404: %s: %w", detail, domain.ErrNotFound)
	case statusCode == http.StatusBadRequest:
		return fmt.Errorf("HTTP 400: %s: %w", detail, domain.ErrOrderRejected)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("HTTP 429: %s: %w", detail, domain.ErrConnectivity)
	case statusCode >= 500:
		return fmt.Errorf("HTTP %d: %s: %w", statusCode, detail, domain.ErrConnectivity)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, detail)
	}
}

// mapEngineError classifies an engine failure message.
func mapEngineError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not found"), strings.Contains(lower, "unknown digest"):
		return domain.ErrOrderNotFound
	default:
		return domain.ErrOrderRejected
	}
}

// parseHex32 decodes a 64-character hex string into a 32-byte array.
func parseHex32(s string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid hex digest: %w", err)
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("expected 32-byte digest, got %d bytes", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

// Compile-time interface check.
var _ venue.Client = (*Client)(nil)

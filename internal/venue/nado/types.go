package nado

import "encoding/json"

// ---------------------------------------------------------------------------
// Gateway V2 listing types
// ---------------------------------------------------------------------------

// asset is one row of the /assets listing. Product IDs are resolved from it
// by symbol or ticker_id.
type asset struct {
	ProductID      uint32 `json:"product_id"`
	Symbol         string `json:"symbol"`
	TickerID       string `json:"ticker_id"`
	PriceIncrement string `json:"price_increment_x18"`
	SizeIncrement  string `json:"size_increment_x18"`
}

// orderbookResponse is the depth-limited orderbook returned by the gateway.
// Levels are [price, size] pairs of x18 decimal strings.
type orderbookResponse struct {
	TickerID  string      `json:"ticker_id"`
	Bids      [][2]string `json:"bids"`
	Asks      [][2]string `json:"asks"`
	Timestamp int64       `json:"timestamp"`
}

// ---------------------------------------------------------------------------
// Engine query types
// ---------------------------------------------------------------------------

// queryResponse is the outer envelope of every engine query reply.
type queryResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

// productBalance is one spot or perp balance row of a subaccount.
type productBalance struct {
	ProductID uint32 `json:"product_id"`
	Balance   struct {
		Amount string `json:"amount"` // x18, signed for perps
	} `json:"balance"`
}

// subaccountInfo is the engine's account summary.
type subaccountInfo struct {
	Subaccount   string           `json:"subaccount"`
	SpotBalances []productBalance `json:"spot_balances"`
	PerpBalances []productBalance `json:"perp_balances"`
}

// subaccountOrder is one resting order of a subaccount.
type subaccountOrder struct {
	Digest     string `json:"digest"`
	ProductID  uint32 `json:"product_id"`
	PriceX18   string `json:"price_x18"`
	Amount     string `json:"amount"` // x18, negative = sell
	Expiration string `json:"expiration"`
	Nonce      string `json:"nonce"`
	PlacedAt   int64  `json:"placed_at"` // unix seconds
}

// subaccountOrders is the reply payload of a subaccount_orders query.
type subaccountOrders struct {
	Sender    string            `json:"sender"`
	ProductID uint32            `json:"product_id"`
	Orders    []subaccountOrder `json:"orders"`
}

// ---------------------------------------------------------------------------
// Engine execute types
// ---------------------------------------------------------------------------

// wireOrder is the JSON form of a signed order.
type wireOrder struct {
	Sender     string `json:"sender"`
	PriceX18   string `json:"priceX18"`
	Amount     string `json:"amount"`
	Expiration string `json:"expiration"`
	Nonce      string `json:"nonce"`
}

// placeOrderRequest is the execute payload for placing an order.
type placeOrderRequest struct {
	PlaceOrder struct {
		ProductID uint32    `json:"product_id"`
		Order     wireOrder `json:"order"`
		Signature string    `json:"signature"`
	} `json:"place_order"`
}

// cancelOrdersRequest is the execute payload for cancelling specific digests.
type cancelOrdersRequest struct {
	CancelOrders struct {
		Tx struct {
			Sender     string   `json:"sender"`
			ProductIDs []uint32 `json:"productIds"`
			Digests    []string `json:"digests"`
			Nonce      string   `json:"nonce"`
		} `json:"tx"`
		Signature string `json:"signature"`
	} `json:"cancel_orders"`
}

// executeResponse is the outer envelope of every engine execute reply.
type executeResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Data   struct {
		Digest string `json:"digest"`
	} `json:"data"`
}

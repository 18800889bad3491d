package domain

import "time"

// TickStatus summarises one scheduler tick for external consumers. It is
// published on the status bus after every completed tick.
type TickStatus struct {
	Symbol        string    `json:"symbol"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	Mid           float64   `json:"mid"`
	PositionBase  float64   `json:"position_base"`
	PositionQuote float64   `json:"position_quote"`
	OpenBuys      int       `json:"open_buys"`
	OpenSells     int       `json:"open_sells"`
	Placed        int       `json:"placed"`
	Cancelled     int       `json:"cancelled"`
	Degraded      bool      `json:"degraded"`
	At            time.Time `json:"at"`
}

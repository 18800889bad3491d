package domain

import "errors"

var (
	ErrConnectivity    = errors.New("venue unreachable")
	ErrOrderRejected   = errors.New("order rejected")
	ErrOrderNotFound   = errors.New("order not found")
	ErrStaleMarketData = errors.New("stale market data")
	ErrMissingData     = errors.New("missing market or position data")
	ErrDuplicateOrder  = errors.New("side already has an open order")
	ErrNotFound        = errors.New("not found")
	ErrSigningFailed   = errors.New("signing failed")
	ErrWSDisconnect    = errors.New("websocket disconnected")
)

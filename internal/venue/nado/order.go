package nado

import (
	"math/rand/v2"
	"time"
)

// Engine order types, encoded in the top two bits of the expiration field.
const (
	orderTypeDefault   uint64 = 0 // resting limit order
	orderTypeIOC       uint64 = 1
	orderTypeFOK       uint64 = 2
	orderTypePostOnly  uint64 = 3
	orderTypeBitOffset        = 62
)

// expirationWith packs an order type and an absolute expiry time into the
// engine's expiration field.
func expirationWith(orderType uint64, expiry time.Time) uint64 {
	return uint64(expiry.Unix()) | orderType<<orderTypeBitOffset
}

// genNonce builds an engine nonce: the recv-time deadline in milliseconds
// shifted left 20 bits, with a random discriminator in the low bits so two
// orders built in the same millisecond never collide.
func genNonce(now time.Time) uint64 {
	deadline := uint64(now.UnixMilli() + 90_000)
	return deadline<<20 | rand.Uint64N(1<<20)
}

package nado

import (
	"fmt"
	"math/big"
	"strings"
)

// The engine represents every price, amount, and balance as an x18
// fixed-point value: the real number scaled by 1e18 and carried as a decimal
// integer string.

var x18Scale = new(big.Float).SetPrec(128).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// ToX18 converts a float into its x18 integer representation, rounding to
// the nearest integer. 128 bits of precision keep the product exact for any
// float64 input; the default 53 would truncate large prices.
func ToX18(v float64) *big.Int {
	f := new(big.Float).SetPrec(128).SetFloat64(v)
	f.Mul(f, x18Scale)

	// big.Float.Int truncates; add ±0.5 first for round-to-nearest.
	half := big.NewFloat(0.5)
	if f.Sign() < 0 {
		f.Sub(f, half)
	} else {
		f.Add(f, half)
	}
	out, _ := f.Int(nil)
	return out
}

// FromX18 parses an x18 decimal string back into a float.
func FromX18(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("nado: empty x18 value")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, fmt.Errorf("nado: invalid x18 value %q", s)
	}
	f := new(big.Float).SetInt(n)
	f.Quo(f, x18Scale)
	out, _ := f.Float64()
	return out, nil
}

// RoundX18 rounds v down to the nearest multiple of increment. The engine
// rejects orders whose price is not aligned to the product's tick size.
func RoundX18(v, increment *big.Int) *big.Int {
	if increment.Sign() <= 0 {
		return new(big.Int).Set(v)
	}
	rem := new(big.Int).Mod(v, increment)
	return new(big.Int).Sub(v, rem)
}

// Package strategy provides the built-in fee strategies and the registry the
// match layer uses to construct them by kind. Every strategy instance is
// owned by exactly one pool; factories return fresh state on each call so
// competing pools never share a buffer or a fee level.
package strategy

import (
	"math"

	"github.com/shopspring/decimal"
)

// maxFeeRate caps every quoted fee at 10%, the same ceiling the on-chain
// strategy base enforces.
var maxFeeRate = decimal.NewFromFloat(0.1)

// clampFee bounds a fee to [0, maxFeeRate].
func clampFee(fee decimal.Decimal) decimal.Decimal {
	if fee.Sign() < 0 {
		return decimal.Zero
	}
	if fee.GreaterThan(maxFeeRate) {
		return maxFeeRate
	}
	return fee
}

// boundFee bounds a float fee to a strategy's own [min, max] band.
func boundFee(fee, min, max float64) float64 {
	return math.Min(math.Max(fee, min), max)
}

// param reads a key from a params map, falling back to def when absent.
func param(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

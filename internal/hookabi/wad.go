// Package hookabi implements the calldata format of the on-chain fee hook
// interface. Strategies deployed as hook contracts receive pool lifecycle
// callbacks encoded this way and answer quotes as (uint256,uint256) fee
// pairs; this package is the wire boundary for tooling that records,
// validates, or replays that traffic. The simulator itself drives native
// strategies and never touches a chain.
package hookabi

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Quantities cross the hook boundary as WAD fixed-point integers, the usual
// 18-decimal DeFi convention. Every value must fit the low 128 bits of its
// ABI word.
var (
	// WAD is one whole unit (1e18).
	WAD = big.NewInt(1_000_000_000_000_000_000)

	// BPS is one basis point (1e14).
	BPS = big.NewInt(100_000_000_000_000)

	// MaxFee caps hook fee quotes at 10% (1e17).
	MaxFee = big.NewInt(100_000_000_000_000_000)
)

// ErrOutOfRange flags quantities that cannot be represented as a hook word:
// negative values and values past 128 bits.
var ErrOutOfRange = errors.New("quantity out of range")

var (
	wadScale   = decimal.New(1, 18)
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// ToWAD converts a decimal quantity to its WAD representation, truncating
// anything past 18 decimal places.
func ToWAD(d decimal.Decimal) (*big.Int, error) {
	w, err := toWad(d)
	if err != nil {
		return nil, fmt.Errorf("hookabi: %w", err)
	}
	return w, nil
}

func toWad(d decimal.Decimal) (*big.Int, error) {
	w := d.Mul(wadScale).BigInt()
	if w.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s is negative", ErrOutOfRange, d)
	}
	if w.Cmp(maxUint128) > 0 {
		return nil, fmt.Errorf("%w: %s overflows uint128", ErrOutOfRange, d)
	}
	return w, nil
}

// FromWAD converts a WAD integer back to a decimal quantity.
func FromWAD(w *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(w, -18)
}

// FeeWAD returns the WAD representation of a fee given in basis points.
func FeeWAD(bps int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(bps), BPS)
}

package domain

import "github.com/shopspring/decimal"

// Strategy sets a pool's fees in response to lifecycle events. Returning a
// nil quote with a nil error leaves the current fees unchanged; an error is
// fatal for the run. Instances are owned by a single pool and need not be
// safe for concurrent use.
type Strategy interface {
	// Name identifies the strategy for storage and leaderboards.
	Name() string

	// AfterInitialize runs once when the pool is seeded with its starting
	// reserves.
	AfterInitialize(reserveX, reserveY decimal.Decimal) (*FeeQuote, error)

	// AfterSwap runs after a swap commits, at the pool's configured update
	// interval.
	AfterSwap(trade TradeInfo) (*FeeQuote, error)
}

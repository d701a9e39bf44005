package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

const defaultFixedFeeBps = 30

// Fixed quotes one symmetric fee forever. It is the competition baseline
// every match includes.
type Fixed struct {
	name string
	fees domain.FeeQuote
}

var _ domain.Strategy = (*Fixed)(nil)

// NewFixed builds a constant-fee strategy. Params:
//
//   - "fee_bps": symmetric fee in basis points. Defaults to 30.
func NewFixed(params map[string]float64) (domain.Strategy, error) {
	bps := param(params, "fee_bps", defaultFixedFeeBps)
	fee := clampFee(decimal.NewFromFloat(bps / 10000))

	fees, err := domain.SymmetricFeeQuote(fee)
	if err != nil {
		return nil, fmt.Errorf("strategy: fixed: %w", err)
	}
	return &Fixed{
		name: fmt.Sprintf("fixed%g", bps),
		fees: fees,
	}, nil
}

// Name returns the strategy identifier.
func (f *Fixed) Name() string { return f.name }

// AfterInitialize sets the constant quote.
func (f *Fixed) AfterInitialize(reserveX, reserveY decimal.Decimal) (*domain.FeeQuote, error) {
	fees := f.fees
	return &fees, nil
}

// AfterSwap keeps the current fees.
func (f *Fixed) AfterSwap(trade domain.TradeInfo) (*domain.FeeQuote, error) {
	return nil, nil
}

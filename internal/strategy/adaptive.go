package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

const defaultAdaptiveBaseBps = 30

var (
	adaptiveBump      = decimal.NewFromFloat(0.001)  // 10 bps per large trade
	adaptiveDecay     = decimal.NewFromFloat(0.0001) // 1 bp back toward base
	adaptiveSizeRatio = decimal.NewFromFloat(0.05)   // trade Y / reserve Y trigger
)

// Adaptive raises its fee after any trade larger than 5% of the Y reserve
// and decays one basis point back toward the resting level otherwise.
type Adaptive struct {
	name string
	base decimal.Decimal
	fee  decimal.Decimal
}

var _ domain.Strategy = (*Adaptive)(nil)

// NewAdaptive builds an adaptive-fee strategy. Params:
//
//   - "base_bps": resting fee in basis points. Defaults to 30.
func NewAdaptive(params map[string]float64) (domain.Strategy, error) {
	bps := param(params, "base_bps", defaultAdaptiveBaseBps)
	base := clampFee(decimal.NewFromFloat(bps / 10000))
	return &Adaptive{
		name: fmt.Sprintf("adaptive%g", bps),
		base: base,
		fee:  base,
	}, nil
}

// Name returns the strategy identifier.
func (a *Adaptive) Name() string { return a.name }

// AfterInitialize rests the fee at base.
func (a *Adaptive) AfterInitialize(reserveX, reserveY decimal.Decimal) (*domain.FeeQuote, error) {
	a.fee = a.base
	return a.quote()
}

// AfterSwap bumps on large trades and decays otherwise.
func (a *Adaptive) AfterSwap(trade domain.TradeInfo) (*domain.FeeQuote, error) {
	large := trade.ReserveY.Sign() > 0 &&
		trade.AmountY.Div(trade.ReserveY).GreaterThan(adaptiveSizeRatio)

	switch {
	case large:
		a.fee = clampFee(a.fee.Add(adaptiveBump))
	case a.fee.GreaterThan(a.base):
		if a.fee = a.fee.Sub(adaptiveDecay); a.fee.LessThan(a.base) {
			a.fee = a.base
		}
	}
	return a.quote()
}

func (a *Adaptive) quote() (*domain.FeeQuote, error) {
	fees, err := domain.SymmetricFeeQuote(a.fee)
	if err != nil {
		return nil, fmt.Errorf("strategy: adaptive quote: %w", err)
	}
	return &fees, nil
}

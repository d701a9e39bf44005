package strategy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

const (
	defaultSpreadBaseBps     = 30
	defaultSpreadSensitivity = 2.0
	defaultSpreadMinBps      = 5
	defaultSpreadMaxBps      = 100
)

// Spread scales its fee with inventory imbalance: the farther the reserves
// drift from their starting mix, the wider the quote on both sides.
type Spread struct {
	name        string
	baseFee     float64
	sensitivity float64
	minFee      float64
	maxFee      float64
	initialX    float64
	initialY    float64
}

var _ domain.Strategy = (*Spread)(nil)

// NewSpread builds an inventory-spread strategy. Params:
//
//   - "base_bps": resting fee in basis points. Defaults to 30.
//   - "sensitivity": fee multiplier per unit of imbalance. Defaults to 2.
//   - "min_bps", "max_bps": clamp band. Defaults 5 and 100.
func NewSpread(params map[string]float64) (domain.Strategy, error) {
	bps := param(params, "base_bps", defaultSpreadBaseBps)
	minBps := param(params, "min_bps", defaultSpreadMinBps)
	maxBps := param(params, "max_bps", defaultSpreadMaxBps)
	if minBps > maxBps {
		return nil, fmt.Errorf("strategy: spread: min_bps %g above max_bps %g", minBps, maxBps)
	}
	return &Spread{
		name:        fmt.Sprintf("spread%g", bps),
		baseFee:     bps / 10000,
		sensitivity: param(params, "sensitivity", defaultSpreadSensitivity),
		minFee:      minBps / 10000,
		maxFee:      maxBps / 10000,
	}, nil
}

// Name returns the strategy identifier.
func (s *Spread) Name() string { return s.name }

// AfterInitialize records the starting mix and rests at the base fee.
func (s *Spread) AfterInitialize(reserveX, reserveY decimal.Decimal) (*domain.FeeQuote, error) {
	s.initialX = reserveX.InexactFloat64()
	s.initialY = reserveY.InexactFloat64()
	return s.quoteAt(0)
}

// AfterSwap reprices from how far the reserves sit from the starting mix.
func (s *Spread) AfterSwap(trade domain.TradeInfo) (*domain.FeeQuote, error) {
	if s.initialX <= 0 || s.initialY <= 0 {
		return nil, nil
	}
	xr := trade.ReserveX.InexactFloat64() / s.initialX
	yr := trade.ReserveY.InexactFloat64() / s.initialY
	if xr+yr <= 0 {
		return nil, nil
	}
	imbalance := math.Abs(xr-yr) / (xr + yr)
	return s.quoteAt(imbalance)
}

func (s *Spread) quoteAt(imbalance float64) (*domain.FeeQuote, error) {
	fee := boundFee(s.baseFee*(1+s.sensitivity*imbalance), s.minFee, s.maxFee)
	fees, err := domain.SymmetricFeeQuote(clampFee(decimal.NewFromFloat(fee)))
	if err != nil {
		return nil, fmt.Errorf("strategy: spread quote: %w", err)
	}
	return &fees, nil
}

package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

const (
	defaultMomentumBaseBps     = 30
	defaultMomentumWindow      = 16
	defaultMomentumSensitivity = 5.0
	defaultMomentumMinBps      = 5
	defaultMomentumMaxBps      = 100
)

// Momentum skews its quote against recent price drift: when the implied
// price is rising it raises the ask and relaxes the bid, charging more on
// the side informed flow hits next. Drift is the relative move between the
// newest and oldest implied trade price in a small ring buffer.
type Momentum struct {
	name        string
	baseFee     float64
	sensitivity float64
	minFee      float64
	maxFee      float64

	prices []float64
	next   int
	count  int
}

var _ domain.Strategy = (*Momentum)(nil)

// NewMomentum builds a momentum strategy. Params:
//
//   - "base_bps": resting fee in basis points. Defaults to 30.
//   - "window": ring buffer length, at least 2. Defaults to 16.
//   - "sensitivity": fee skew per unit of drift. Defaults to 5.
//   - "min_bps", "max_bps": clamp band per side. Defaults 5 and 100.
func NewMomentum(params map[string]float64) (domain.Strategy, error) {
	window := int(param(params, "window", defaultMomentumWindow))
	if window < 2 {
		return nil, fmt.Errorf("strategy: momentum: window %d below 2", window)
	}
	minBps := param(params, "min_bps", defaultMomentumMinBps)
	maxBps := param(params, "max_bps", defaultMomentumMaxBps)
	if minBps > maxBps {
		return nil, fmt.Errorf("strategy: momentum: min_bps %g above max_bps %g", minBps, maxBps)
	}

	bps := param(params, "base_bps", defaultMomentumBaseBps)
	return &Momentum{
		name:        fmt.Sprintf("momentum%g", bps),
		baseFee:     bps / 10000,
		sensitivity: param(params, "sensitivity", defaultMomentumSensitivity),
		minFee:      minBps / 10000,
		maxFee:      maxBps / 10000,
		prices:      make([]float64, window),
	}, nil
}

// Name returns the strategy identifier.
func (m *Momentum) Name() string { return m.name }

// AfterInitialize clears the price history and rests at the base fee.
func (m *Momentum) AfterInitialize(reserveX, reserveY decimal.Decimal) (*domain.FeeQuote, error) {
	m.next = 0
	m.count = 0
	fees, err := domain.SymmetricFeeQuote(clampFee(decimal.NewFromFloat(m.baseFee)))
	if err != nil {
		return nil, fmt.Errorf("strategy: momentum: %w", err)
	}
	return &fees, nil
}

// AfterSwap records the trade's implied price and skews the quote against
// the drift across the window. Until two prices are buffered it keeps the
// current fees.
func (m *Momentum) AfterSwap(trade domain.TradeInfo) (*domain.FeeQuote, error) {
	price := trade.ImpliedPrice().InexactFloat64()
	if price <= 0 {
		return nil, nil
	}
	m.push(price)

	oldest, ok := m.oldest()
	if !ok || oldest <= 0 {
		return nil, nil
	}
	drift := (price - oldest) / oldest

	bid := boundFee(m.baseFee*(1-m.sensitivity*drift), m.minFee, m.maxFee)
	ask := boundFee(m.baseFee*(1+m.sensitivity*drift), m.minFee, m.maxFee)
	fees, err := domain.NewFeeQuote(
		clampFee(decimal.NewFromFloat(bid)),
		clampFee(decimal.NewFromFloat(ask)),
	)
	if err != nil {
		return nil, fmt.Errorf("strategy: momentum quote: %w", err)
	}
	return &fees, nil
}

func (m *Momentum) push(price float64) {
	m.prices[m.next] = price
	m.next = (m.next + 1) % len(m.prices)
	if m.count < len(m.prices) {
		m.count++
	}
}

// oldest returns the earliest buffered price once at least two are held.
func (m *Momentum) oldest() (float64, bool) {
	if m.count < 2 {
		return 0, false
	}
	if m.count < len(m.prices) {
		return m.prices[0], true
	}
	return m.prices[m.next], true
}

package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

const (
	defaultTieredBaseBps  = 30
	defaultTieredDiscount = 0.7
	defaultTieredTier1Pct = 0.01
	defaultTieredTier2Pct = 0.05
)

// Tiered quotes a static volume-discount schedule: three tiers per side
// whose thresholds scale with the starting X reserve, so larger trades pay a
// lower blended rate.
type Tiered struct {
	name     string
	baseFee  float64
	discount float64
	tier1Pct float64
	tier2Pct float64
}

var _ domain.Strategy = (*Tiered)(nil)

// NewTiered builds a volume-discount strategy. Params:
//
//   - "base_bps": first-tier fee in basis points. Defaults to 30.
//   - "discount": per-tier fee multiplier in (0, 1]. Defaults to 0.7.
//   - "tier1_pct", "tier2_pct": tier thresholds as fractions of the initial
//     X reserve. Defaults 0.01 and 0.05.
func NewTiered(params map[string]float64) (domain.Strategy, error) {
	discount := param(params, "discount", defaultTieredDiscount)
	if discount <= 0 || discount > 1 {
		return nil, fmt.Errorf("strategy: tiered: discount %g outside (0, 1]", discount)
	}
	tier1 := param(params, "tier1_pct", defaultTieredTier1Pct)
	tier2 := param(params, "tier2_pct", defaultTieredTier2Pct)
	if tier1 <= 0 || tier2 <= tier1 {
		return nil, fmt.Errorf("strategy: tiered: thresholds %g, %g must be positive and increasing", tier1, tier2)
	}

	bps := param(params, "base_bps", defaultTieredBaseBps)
	return &Tiered{
		name:     fmt.Sprintf("tiered%g", bps),
		baseFee:  bps / 10000,
		discount: discount,
		tier1Pct: tier1,
		tier2Pct: tier2,
	}, nil
}

// Name returns the strategy identifier.
func (s *Tiered) Name() string { return s.name }

// AfterInitialize derives the schedule from the starting X reserve. The
// schedule is static for the life of the pool.
func (s *Tiered) AfterInitialize(reserveX, reserveY decimal.Decimal) (*domain.FeeQuote, error) {
	x := reserveX.InexactFloat64()
	base := clampFee(decimal.NewFromFloat(s.baseFee))
	tiers := []domain.FeeTier{
		{Threshold: decimal.Zero, Fee: base},
		{Threshold: decimal.NewFromFloat(x * s.tier1Pct), Fee: clampFee(decimal.NewFromFloat(s.baseFee * s.discount))},
		{Threshold: decimal.NewFromFloat(x * s.tier2Pct), Fee: clampFee(decimal.NewFromFloat(s.baseFee * s.discount * s.discount))},
	}

	fees, err := domain.NewTieredFeeQuote(base, base, tiers, tiers)
	if err != nil {
		return nil, fmt.Errorf("strategy: tiered quote: %w", err)
	}
	return &fees, nil
}

// AfterSwap keeps the schedule as quoted.
func (s *Tiered) AfterSwap(trade domain.TradeInfo) (*domain.FeeQuote, error) {
	return nil, nil
}

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxFeeTiers is the maximum number of tiers allowed per schedule side.
const MaxFeeTiers = 3

// FeeTier is one segment of a piecewise fee schedule. Threshold is the
// cumulative trade size (in X) at which the tier begins; the first tier of a
// schedule always starts at zero.
type FeeTier struct {
	Threshold decimal.Decimal
	Fee       decimal.Decimal
}

// FeeQuote is a strategy's current bid/ask pricing. BidFee and AskFee are the
// constant rates used when no tier schedule is present; BidTiers/AskTiers,
// when non-nil, replace the constant rate with a size-dependent schedule on
// that side. Immutable once constructed.
type FeeQuote struct {
	BidFee   decimal.Decimal
	AskFee   decimal.Decimal
	BidTiers []FeeTier
	AskTiers []FeeTier
}

// NewFeeQuote builds a constant-fee quote. Negative fees are rejected.
func NewFeeQuote(bidFee, askFee decimal.Decimal) (FeeQuote, error) {
	if bidFee.IsNegative() {
		return FeeQuote{}, fmt.Errorf("%w: bid fee %s must be >= 0", ErrInvalidFee, bidFee)
	}
	if askFee.IsNegative() {
		return FeeQuote{}, fmt.Errorf("%w: ask fee %s must be >= 0", ErrInvalidFee, askFee)
	}
	return FeeQuote{BidFee: bidFee, AskFee: askFee}, nil
}

// SymmetricFeeQuote builds a constant-fee quote with the same rate on both
// sides.
func SymmetricFeeQuote(fee decimal.Decimal) (FeeQuote, error) {
	return NewFeeQuote(fee, fee)
}

// NewTieredFeeQuote builds a quote carrying tier schedules. A nil slice keeps
// that side on the constant rate; a non-nil slice must hold 1 to 3 tiers with
// the first threshold exactly zero and thresholds strictly increasing. The
// constant rate for a tiered side falls back to its first tier's fee.
func NewTieredFeeQuote(bidFee, askFee decimal.Decimal, bidTiers, askTiers []FeeTier) (FeeQuote, error) {
	q, err := NewFeeQuote(bidFee, askFee)
	if err != nil {
		return FeeQuote{}, err
	}
	if bidTiers != nil {
		if err := validateTiers(bidTiers); err != nil {
			return FeeQuote{}, fmt.Errorf("bid tiers: %w", err)
		}
		q.BidTiers = bidTiers
		q.BidFee = bidTiers[0].Fee
	}
	if askTiers != nil {
		if err := validateTiers(askTiers); err != nil {
			return FeeQuote{}, fmt.Errorf("ask tiers: %w", err)
		}
		q.AskTiers = askTiers
		q.AskFee = askTiers[0].Fee
	}
	return q, nil
}

func validateTiers(tiers []FeeTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: schedule cannot be empty", ErrInvalidTiers)
	}
	if len(tiers) > MaxFeeTiers {
		return fmt.Errorf("%w: at most %d tiers allowed, got %d", ErrInvalidTiers, MaxFeeTiers, len(tiers))
	}
	if !tiers[0].Threshold.IsZero() {
		return fmt.Errorf("%w: first tier must have threshold 0, got %s", ErrInvalidTiers, tiers[0].Threshold)
	}
	for i, t := range tiers {
		if t.Threshold.IsNegative() {
			return fmt.Errorf("%w: threshold %s must be >= 0", ErrInvalidTiers, t.Threshold)
		}
		if t.Fee.IsNegative() {
			return fmt.Errorf("%w: fee %s must be >= 0", ErrInvalidTiers, t.Fee)
		}
		if i > 0 && t.Threshold.Cmp(tiers[i-1].Threshold) <= 0 {
			return fmt.Errorf("%w: threshold %s must be > previous threshold %s",
				ErrInvalidTiers, t.Threshold, tiers[i-1].Threshold)
		}
	}
	return nil
}

// EffectiveBidFee returns the size-weighted bid fee for a trade of the given
// size. Without a schedule it is the constant bid fee.
func (q FeeQuote) EffectiveBidFee(size decimal.Decimal) decimal.Decimal {
	return effectiveFee(q.BidTiers, q.BidFee, size)
}

// EffectiveAskFee returns the size-weighted ask fee for a trade of the given
// size. Without a schedule it is the constant ask fee.
func (q FeeQuote) EffectiveAskFee(size decimal.Decimal) decimal.Decimal {
	return effectiveFee(q.AskTiers, q.AskFee, size)
}

// effectiveFee walks the schedule and charges each spanned tier for the part
// of the trade inside it: tier i covers min(remaining, next threshold - own
// threshold). A trade ending exactly at a threshold never enters the higher
// tier; zero or negative size prices at the base tier.
func effectiveFee(tiers []FeeTier, flat, size decimal.Decimal) decimal.Decimal {
	if len(tiers) == 0 {
		return flat
	}
	if size.Sign() <= 0 {
		return tiers[0].Fee
	}
	weighted := decimal.Zero
	remaining := size
	for i, t := range tiers {
		if remaining.Sign() <= 0 {
			break
		}
		span := remaining
		if i+1 < len(tiers) {
			width := tiers[i+1].Threshold.Sub(t.Threshold)
			if width.Cmp(span) < 0 {
				span = width
			}
		}
		weighted = weighted.Add(span.Mul(t.Fee))
		remaining = remaining.Sub(span)
	}
	return weighted.Div(size)
}

// EffectiveBidFeeFloat is the float fast-path companion of EffectiveBidFee.
func (q FeeQuote) EffectiveBidFeeFloat(size float64) float64 {
	return effectiveFeeFloat(q.BidTiers, q.BidFee, size)
}

// EffectiveAskFeeFloat is the float fast-path companion of EffectiveAskFee.
func (q FeeQuote) EffectiveAskFeeFloat(size float64) float64 {
	return effectiveFeeFloat(q.AskTiers, q.AskFee, size)
}

func effectiveFeeFloat(tiers []FeeTier, flat decimal.Decimal, size float64) float64 {
	if len(tiers) == 0 {
		return flat.InexactFloat64()
	}
	if size <= 0 {
		return tiers[0].Fee.InexactFloat64()
	}
	weighted := 0.0
	remaining := size
	for i, t := range tiers {
		if remaining <= 0 {
			break
		}
		span := remaining
		if i+1 < len(tiers) {
			width := tiers[i+1].Threshold.Sub(t.Threshold).InexactFloat64()
			if width < span {
				span = width
			}
		}
		weighted += span * t.Fee.InexactFloat64()
		remaining -= span
	}
	return weighted / size
}

// HasBidTiers reports whether the bid side carries a tier schedule.
func (q FeeQuote) HasBidTiers() bool { return len(q.BidTiers) > 0 }

// HasAskTiers reports whether the ask side carries a tier schedule.
func (q FeeQuote) HasAskTiers() bool { return len(q.AskTiers) > 0 }

// FeePair is a flat bid/ask rate pair, the shape fee updates take on the hook
// wire format.
type FeePair struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Quote converts the pair into a constant-fee quote.
func (p FeePair) Quote() (FeeQuote, error) {
	return NewFeeQuote(p.Bid, p.Ask)
}

package market

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

const (
	// dustThreshold drops split legs too small to execute; settling them
	// would only churn pool fee state for no volume.
	dustThreshold = 0.0001

	// Bounds for the tiered-fee refinement loop. Convergence is measured
	// as the largest allocation change relative to the order total.
	maxSplitIterations = 5
	splitTolerance     = 0.001
)

// Allocation is one pool's share of a split order. Amount is in Y for buy
// orders and in X for sell orders.
type Allocation struct {
	Pool   domain.Pool
	Amount decimal.Decimal
}

// RoutedTrade pairs an executed pool trade with the allocation that produced
// it. AmountY is the Y spent for buys and the Y received for sells.
type RoutedTrade struct {
	Pool    domain.Pool
	Trade   domain.TradeInfo
	AmountY decimal.Decimal
}

// OrderRouter splits retail orders across pools so the post-trade marginal
// price is equal everywhere, then settles each leg. The split is the
// analytic solution for fee-on-input constant product pools; when a pool
// runs a tier schedule the split is refined at the effective fees for the
// current leg sizes instead.
type OrderRouter struct{}

// NewOrderRouter creates a router.
func NewOrderRouter() *OrderRouter { return &OrderRouter{} }

// Split allocates an order across pools. Buy orders are sized in Y and split
// on the ask side; sell orders are sized in X and split on the bid side.
// With more than two pools the split reduces pairwise in input order: pool i
// against the rest of the list proxied by pool i+1, remainder carried
// forward. Near-optimal for the handful of pools a match fields.
func (r *OrderRouter) Split(pools []domain.Pool, total decimal.Decimal, side domain.OrderSide) []Allocation {
	switch len(pools) {
	case 0:
		return nil
	case 1:
		return []Allocation{{Pool: pools[0], Amount: total}}
	case 2:
		first, second := r.splitPair(pools[0], pools[1], total, side)
		return []Allocation{
			{Pool: pools[0], Amount: first},
			{Pool: pools[1], Amount: second},
		}
	}

	remaining := total
	allocs := make([]Allocation, 0, len(pools))
	for i := 0; i < len(pools)-1; i++ {
		first, second := r.splitPair(pools[i], pools[i+1], remaining, side)
		allocs = append(allocs, Allocation{Pool: pools[i], Amount: first})
		remaining = second
	}
	return append(allocs, Allocation{Pool: pools[len(pools)-1], Amount: remaining})
}

// splitPair divides total between exactly two pools, dispatching between the
// single-shot constant-fee solution and tiered refinement.
func (r *OrderRouter) splitPair(p1, p2 domain.Pool, total decimal.Decimal, side domain.OrderSide) (decimal.Decimal, decimal.Decimal) {
	fees1, fees2 := p1.CurrentFees(), p2.CurrentFees()

	var tiered bool
	if side == domain.OrderSideBuy {
		tiered = fees1.HasAskTiers() || fees2.HasAskTiers()
	} else {
		tiered = fees1.HasBidTiers() || fees2.HasBidTiers()
	}

	var first, second float64
	if tiered {
		first, second = refinePair(p1, p2, total, side)
	} else {
		in1, out1, in2, out2 := pairReserves(p1, p2, side)
		first, second = splitPairAt(in1, out1, in2, out2, total.InexactFloat64(), baseFee(fees1, side), baseFee(fees2, side))
	}
	return decimal.NewFromFloat(first), decimal.NewFromFloat(second)
}

// splitPairAt solves the equal-marginal-price split for one pair at fixed
// fee rates. in and out are each pool's reserves on the order's input and
// output side (Y in for buys, X in for sells), total the input amount.
//
// With gamma = 1 - fee the marginal output of a leg of size d is
// out*gamma*in/(in+gamma*d)^2, so equalizing marginals across both pools
// gives, with Ai = sqrt(out_i*gamma_i*in_i) and r = A1/A2,
//
//	first = (r*(in2+gamma2*total) - in1) / (gamma1 + r*gamma2)
//
// clamped to [0, total]. A dead second pool takes nothing; a degenerate
// denominator falls back to an even split.
func splitPairAt(in1, out1, in2, out2, total, fee1, fee2 float64) (float64, float64) {
	gamma1 := 1.0 - fee1
	gamma2 := 1.0 - fee2

	a1 := math.Sqrt(out1 * gamma1 * in1)
	a2 := math.Sqrt(out2 * gamma2 * in2)
	if a2 == 0 {
		return total, 0
	}

	ratio := a1 / a2
	first := total / 2
	if den := gamma1 + ratio*gamma2; den != 0 {
		first = (ratio*(in2+gamma2*total) - in1) / den
	}
	first = math.Max(0, math.Min(total, first))
	return first, total - first
}

// refinePair iterates the closed form to a fixed point of the effective
// fees. Each pass reprices both pools' fees at the leg sizes from the
// previous split and re-solves, stopping once the split moves less than
// splitTolerance of the total. Seeded from the base-fee solution; a
// non-converged loop keeps the last split rather than failing.
func refinePair(p1, p2 domain.Pool, total decimal.Decimal, side domain.OrderSide) (float64, float64) {
	in1, out1, in2, out2 := pairReserves(p1, p2, side)
	fees1, fees2 := p1.CurrentFees(), p2.CurrentFees()
	base1 := baseFee(fees1, side)
	base2 := baseFee(fees2, side)
	t := total.InexactFloat64()

	first, second := splitPairAt(in1, out1, in2, out2, t, base1, base2)

	for i := 0; i < maxSplitIterations; i++ {
		// Tier schedules key on X, so buy legs (sized in Y) are first
		// mapped to an X fill estimate at the base fee.
		var f1, f2 float64
		if side == domain.OrderSideBuy {
			f1 = fees1.EffectiveAskFeeFloat(xOutEstimate(out1, in1, base1, first))
			f2 = fees2.EffectiveAskFeeFloat(xOutEstimate(out2, in2, base2, second))
		} else {
			f1 = fees1.EffectiveBidFeeFloat(first)
			f2 = fees2.EffectiveBidFeeFloat(second)
		}

		next1, next2 := splitPairAt(in1, out1, in2, out2, t, f1, f2)

		var maxChange float64
		if t > 0 {
			maxChange = math.Max(math.Abs(next1-first), math.Abs(next2-second)) / t
		}
		first, second = next1, next2
		if maxChange < splitTolerance {
			break
		}
	}
	return first, second
}

// pairReserves orients both pools' reserves to the order direction: the
// input side receives the trader's tokens, the output side pays out.
func pairReserves(p1, p2 domain.Pool, side domain.OrderSide) (in1, out1, in2, out2 float64) {
	x1 := p1.ReserveX().InexactFloat64()
	y1 := p1.ReserveY().InexactFloat64()
	x2 := p2.ReserveX().InexactFloat64()
	y2 := p2.ReserveY().InexactFloat64()
	if side == domain.OrderSideBuy {
		return y1, x1, y2, x2
	}
	return x1, y1, x2, y2
}

// baseFee picks the flat fee for the order direction: asks price buys, bids
// price sells.
func baseFee(fees domain.FeeQuote, side domain.OrderSide) float64 {
	if side == domain.OrderSideBuy {
		return fees.AskFee.InexactFloat64()
	}
	return fees.BidFee.InexactFloat64()
}

// xOutEstimate is the constant-product fill for a Y input at a fixed fee,
// used to key tier lookups on the X side during refinement.
func xOutEstimate(x, y, fee, amountY float64) float64 {
	if amountY <= 0 {
		return 0
	}
	gamma := 1.0 - fee
	return x * gamma * amountY / (y + gamma*amountY)
}

// RouteOrder splits one retail order across the pools and settles each leg.
// Buy orders spend their Y size directly; sell orders convert the Y size to
// X at the fair price, since the pools bid in X. Legs at or below the dust
// threshold are dropped unexecuted, legs the pool cannot fill are skipped,
// and pool errors abort the whole order.
func (r *OrderRouter) RouteOrder(order domain.RetailOrder, pools []domain.Pool, fairPrice decimal.Decimal, timestamp int64) ([]RoutedTrade, error) {
	if order.Side == domain.OrderSideBuy {
		return r.routeBuy(order.Size, pools, timestamp)
	}
	return r.routeSell(order.Size, pools, fairPrice, timestamp)
}

func (r *OrderRouter) routeBuy(totalY decimal.Decimal, pools []domain.Pool, timestamp int64) ([]RoutedTrade, error) {
	var trades []RoutedTrade
	for _, alloc := range r.Split(pools, totalY, domain.OrderSideBuy) {
		if alloc.Amount.InexactFloat64() <= dustThreshold {
			continue
		}
		trade, err := alloc.Pool.ExecuteBuyXWithY(alloc.Amount, timestamp)
		if err != nil {
			return nil, fmt.Errorf("market: route buy leg %s: %w", alloc.Pool.Name(), err)
		}
		if trade == nil {
			continue
		}
		trades = append(trades, RoutedTrade{Pool: alloc.Pool, Trade: *trade, AmountY: alloc.Amount})
	}
	return trades, nil
}

func (r *OrderRouter) routeSell(sizeY decimal.Decimal, pools []domain.Pool, fairPrice decimal.Decimal, timestamp int64) ([]RoutedTrade, error) {
	if fairPrice.Sign() <= 0 {
		return nil, fmt.Errorf("market: route sell: fair price %s is not positive", fairPrice)
	}

	totalX := sizeY.Div(fairPrice)
	var trades []RoutedTrade
	for _, alloc := range r.Split(pools, totalX, domain.OrderSideSell) {
		if alloc.Amount.InexactFloat64() <= dustThreshold {
			continue
		}
		trade, err := alloc.Pool.ExecuteBuyX(alloc.Amount, timestamp)
		if err != nil {
			return nil, fmt.Errorf("market: route sell leg %s: %w", alloc.Pool.Name(), err)
		}
		if trade == nil {
			continue
		}
		trades = append(trades, RoutedTrade{Pool: alloc.Pool, Trade: *trade, AmountY: trade.AmountY})
	}
	return trades, nil
}

// RouteOrders routes a batch of orders sequentially. Earlier orders move the
// pools before later ones are split, matching live execution order.
func (r *OrderRouter) RouteOrders(orders []domain.RetailOrder, pools []domain.Pool, fairPrice decimal.Decimal, timestamp int64) ([]RoutedTrade, error) {
	var all []RoutedTrade
	for _, order := range orders {
		trades, err := r.RouteOrder(order, pools, fairPrice, timestamp)
		if err != nil {
			return nil, err
		}
		all = append(all, trades...)
	}
	return all, nil
}

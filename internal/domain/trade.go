package domain

import "github.com/shopspring/decimal"

// TradeSide is the pool's perspective on an executed swap: the pool either
// buys X from the trader or sells X to the trader.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// OrderSide is the trader's perspective on a flow order. A trader buying X
// makes the pool sell, and vice versa.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// TradeInfo records one executed swap against a pool. AmountX and AmountY are
// the gross legs of the trade including fees; Side is the pool's side.
// Timestamp is the logical simulation step, not wall time, so runs stay
// reproducible.
type TradeInfo struct {
	Pool      string
	Side      TradeSide
	AmountX   decimal.Decimal
	AmountY   decimal.Decimal
	FeeX      decimal.Decimal
	FeeY      decimal.Decimal
	ReserveX  decimal.Decimal
	ReserveY  decimal.Decimal
	Timestamp int64
}

// ImpliedPrice is the realized Y-per-X price of the trade, zero when no X
// moved.
func (t TradeInfo) ImpliedPrice() decimal.Decimal {
	if t.AmountX.IsZero() {
		return decimal.Zero
	}
	return t.AmountY.Div(t.AmountX)
}

// Quote is a previewed swap: the amounts that executing it would move, without
// touching pool state. EffectivePrice is the all-in Y-per-X price.
type Quote struct {
	Side           TradeSide
	AmountIn       decimal.Decimal
	AmountOut      decimal.Decimal
	FeeRate        decimal.Decimal
	FeeAmount      decimal.Decimal
	EffectivePrice decimal.Decimal
}

// RetailOrder is one unit of uninformed flow to be routed across pools. Size
// is always denominated in Y: buys spend it directly, sells convert it to an
// X amount at the prevailing fair price before splitting.
type RetailOrder struct {
	Side OrderSide
	Size decimal.Decimal
}

// Package market implements the trading environment around the pools: the
// fair price process, retail order flow, optimal order routing and the
// arbitrageur that pins pool prices to the fair price. Solvers run their
// closed-form math in float64 and hand exact decimal amounts to the pools
// for settlement.
package market

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// ArbResult describes one arbitrage trade against a single pool. Side is the
// pool's perspective: SideSell means the pool sold X to the arbitrageur,
// SideBuy means the pool bought X from it. AmountX and AmountY are the gross
// legs of the trade and Profit is marked at the fair price.
type ArbResult struct {
	PoolName string
	Side     domain.TradeSide
	AmountX  decimal.Decimal
	AmountY  decimal.Decimal
	Profit   decimal.Decimal
}

// Arbitrageur trades mispriced pools back toward the fair price. It is
// stateless. Trade sizes come from the fee-on-input constant product closed
// forms at each pool's base fees; profitability is then confirmed against
// the pool's own estimate, which prices effective tiered fees.
type Arbitrageur struct{}

// NewArbitrageur creates an arbitrageur.
func NewArbitrageur() *Arbitrageur { return &Arbitrageur{} }

// FindOpportunity computes the profit-maximizing trade against one pool at
// fair price p (Y per X). Returns nil when the pool is at fair value or no
// trade clears a positive profit.
func (a *Arbitrageur) FindOpportunity(pool domain.Pool, fairPrice decimal.Decimal) *ArbResult {
	switch pool.SpotPrice().Cmp(fairPrice) {
	case -1:
		return a.buyXFromPool(pool, fairPrice)
	case 1:
		return a.sellXToPool(pool, fairPrice)
	default:
		return nil
	}
}

// buyXFromPool handles spot < fair: the pool underprices X, so the
// arbitrageur buys it and marks to fair. Closed form for the pool-sells side
// is amountX = x - sqrt(k/(gamma*p)) with gamma from the base ask fee,
// capped at 99% of the X reserve so the pool is never drained.
func (a *Arbitrageur) buyXFromPool(pool domain.Pool, fairPrice decimal.Decimal) *ArbResult {
	x := pool.ReserveX().InexactFloat64()
	y := pool.ReserveY().InexactFloat64()
	k := x * y
	gamma := 1.0 - pool.CurrentFees().AskFee.InexactFloat64()
	p := fairPrice.InexactFloat64()
	if gamma <= 0 || p <= 0 {
		return nil
	}

	amountX := x - math.Sqrt(k/(gamma*p))
	if amountX <= 0 {
		return nil
	}
	if maxX := x * 0.99; amountX > maxX {
		amountX = maxX
	}

	grossY, _ := pool.EstimateSellX(amountX)
	if grossY <= 0 {
		return nil
	}
	profit := amountX*p - grossY
	if profit <= 0 {
		return nil
	}

	return &ArbResult{
		PoolName: pool.Name(),
		Side:     domain.SideSell,
		AmountX:  decimal.NewFromFloat(amountX),
		AmountY:  decimal.NewFromFloat(grossY),
		Profit:   decimal.NewFromFloat(profit),
	}
}

// sellXToPool handles spot > fair: the pool overprices X, so the arbitrageur
// sells into it at a premium. Closed form for the gross input is
// amountX = (sqrt(k*gamma/p) - x) / gamma with gamma from the base bid fee.
// No cap here, the pool only gains X.
func (a *Arbitrageur) sellXToPool(pool domain.Pool, fairPrice decimal.Decimal) *ArbResult {
	x := pool.ReserveX().InexactFloat64()
	y := pool.ReserveY().InexactFloat64()
	k := x * y
	gamma := 1.0 - pool.CurrentFees().BidFee.InexactFloat64()
	p := fairPrice.InexactFloat64()
	if gamma <= 0 || p <= 0 {
		return nil
	}

	amountX := (math.Sqrt(k*gamma/p) - x) / gamma
	if amountX <= 0 {
		return nil
	}

	yOut, _ := pool.EstimateBuyX(amountX)
	if yOut <= 0 {
		return nil
	}
	profit := yOut - amountX*p
	if profit <= 0 {
		return nil
	}

	return &ArbResult{
		PoolName: pool.Name(),
		Side:     domain.SideBuy,
		AmountX:  decimal.NewFromFloat(amountX),
		AmountY:  decimal.NewFromFloat(yOut),
		Profit:   decimal.NewFromFloat(profit),
	}
}

// Execute finds and settles the optimal arbitrage trade against one pool. A
// nil result with nil error means no profitable opportunity existed or the
// pool could not fill the computed size. Errors come from the pool's
// strategy and are fatal to the run.
func (a *Arbitrageur) Execute(pool domain.Pool, fairPrice decimal.Decimal, timestamp int64) (*ArbResult, error) {
	opp := a.FindOpportunity(pool, fairPrice)
	if opp == nil {
		return nil, nil
	}

	var (
		trade *domain.TradeInfo
		err   error
	)
	if opp.Side == domain.SideSell {
		trade, err = pool.ExecuteSellX(opp.AmountX, timestamp)
	} else {
		trade, err = pool.ExecuteBuyX(opp.AmountX, timestamp)
	}
	if err != nil {
		return nil, fmt.Errorf("market: arbitrage %s: %w", pool.Name(), err)
	}
	if trade == nil {
		return nil, nil
	}
	return opp, nil
}

// ArbitrageAll runs Execute against every pool in input order and returns
// the trades that filled.
func (a *Arbitrageur) ArbitrageAll(pools []domain.Pool, fairPrice decimal.Decimal, timestamp int64) ([]ArbResult, error) {
	var results []ArbResult
	for _, pool := range pools {
		res, err := a.Execute(pool, fairPrice, timestamp)
		if err != nil {
			return nil, err
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, nil
}

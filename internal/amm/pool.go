// Package amm implements a constant product market maker with
// strategy-controlled dynamic fees. Swaps follow the fee-on-input model:
// for fee f and γ = 1−f, only γ·Δin moves reserves while the fee portion
// accrues to separate buckets, so x·y = k holds across trades and fee income
// is accounted for on its own.
//
// Pricing runs twice. Quote methods use exact decimal arithmetic and never
// touch state; Execute methods price with a float64 fast path and commit the
// result as decimals. A Pool is not safe for concurrent use; each simulation
// owns its pools outright.
package amm

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

var one = decimal.NewFromInt(1)

// Config configures a Pool.
type Config struct {
	Strategy domain.Strategy
	InitialX decimal.Decimal
	InitialY decimal.Decimal

	// Name overrides the strategy name as the pool identifier. Engines
	// that run duplicate strategies must set distinct names.
	Name string

	// FeeUpdateInterval defers the AfterSwap callback to every Nth trade.
	// Zero refreshes fees on every trade.
	FeeUpdateInterval uint64
}

// Pool is a single constant product venue.
type Pool struct {
	strategy domain.Strategy
	name     string

	reserveX decimal.Decimal
	reserveY decimal.Decimal

	currentFees      domain.FeeQuote
	accumulatedFeesX decimal.Decimal
	accumulatedFeesY decimal.Decimal

	initialized bool

	pendingTrade      *domain.TradeInfo
	tradeCount        uint64
	feeUpdateInterval uint64
}

// New builds an uninitialized pool. Call Initialize before trading.
func New(cfg Config) *Pool {
	name := cfg.Name
	if name == "" && cfg.Strategy != nil {
		name = cfg.Strategy.Name()
	}
	return &Pool{
		strategy:          cfg.Strategy,
		name:              name,
		reserveX:          cfg.InitialX,
		reserveY:          cfg.InitialY,
		feeUpdateInterval: cfg.FeeUpdateInterval,
	}
}

// Initialize obtains the opening fees from the strategy. A nil quote from the
// strategy leaves the fees at zero.
func (p *Pool) Initialize() error {
	if p.initialized {
		return fmt.Errorf("amm: initialize %s: %w", p.name, domain.ErrPoolAlreadyInitialized)
	}
	quote, err := p.strategy.AfterInitialize(p.reserveX, p.reserveY)
	if err != nil {
		return fmt.Errorf("amm: initialize %s: %w", p.name, err)
	}
	if quote != nil {
		p.currentFees = *quote
	}
	p.initialized = true
	p.tradeCount = 0
	p.pendingTrade = nil
	return nil
}

// SetFeeUpdateInterval changes how often AfterSwap runs: 0 is every trade,
// N is every Nth trade.
func (p *Pool) SetFeeUpdateInterval(n uint64) {
	p.feeUpdateInterval = n
}

// Flush applies a deferred fee update, if one is pending.
func (p *Pool) Flush() error {
	if p.pendingTrade == nil {
		return nil
	}
	quote, err := p.strategy.AfterSwap(*p.pendingTrade)
	if err != nil {
		return fmt.Errorf("amm: flush %s: %w", p.name, err)
	}
	if quote != nil {
		p.currentFees = *quote
	}
	p.pendingTrade = nil
	return nil
}

// maybeUpdateFees records the trade and refreshes fees per the update
// interval. Batching only changes the callback cadence, never settlement.
func (p *Pool) maybeUpdateFees(trade *domain.TradeInfo) error {
	p.tradeCount++
	p.pendingTrade = trade

	if p.feeUpdateInterval != 0 && p.tradeCount%p.feeUpdateInterval != 0 {
		return nil
	}
	quote, err := p.strategy.AfterSwap(*trade)
	if err != nil {
		return fmt.Errorf("amm: fee update %s: %w", p.name, err)
	}
	if quote != nil {
		p.currentFees = *quote
	}
	p.pendingTrade = nil
	return nil
}

func (p *Pool) Name() string      { return p.name }
func (p *Pool) Initialized() bool { return p.initialized }

func (p *Pool) ReserveX() decimal.Decimal { return p.reserveX }
func (p *Pool) ReserveY() decimal.Decimal { return p.reserveY }

func (p *Pool) Reserves() (x, y decimal.Decimal) {
	return p.reserveX, p.reserveY
}

// K is the constant product invariant.
func (p *Pool) K() decimal.Decimal {
	return p.reserveX.Mul(p.reserveY)
}

// SpotPrice is the pre-fee marginal price, Y per X.
func (p *Pool) SpotPrice() decimal.Decimal {
	if p.reserveX.IsZero() {
		return decimal.Zero
	}
	return p.reserveY.Div(p.reserveX)
}

func (p *Pool) AccumulatedFees() (feesX, feesY decimal.Decimal) {
	return p.accumulatedFeesX, p.accumulatedFeesY
}

func (p *Pool) CurrentFees() domain.FeeQuote { return p.currentFees }
func (p *Pool) TradeCount() uint64           { return p.tradeCount }

// EstimateBuyX prices the pool buying amountX of X, float fast path. Returns
// the Y paid out and the X fee; zero output means infeasible.
func (p *Pool) EstimateBuyX(amountX float64) (amountYOut, feeX float64) {
	if !p.initialized || amountX <= 0 {
		return 0, 0
	}
	fee := p.currentFees.EffectiveBidFeeFloat(amountX)
	rx := p.reserveX.InexactFloat64()
	ry := p.reserveY.InexactFloat64()
	k := rx * ry

	newRx := rx + amountX*(1-fee)
	yOut := ry - k/newRx
	if yOut <= 0 {
		return 0, 0
	}
	return yOut, amountX * fee
}

// EstimateSellX prices the pool selling amountX of X, float fast path.
// Returns the gross Y the trader owes and the Y fee.
func (p *Pool) EstimateSellX(amountX float64) (amountYIn, feeY float64) {
	if !p.initialized {
		return 0, 0
	}
	rx := p.reserveX.InexactFloat64()
	if amountX <= 0 || amountX >= rx {
		return 0, 0
	}
	ry := p.reserveY.InexactFloat64()
	k := rx * ry

	fee := p.currentFees.EffectiveAskFeeFloat(amountX)
	gamma := 1 - fee
	if gamma <= 0 {
		return 0, 0
	}
	netY := k/(rx-amountX) - ry
	if netY <= 0 {
		return 0, 0
	}
	totalY := netY / gamma
	return totalY, totalY - netY
}

// EstimateXForY prices a trader spending gross amountY of Y, float fast path.
// Returns the X paid out and the Y fee. With an ask schedule the fee is keyed
// by the X output, estimated first at the base rate.
func (p *Pool) EstimateXForY(amountY float64) (amountXOut, feeY float64) {
	if !p.initialized || amountY <= 0 {
		return 0, 0
	}
	rx := p.reserveX.InexactFloat64()
	ry := p.reserveY.InexactFloat64()
	k := rx * ry

	fee := p.currentFees.AskFee.InexactFloat64()
	if p.currentFees.HasAskTiers() {
		xEst := rx - k/(ry+amountY*(1-fee))
		if xEst > 0 {
			fee = p.currentFees.EffectiveAskFeeFloat(xEst)
		}
	}
	xOut := rx - k/(ry+amountY*(1-fee))
	if xOut <= 0 {
		return 0, 0
	}
	return xOut, amountY * fee
}

// QuoteBuyX previews the pool buying amountX of X from a trader, exact
// decimal math. The bid fee is taken from the X input; only the net amount
// reaches the reserves.
func (p *Pool) QuoteBuyX(amountX decimal.Decimal) (*domain.Quote, error) {
	if !p.initialized {
		return nil, fmt.Errorf("amm: quote buy x on %s: %w", p.name, domain.ErrPoolNotInitialized)
	}
	if amountX.Sign() <= 0 {
		return nil, nil
	}

	feeRate := p.currentFees.EffectiveBidFee(amountX)
	feeAmount := amountX.Mul(feeRate)
	netX := amountX.Mul(one.Sub(feeRate))

	newReserveX := p.reserveX.Add(netX)
	newReserveY := p.K().Div(newReserveX)
	amountY := p.reserveY.Sub(newReserveY)
	if amountY.Sign() <= 0 {
		return nil, nil
	}

	return &domain.Quote{
		Side:           domain.SideBuy,
		AmountIn:       amountX,
		AmountOut:      amountY,
		FeeRate:        feeRate,
		FeeAmount:      feeAmount,
		EffectivePrice: amountY.Div(amountX),
	}, nil
}

// QuoteSellX previews the pool selling amountX of X to a trader, exact
// decimal math. The trader pays gross Y; the ask fee is the part of it that
// never reaches the reserves.
func (p *Pool) QuoteSellX(amountX decimal.Decimal) (*domain.Quote, error) {
	if !p.initialized {
		return nil, fmt.Errorf("amm: quote sell x on %s: %w", p.name, domain.ErrPoolNotInitialized)
	}
	if amountX.Sign() <= 0 || amountX.Cmp(p.reserveX) >= 0 {
		return nil, nil
	}

	newReserveX := p.reserveX.Sub(amountX)
	newReserveY := p.K().Div(newReserveX)
	netY := newReserveY.Sub(p.reserveY)
	if netY.Sign() <= 0 {
		return nil, nil
	}

	feeRate := p.currentFees.EffectiveAskFee(amountX)
	gamma := one.Sub(feeRate)
	if gamma.Sign() <= 0 {
		return nil, nil
	}
	totalY := netY.Div(gamma)
	feeAmount := totalY.Sub(netY)

	return &domain.Quote{
		Side:           domain.SideSell,
		AmountIn:       totalY,
		AmountOut:      amountX,
		FeeRate:        feeRate,
		FeeAmount:      feeAmount,
		EffectivePrice: totalY.Div(amountX),
	}, nil
}

// QuoteXForY previews a trader spending gross amountY of Y for X, exact
// decimal math. With an ask schedule the fee is keyed by the X output,
// estimated first at the base rate.
func (p *Pool) QuoteXForY(amountY decimal.Decimal) (*domain.Quote, error) {
	if !p.initialized {
		return nil, fmt.Errorf("amm: quote x for y on %s: %w", p.name, domain.ErrPoolNotInitialized)
	}
	if amountY.Sign() <= 0 {
		return nil, nil
	}

	feeRate := p.currentFees.AskFee
	if p.currentFees.HasAskTiers() {
		netEst := amountY.Mul(one.Sub(feeRate))
		xEst := p.reserveX.Sub(p.K().Div(p.reserveY.Add(netEst)))
		if xEst.Sign() > 0 {
			feeRate = p.currentFees.EffectiveAskFee(xEst)
		}
	}
	feeAmount := amountY.Mul(feeRate)
	netY := amountY.Mul(one.Sub(feeRate))

	newReserveY := p.reserveY.Add(netY)
	newReserveX := p.K().Div(newReserveY)
	amountX := p.reserveX.Sub(newReserveX)
	if amountX.Sign() <= 0 {
		return nil, nil
	}

	return &domain.Quote{
		Side:           domain.SideSell,
		AmountIn:       amountY,
		AmountOut:      amountX,
		FeeRate:        feeRate,
		FeeAmount:      feeAmount,
		EffectivePrice: amountY.Div(amountX),
	}, nil
}

// ExecuteBuyX swaps amountX of X into the pool for Y. The X fee accrues to
// the fee bucket; only the net X joins the reserves.
func (p *Pool) ExecuteBuyX(amountX decimal.Decimal, ts int64) (*domain.TradeInfo, error) {
	if !p.initialized {
		return nil, fmt.Errorf("amm: execute buy x on %s: %w", p.name, domain.ErrPoolNotInitialized)
	}
	amountXF := amountX.InexactFloat64()
	yOut, feeXF := p.EstimateBuyX(amountXF)
	if yOut <= 0 {
		return nil, nil
	}

	amountY := decimal.NewFromFloat(yOut)
	feeX := decimal.NewFromFloat(feeXF)
	p.reserveX = p.reserveX.Add(decimal.NewFromFloat(amountXF - feeXF))
	p.reserveY = p.reserveY.Sub(amountY)
	p.accumulatedFeesX = p.accumulatedFeesX.Add(feeX)

	trade := &domain.TradeInfo{
		Pool:      p.name,
		Side:      domain.SideBuy,
		AmountX:   amountX,
		AmountY:   amountY,
		FeeX:      feeX,
		ReserveX:  p.reserveX,
		ReserveY:  p.reserveY,
		Timestamp: ts,
	}
	if err := p.maybeUpdateFees(trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// ExecuteSellX swaps Y into the pool for amountX of X out. The trader pays
// gross Y; the fee part goes to the Y bucket.
func (p *Pool) ExecuteSellX(amountX decimal.Decimal, ts int64) (*domain.TradeInfo, error) {
	if !p.initialized {
		return nil, fmt.Errorf("amm: execute sell x on %s: %w", p.name, domain.ErrPoolNotInitialized)
	}
	totalY, feeYF := p.EstimateSellX(amountX.InexactFloat64())
	if totalY <= 0 {
		return nil, nil
	}

	amountY := decimal.NewFromFloat(totalY)
	feeY := decimal.NewFromFloat(feeYF)
	p.reserveX = p.reserveX.Sub(amountX)
	p.reserveY = p.reserveY.Add(decimal.NewFromFloat(totalY - feeYF))
	p.accumulatedFeesY = p.accumulatedFeesY.Add(feeY)

	trade := &domain.TradeInfo{
		Pool:      p.name,
		Side:      domain.SideSell,
		AmountX:   amountX,
		AmountY:   amountY,
		FeeY:      feeY,
		ReserveX:  p.reserveX,
		ReserveY:  p.reserveY,
		Timestamp: ts,
	}
	if err := p.maybeUpdateFees(trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// ExecuteBuyXWithY swaps gross amountY of Y into the pool for X.
func (p *Pool) ExecuteBuyXWithY(amountY decimal.Decimal, ts int64) (*domain.TradeInfo, error) {
	if !p.initialized {
		return nil, fmt.Errorf("amm: execute buy x with y on %s: %w", p.name, domain.ErrPoolNotInitialized)
	}
	amountYF := amountY.InexactFloat64()
	xOut, feeYF := p.EstimateXForY(amountYF)
	if xOut <= 0 {
		return nil, nil
	}

	amountX := decimal.NewFromFloat(xOut)
	feeY := decimal.NewFromFloat(feeYF)
	p.reserveX = p.reserveX.Sub(amountX)
	p.reserveY = p.reserveY.Add(decimal.NewFromFloat(amountYF - feeYF))
	p.accumulatedFeesY = p.accumulatedFeesY.Add(feeY)

	trade := &domain.TradeInfo{
		Pool:      p.name,
		Side:      domain.SideSell,
		AmountX:   amountX,
		AmountY:   amountY,
		FeeY:      feeY,
		ReserveX:  p.reserveX,
		ReserveY:  p.reserveY,
		Timestamp: ts,
	}
	if err := p.maybeUpdateFees(trade); err != nil {
		return nil, err
	}
	return trade, nil
}

var _ domain.Pool = (*Pool)(nil)

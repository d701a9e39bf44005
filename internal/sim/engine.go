// Package sim runs complete market simulations: a GBM fair price drives an
// arbitrageur and routed retail flow against a field of strategy-controlled
// pools, and each pool is scored on the edge it captures from that flow and
// on its mark-to-fair PnL.
//
// A run is a pure function of its Config and participants. The price process
// and the retail trader own seeded generators, the pools settle in decimals,
// and the engine folds every event into a SHA3-256 fingerprint, so equal
// fingerprints mean bit-identical runs.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/amm"
	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/market"
)

// Engine runs simulations under a fixed Config. It holds no state across
// runs: calling Run twice with equivalent participants produces identical
// results.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an engine after validating cfg. A nil logger falls back to
// slog.Default().
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "sim_engine")),
	}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run simulates one complete market. Each participant backs one pool; pools
// are named positionally (p0, p1, ...) so duplicate strategy display names
// cannot collide, and the result carries both names.
//
// Every step advances the fair price, lets the arbitrageur trade each pool
// back toward it, then routes the step's retail orders across the field.
// Arbitrage losses enter a pool's edge negatively; retail flow filled at
// off-fair prices enters positively.
func (e *Engine) Run(participants []domain.Strategy) (*domain.SimResult, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("sim: run: no participants")
	}

	price := market.NewGBM(market.GBMConfig{
		InitialPrice: e.cfg.InitialPrice,
		Mu:           e.cfg.GBMMu,
		Sigma:        e.cfg.GBMSigma,
		Dt:           e.cfg.GBMDt,
		Seed:         e.cfg.Seed,
	})
	retail := market.NewRetailTrader(market.RetailConfig{
		ArrivalRate: e.cfg.RetailArrivalRate,
		MeanSize:    e.cfg.RetailMeanSize,
		SizeSigma:   e.cfg.RetailSizeSigma,
		BuyProb:     e.cfg.RetailBuyProb,
		Seed:        e.cfg.Seed + 1,
	})
	arb := market.NewArbitrageur()
	router := market.NewOrderRouter()

	initialX := decimal.NewFromFloat(e.cfg.InitialX)
	initialY := decimal.NewFromFloat(e.cfg.InitialY)

	pools := make([]domain.Pool, len(participants))
	names := make([]string, len(participants))
	index := make(map[string]int, len(participants))
	for i, s := range participants {
		pool := amm.New(amm.Config{
			Strategy:          s,
			InitialX:          initialX,
			InitialY:          initialY,
			Name:              fmt.Sprintf("p%d", i),
			FeeUpdateInterval: e.cfg.FeeUpdateInterval,
		})
		if err := pool.Initialize(); err != nil {
			return nil, fmt.Errorf("sim: run: %w", err)
		}
		pools[i] = pool
		names[i] = s.Name()
		index[pool.Name()] = i
	}

	initialFair := price.CurrentPrice()
	initialValue := make([]decimal.Decimal, len(pools))
	for i, p := range pools {
		x, y := p.Reserves()
		initialValue[i] = x.Mul(initialFair).Add(y)
	}

	n := len(pools)
	edges := make([]decimal.Decimal, n)
	arbVolume := make([]decimal.Decimal, n)
	retailVolume := make([]decimal.Decimal, n)
	cumBidFee := make([]float64, n)
	cumAskFee := make([]float64, n)

	fp := NewFingerprinter()
	fp.WriteHeader(e.cfg.Seed, e.cfg.NSteps, poolNames(pools))

	var snapshots []domain.StepSnapshot

	e.logger.Debug("simulation started",
		slog.Int64("seed", e.cfg.Seed),
		slog.Int("steps", e.cfg.NSteps),
		slog.Int("pools", n))

	for t := 0; t < e.cfg.NSteps; t++ {
		fair := price.Step()
		ts := int64(t)
		fp.WritePrice(t, fair)

		for i, pool := range pools {
			res, err := arb.Execute(pool, fair, ts)
			if err != nil {
				return nil, fmt.Errorf("sim: step %d: %w", t, err)
			}
			if res == nil {
				continue
			}
			arbVolume[i] = arbVolume[i].Add(res.AmountY)
			edges[i] = edges[i].Sub(res.Profit)
			x, y := pool.Reserves()
			fp.WriteTrade(t, res.PoolName, res.Side, res.AmountX, res.AmountY, x, y)
		}

		orders := retail.GenerateOrders()
		if len(orders) > 0 {
			trades, err := router.RouteOrders(orders, pools, fair, ts)
			if err != nil {
				return nil, fmt.Errorf("sim: step %d: %w", t, err)
			}
			for _, rt := range trades {
				i := index[rt.Trade.Pool]
				retailVolume[i] = retailVolume[i].Add(rt.Trade.AmountY)
				if rt.Trade.Side == domain.SideBuy {
					edges[i] = edges[i].Add(rt.Trade.AmountX.Mul(fair).Sub(rt.Trade.AmountY))
				} else {
					edges[i] = edges[i].Add(rt.Trade.AmountY.Sub(rt.Trade.AmountX.Mul(fair)))
				}
				fp.WriteTrade(t, rt.Trade.Pool, rt.Trade.Side,
					rt.Trade.AmountX, rt.Trade.AmountY, rt.Trade.ReserveX, rt.Trade.ReserveY)
			}
		}

		for i, pool := range pools {
			fees := pool.CurrentFees()
			cumBidFee[i] += fees.BidFee.InexactFloat64()
			cumAskFee[i] += fees.AskFee.InexactFloat64()
		}

		if e.cfg.StepSampleRate > 0 && t%e.cfg.StepSampleRate == 0 {
			snapshots = append(snapshots, snapshot(t, fair, pools, initialValue))
		}
	}

	finalFair := price.CurrentPrice()
	steps := float64(e.cfg.NSteps)

	results := make([]domain.PoolResult, n)
	for i, pool := range pools {
		x, y := pool.Reserves()
		feesX, feesY := pool.AccumulatedFees()
		value := x.Mul(finalFair).Add(y).Add(feesX.Mul(finalFair)).Add(feesY)
		results[i] = domain.PoolResult{
			Pool:          pool.Name(),
			Strategy:      names[i],
			Edge:          edges[i],
			PnL:           value.Sub(initialValue[i]),
			ArbVolumeY:    arbVolume[i],
			RetailVolumeY: retailVolume[i],
			AvgBidFee:     decimal.NewFromFloat(cumBidFee[i] / steps),
			AvgAskFee:     decimal.NewFromFloat(cumAskFee[i] / steps),
			FinalReserveX: x,
			FinalReserveY: y,
			AccruedFeesX:  feesX,
			AccruedFeesY:  feesY,
			TradeCount:    int(pool.TradeCount()),
		}
	}

	result := &domain.SimResult{
		Seed:        e.cfg.Seed,
		Steps:       e.cfg.NSteps,
		FinalPrice:  finalFair,
		Pools:       results,
		Snapshots:   snapshots,
		Fingerprint: fp.Hex(),
	}

	e.logger.Debug("simulation finished",
		slog.Int64("seed", e.cfg.Seed),
		slog.String("final_price", finalFair.String()),
		slog.String("fingerprint", result.Fingerprint[:12]))

	return result, nil
}

// snapshot captures every pool's observable state after a step, with PnL
// marked to the step's fair price.
func snapshot(step int, fair decimal.Decimal, pools []domain.Pool, initialValue []decimal.Decimal) domain.StepSnapshot {
	snaps := make([]domain.PoolSnapshot, len(pools))
	for i, pool := range pools {
		x, y := pool.Reserves()
		feesX, feesY := pool.AccumulatedFees()
		value := x.Mul(fair).Add(y).Add(feesX.Mul(fair)).Add(feesY)
		fees := pool.CurrentFees()
		snaps[i] = domain.PoolSnapshot{
			Pool:      pool.Name(),
			SpotPrice: pool.SpotPrice(),
			BidFee:    fees.BidFee,
			AskFee:    fees.AskFee,
			PnL:       value.Sub(initialValue[i]),
		}
	}
	return domain.StepSnapshot{Step: step, FairPrice: fair, Pools: snaps}
}

func poolNames(pools []domain.Pool) []string {
	names := make([]string, len(pools))
	for i, p := range pools {
		names[i] = p.Name()
	}
	return names
}

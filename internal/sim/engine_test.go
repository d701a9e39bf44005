package sim

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/strategy"
)

func testConfig(seed int64, steps int) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	cfg.NSteps = steps
	return cfg
}

func fixedStrategy(t *testing.T, bps float64) domain.Strategy {
	t.Helper()
	s, err := strategy.NewFixed(map[string]float64{"fee_bps": bps})
	require.NoError(t, err)
	return s
}

func runOnce(t *testing.T, cfg Config, participants ...domain.Strategy) *domain.SimResult {
	t.Helper()
	engine, err := New(cfg, nil)
	require.NoError(t, err)
	res, err := engine.Run(participants)
	require.NoError(t, err)
	return res
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "n_steps")

	require.NoError(t, DefaultConfig().Validate())
}

func TestEngineRunDeterministic(t *testing.T) {
	cfg := testConfig(42, 300)

	first := runOnce(t, cfg, fixedStrategy(t, 30), fixedStrategy(t, 60))
	second := runOnce(t, cfg, fixedStrategy(t, 30), fixedStrategy(t, 60))

	require.Equal(t, first.Fingerprint, second.Fingerprint)
	require.True(t, first.FinalPrice.Equal(second.FinalPrice))
	require.Len(t, first.Pools, 2)
	for i := range first.Pools {
		require.True(t, first.Pools[i].Edge.Equal(second.Pools[i].Edge))
		require.True(t, first.Pools[i].PnL.Equal(second.Pools[i].PnL))
		require.True(t, first.Pools[i].ArbVolumeY.Equal(second.Pools[i].ArbVolumeY))
		require.True(t, first.Pools[i].RetailVolumeY.Equal(second.Pools[i].RetailVolumeY))
		require.Equal(t, first.Pools[i].TradeCount, second.Pools[i].TradeCount)
	}

	require.Equal(t, "p0", first.Pools[0].Pool)
	require.Equal(t, "p1", first.Pools[1].Pool)
	require.Equal(t, "fixed30", first.Pools[0].Strategy)
	require.Equal(t, "fixed60", first.Pools[1].Strategy)
}

func TestEngineSeedChangesRun(t *testing.T) {
	a := runOnce(t, testConfig(1, 300), fixedStrategy(t, 30), fixedStrategy(t, 30))
	b := runOnce(t, testConfig(2, 300), fixedStrategy(t, 30), fixedStrategy(t, 30))

	require.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestEnginePnLMatchesFinalState(t *testing.T) {
	res := runOnce(t, testConfig(9, 400), fixedStrategy(t, 30), fixedStrategy(t, 60))

	initialValue := decimal.NewFromFloat(100).Mul(decimal.NewFromFloat(100)).
		Add(decimal.NewFromFloat(10000))
	for _, p := range res.Pools {
		reserves := p.FinalReserveX.Mul(res.FinalPrice).Add(p.FinalReserveY)
		fees := p.AccruedFeesX.Mul(res.FinalPrice).Add(p.AccruedFeesY)
		require.True(t, p.PnL.Equal(reserves.Add(fees).Sub(initialValue)),
			"pool %s: pnl %s vs recomputed %s", p.Pool, p.PnL, reserves.Add(fees).Sub(initialValue))
	}
}

func TestEngineArbPinsSpotWithoutFees(t *testing.T) {
	cfg := testConfig(7, 500)
	cfg.RetailArrivalRate = 0

	res := runOnce(t, cfg, fixedStrategy(t, 0), fixedStrategy(t, 0))

	final := res.FinalPrice.InexactFloat64()
	for _, p := range res.Pools {
		spot := p.FinalReserveY.Div(p.FinalReserveX).InexactFloat64()
		require.InEpsilon(t, final, spot, 1e-9, "pool %s", p.Pool)
		require.True(t, p.RetailVolumeY.IsZero())
		require.True(t, p.ArbVolumeY.Sign() > 0)
	}
}

func TestEngineFlowReachesBothPools(t *testing.T) {
	res := runOnce(t, testConfig(21, 2000), fixedStrategy(t, 30), fixedStrategy(t, 30))

	for _, p := range res.Pools {
		require.True(t, p.RetailVolumeY.Sign() > 0, "pool %s saw no retail", p.Pool)
		require.True(t, p.ArbVolumeY.Sign() > 0, "pool %s saw no arbitrage", p.Pool)
		require.Positive(t, p.TradeCount)
		require.InEpsilon(t, 0.003, p.AvgBidFee.InexactFloat64(), 1e-9)
		require.InEpsilon(t, 0.003, p.AvgAskFee.InexactFloat64(), 1e-9)
	}
}

func TestEngineIdenticalStrategiesStaySymmetric(t *testing.T) {
	res := runOnce(t, testConfig(11, 500), fixedStrategy(t, 30), fixedStrategy(t, 30))

	a, b := res.Pools[0], res.Pools[1]
	require.True(t, a.Edge.Equal(b.Edge), "edges %s vs %s", a.Edge, b.Edge)
	require.True(t, a.PnL.Equal(b.PnL))
	require.True(t, a.ArbVolumeY.Equal(b.ArbVolumeY))
	require.True(t, a.RetailVolumeY.Equal(b.RetailVolumeY))
	require.Equal(t, a.TradeCount, b.TradeCount)
}

func TestEngineSamplesSnapshots(t *testing.T) {
	cfg := testConfig(3, 100)
	cfg.StepSampleRate = 25
	cfg.RetailArrivalRate = 0

	res := runOnce(t, cfg, fixedStrategy(t, 30), fixedStrategy(t, 30))

	require.Len(t, res.Snapshots, 4)
	for i, snap := range res.Snapshots {
		require.Equal(t, i*25, snap.Step)
		require.True(t, snap.FairPrice.Sign() > 0)
		require.Len(t, snap.Pools, 2)
		require.Equal(t, "p0", snap.Pools[0].Pool)
		require.True(t, snap.Pools[0].BidFee.Equal(d("0.003")))
	}

	cfg.StepSampleRate = 0
	res = runOnce(t, cfg, fixedStrategy(t, 30), fixedStrategy(t, 30))
	require.Empty(t, res.Snapshots)
}

func TestEngineFeeBatchingChangesQuoteCadence(t *testing.T) {
	mk := func() domain.Strategy {
		s, err := strategy.NewMomentum(map[string]float64{"window": 4, "sensitivity": 2})
		require.NoError(t, err)
		return s
	}

	cfg := testConfig(5, 300)
	everyTrade := runOnce(t, cfg, mk(), mk())

	cfg.FeeUpdateInterval = 5
	batched := runOnce(t, cfg, mk(), mk())
	batchedAgain := runOnce(t, cfg, mk(), mk())

	require.NotEqual(t, everyTrade.Fingerprint, batched.Fingerprint)
	require.Equal(t, batched.Fingerprint, batchedAgain.Fingerprint)
}

func TestEngineRejectsEmptyField(t *testing.T) {
	engine, err := New(testConfig(0, 10), nil)
	require.NoError(t, err)
	_, err = engine.Run(nil)
	require.Error(t, err)
}

var errQuote = errors.New("quote backend down")

type failingStrategy struct{}

func (failingStrategy) Name() string { return "failing" }

func (failingStrategy) AfterInitialize(_, _ decimal.Decimal) (*domain.FeeQuote, error) {
	fees, err := domain.SymmetricFeeQuote(decimal.Zero)
	if err != nil {
		return nil, err
	}
	return &fees, nil
}

func (failingStrategy) AfterSwap(domain.TradeInfo) (*domain.FeeQuote, error) {
	return nil, errQuote
}

func TestEngineSurfacesStrategyErrors(t *testing.T) {
	engine, err := New(testConfig(1, 200), nil)
	require.NoError(t, err)

	res, err := engine.Run([]domain.Strategy{failingStrategy{}, fixedStrategy(t, 30)})
	require.ErrorIs(t, err, errQuote)
	require.Nil(t, res)
}

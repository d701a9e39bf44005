package market

import (
	"math"
	"math/rand"

	"github.com/shopspring/decimal"
)

// GBMConfig parameterizes the fair price process.
type GBMConfig struct {
	InitialPrice float64
	Mu           float64 // per-step drift
	Sigma        float64 // per-step volatility
	Dt           float64 // step length, defaults to 1
	Seed         int64
}

// GBMPriceProcess evolves the fair price as geometric Brownian motion,
//
//	S(t+dt) = S(t) * exp((mu - sigma^2/2)*dt + sigma*sqrt(dt)*Z)
//
// State advances in float64; prices surface as decimals for settlement.
type GBMPriceProcess struct {
	cfg     GBMConfig
	current float64
	rng     *rand.Rand
}

// NewGBM creates a price process starting at the configured initial price.
func NewGBM(cfg GBMConfig) *GBMPriceProcess {
	if cfg.Dt <= 0 {
		cfg.Dt = 1
	}
	return &GBMPriceProcess{
		cfg:     cfg,
		current: cfg.InitialPrice,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
}

// CurrentPrice returns the price at the current step.
func (g *GBMPriceProcess) CurrentPrice() decimal.Decimal {
	return decimal.NewFromFloat(g.current)
}

// Step advances one time step and returns the new price.
func (g *GBMPriceProcess) Step() decimal.Decimal {
	z := g.rng.NormFloat64()
	drift := (g.cfg.Mu - 0.5*g.cfg.Sigma*g.cfg.Sigma) * g.cfg.Dt
	diffusion := g.cfg.Sigma * math.Sqrt(g.cfg.Dt) * z
	g.current *= math.Exp(drift + diffusion)
	return g.CurrentPrice()
}

// Reset rewinds to the initial price and reseeds the generator.
func (g *GBMPriceProcess) Reset(seed int64) {
	g.rng = rand.New(rand.NewSource(seed))
	g.current = g.cfg.InitialPrice
}

// GeneratePath returns n prices starting from the current price and
// advancing the process n-1 steps.
func (g *GBMPriceProcess) GeneratePath(n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	path := make([]decimal.Decimal, n)
	path[0] = g.CurrentPrice()
	for i := 1; i < n; i++ {
		path[i] = g.Step()
	}
	return path
}

package market

import (
	"math"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// RetailConfig sets the retail flow parameters.
type RetailConfig struct {
	ArrivalRate float64 // expected orders per step (Poisson lambda)
	MeanSize    float64 // mean order size in Y
	SizeSigma   float64 // lognormal sigma, log space
	BuyProb     float64 // probability an order buys X
	Seed        int64
}

// RetailTrader generates uninformed retail flow: order counts per step
// follow a Poisson process and sizes a lognormal with mean MeanSize. All
// draws come from its own seeded source so a run replays bit for bit.
type RetailTrader struct {
	arrivalRate float64
	meanSize    float64
	sizeSigma   float64
	buyProb     float64
	rng         *rand.Rand
}

// NewRetailTrader creates a retail flow generator.
func NewRetailTrader(cfg RetailConfig) *RetailTrader {
	return &RetailTrader{
		arrivalRate: cfg.ArrivalRate,
		meanSize:    cfg.MeanSize,
		sizeSigma:   cfg.SizeSigma,
		buyProb:     cfg.BuyProb,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Reset reseeds the generator.
func (t *RetailTrader) Reset(seed int64) {
	t.rng = rand.New(rand.NewSource(seed))
}

// GenerateOrders draws the retail orders for one step. The slice is empty
// whenever no traders arrive.
func (t *RetailTrader) GenerateOrders() []domain.RetailOrder {
	n := t.poisson(t.arrivalRate)
	if n == 0 {
		return nil
	}

	// Lognormal located so the size mean lands on meanSize. Floors keep a
	// zero or negative configuration from degenerating the draw.
	sigma := math.Max(t.sizeSigma, 0.01)
	mean := math.Max(t.meanSize, 0.01)
	mu := math.Log(mean) - 0.5*sigma*sigma

	orders := make([]domain.RetailOrder, 0, n)
	for i := 0; i < n; i++ {
		size := math.Exp(mu + sigma*t.rng.NormFloat64())
		side := domain.OrderSideSell
		if t.rng.Float64() < t.buyProb {
			side = domain.OrderSideBuy
		}
		orders = append(orders, domain.RetailOrder{Side: side, Size: decimal.NewFromFloat(size)})
	}
	return orders
}

// poisson draws an arrival count by Knuth inversion. Suited to the small
// per-step rates used here.
func (t *RetailTrader) poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	limit := math.Exp(-lambda)
	n := 0
	for p := t.rng.Float64(); p > limit; p *= t.rng.Float64() {
		n++
	}
	return n
}

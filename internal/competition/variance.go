package competition

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/alanyoungcy/ammarena/internal/sim"
)

// Variance bounds the hyperparameters that are redrawn for every simulation
// of a match, so no single market regime decides the outcome. Disabled
// dimensions keep the base config's value and consume no randomness.
type Variance struct {
	RetailMeanSizeMin  float64
	RetailMeanSizeMax  float64
	VaryRetailMeanSize bool

	RetailArrivalRateMin  float64
	RetailArrivalRateMax  float64
	VaryRetailArrivalRate bool

	GBMSigmaMin  float64
	GBMSigmaMax  float64
	VaryGBMSigma bool
}

// DefaultVariance returns the canonical scoring bounds: retail mean size in
// [19, 21], arrival rate in [0.6, 1.0] and volatility in
// [0.000882, 0.001008], all varied.
func DefaultVariance() Variance {
	return Variance{
		RetailMeanSizeMin:  19,
		RetailMeanSizeMax:  21,
		VaryRetailMeanSize: true,

		RetailArrivalRateMin:  0.6,
		RetailArrivalRateMax:  1.0,
		VaryRetailArrivalRate: true,

		GBMSigmaMin:  0.000882,
		GBMSigmaMax:  0.001008,
		VaryGBMSigma: true,
	}
}

// Validate checks the enabled bounds and returns a combined error describing
// every problem found.
func (v Variance) Validate() error {
	var errs []string

	if v.VaryRetailMeanSize && v.RetailMeanSizeMin > v.RetailMeanSizeMax {
		errs = append(errs, fmt.Sprintf("retail_mean_size min %g above max %g",
			v.RetailMeanSizeMin, v.RetailMeanSizeMax))
	}
	if v.VaryRetailArrivalRate && v.RetailArrivalRateMin > v.RetailArrivalRateMax {
		errs = append(errs, fmt.Sprintf("retail_arrival_rate min %g above max %g",
			v.RetailArrivalRateMin, v.RetailArrivalRateMax))
	}
	if v.VaryGBMSigma && v.GBMSigmaMin > v.GBMSigmaMax {
		errs = append(errs, fmt.Sprintf("gbm_sigma min %g above max %g",
			v.GBMSigmaMin, v.GBMSigmaMax))
	}

	if len(errs) > 0 {
		return fmt.Errorf("variance invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Apply draws the varied parameters into a copy of base. The draw order is
// fixed (mean size, arrival rate, sigma) so one seed pins the whole config.
func (v Variance) Apply(base sim.Config, rng *rand.Rand) sim.Config {
	if v.VaryRetailMeanSize {
		base.RetailMeanSize = uniform(rng, v.RetailMeanSizeMin, v.RetailMeanSizeMax)
	}
	if v.VaryRetailArrivalRate {
		base.RetailArrivalRate = uniform(rng, v.RetailArrivalRateMin, v.RetailArrivalRateMax)
	}
	if v.VaryGBMSigma {
		base.GBMSigma = uniform(rng, v.GBMSigmaMin, v.GBMSigmaMax)
	}
	return base
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

package sim

import (
	"fmt"
	"strings"
)

// Config holds every parameter of a single simulation run. Two runs with the
// same Config produce bit-identical results.
type Config struct {
	// NSteps is the number of market steps to simulate.
	NSteps int
	// InitialPrice seeds the fair price process.
	InitialPrice float64
	// InitialX and InitialY are the opening reserves of every pool.
	InitialX float64
	InitialY float64

	// GBM fair price parameters: per-step drift, volatility and time delta.
	GBMMu    float64
	GBMSigma float64
	GBMDt    float64

	// Retail flow parameters: Poisson arrival rate per step, lognormal size
	// mean and sigma (sizes in Y), and the probability a given order buys X.
	RetailArrivalRate float64
	RetailMeanSize    float64
	RetailSizeSigma   float64
	RetailBuyProb     float64

	// Seed drives the price process; the retail trader uses Seed+1.
	Seed int64

	// FeeUpdateInterval defers strategy fee callbacks to every Nth trade on
	// each pool. Zero refreshes fees on every trade.
	FeeUpdateInterval uint64

	// StepSampleRate records a StepSnapshot every Nth step. Zero disables
	// snapshots.
	StepSampleRate int
}

// DefaultConfig returns the canonical scoring configuration: 10000 steps on a
// 100/10000 pool around price 100, driftless fair price at the nominal
// volatility, and the nominal retail flow.
func DefaultConfig() Config {
	return Config{
		NSteps:            10000,
		InitialPrice:      100,
		InitialX:          100,
		InitialY:          10000,
		GBMMu:             0,
		GBMSigma:          0.000945,
		GBMDt:             1,
		RetailArrivalRate: 0.8,
		RetailMeanSize:    20,
		RetailSizeSigma:   1.2,
		RetailBuyProb:     0.5,
	}
}

// Validate checks Config for invalid values and returns a combined error
// describing every problem found.
func (c Config) Validate() error {
	var errs []string

	if c.NSteps <= 0 {
		errs = append(errs, fmt.Sprintf("n_steps must be > 0, got %d", c.NSteps))
	}
	if c.InitialPrice <= 0 {
		errs = append(errs, fmt.Sprintf("initial_price must be > 0, got %g", c.InitialPrice))
	}
	if c.InitialX <= 0 {
		errs = append(errs, fmt.Sprintf("initial_x must be > 0, got %g", c.InitialX))
	}
	if c.InitialY <= 0 {
		errs = append(errs, fmt.Sprintf("initial_y must be > 0, got %g", c.InitialY))
	}
	if c.GBMSigma < 0 {
		errs = append(errs, fmt.Sprintf("gbm_sigma must be >= 0, got %g", c.GBMSigma))
	}
	if c.GBMDt <= 0 {
		errs = append(errs, fmt.Sprintf("gbm_dt must be > 0, got %g", c.GBMDt))
	}
	if c.RetailArrivalRate < 0 {
		errs = append(errs, fmt.Sprintf("retail_arrival_rate must be >= 0, got %g", c.RetailArrivalRate))
	}
	if c.RetailMeanSize <= 0 {
		errs = append(errs, fmt.Sprintf("retail_mean_size must be > 0, got %g", c.RetailMeanSize))
	}
	if c.RetailSizeSigma < 0 {
		errs = append(errs, fmt.Sprintf("retail_size_sigma must be >= 0, got %g", c.RetailSizeSigma))
	}
	if c.RetailBuyProb < 0 || c.RetailBuyProb > 1 {
		errs = append(errs, fmt.Sprintf("retail_buy_prob must be in [0, 1], got %g", c.RetailBuyProb))
	}
	if c.StepSampleRate < 0 {
		errs = append(errs, fmt.Sprintf("step_sample_rate must be >= 0, got %d", c.StepSampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("sim config invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package domain

import "github.com/shopspring/decimal"

// PoolSnapshot is one pool's observable state at the end of a simulation
// step. PnL is marked to the step's fair price against the pool's starting
// value.
type PoolSnapshot struct {
	Pool      string
	SpotPrice decimal.Decimal
	BidFee    decimal.Decimal
	AskFee    decimal.Decimal
	PnL       decimal.Decimal
}

// StepSnapshot captures the market after one simulation step.
type StepSnapshot struct {
	Step      int
	FairPrice decimal.Decimal
	Pools     []PoolSnapshot
}

// PoolResult is the per-pool outcome of a completed simulation run. Edge is
// the cumulative value extracted from counterparties: arbitrage losses enter
// negatively, retail flow captured at off-fair prices enters positively.
type PoolResult struct {
	Pool          string
	Strategy      string
	Edge          decimal.Decimal
	PnL           decimal.Decimal
	ArbVolumeY    decimal.Decimal
	RetailVolumeY decimal.Decimal
	AvgBidFee     decimal.Decimal
	AvgAskFee     decimal.Decimal
	FinalReserveX decimal.Decimal
	FinalReserveY decimal.Decimal
	AccruedFeesX  decimal.Decimal
	AccruedFeesY  decimal.Decimal
	TradeCount    int
}

// SimResult is one full simulation run. Fingerprint is a SHA3-256 digest of
// the canonical result encoding; identical seeds and configs must produce
// identical fingerprints on any platform.
type SimResult struct {
	Seed        int64
	Steps       int
	FinalPrice  decimal.Decimal
	Pools       []PoolResult
	Snapshots   []StepSnapshot
	Fingerprint string
}

// PoolByName returns the result for the named pool, or nil if absent.
func (r *SimResult) PoolByName(name string) *PoolResult {
	for i := range r.Pools {
		if r.Pools[i].Pool == name {
			return &r.Pools[i]
		}
	}
	return nil
}

package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// CLI output shapes for sim and match mode. The domain types carry no JSON
// tags, so stdout gets the same snake_case keys the HTTP API speaks.

type poolOutput struct {
	Pool          string          `json:"pool"`
	Strategy      string          `json:"strategy"`
	Edge          decimal.Decimal `json:"edge"`
	PnL           decimal.Decimal `json:"pnl"`
	ArbVolumeY    decimal.Decimal `json:"arb_volume_y"`
	RetailVolumeY decimal.Decimal `json:"retail_volume_y"`
	AvgBidFee     decimal.Decimal `json:"avg_bid_fee"`
	AvgAskFee     decimal.Decimal `json:"avg_ask_fee"`
	FinalReserveX decimal.Decimal `json:"final_reserve_x"`
	FinalReserveY decimal.Decimal `json:"final_reserve_y"`
	AccruedFeesX  decimal.Decimal `json:"accrued_fees_x"`
	AccruedFeesY  decimal.Decimal `json:"accrued_fees_y"`
	TradeCount    int             `json:"trade_count"`
}

type poolSnapshotOutput struct {
	Pool      string          `json:"pool"`
	SpotPrice decimal.Decimal `json:"spot_price"`
	BidFee    decimal.Decimal `json:"bid_fee"`
	AskFee    decimal.Decimal `json:"ask_fee"`
	PnL       decimal.Decimal `json:"pnl"`
}

type snapshotOutput struct {
	Step      int                  `json:"step"`
	FairPrice decimal.Decimal      `json:"fair_price"`
	Pools     []poolSnapshotOutput `json:"pools"`
}

type simOutput struct {
	Seed        int64            `json:"seed"`
	Steps       int              `json:"steps"`
	FinalPrice  decimal.Decimal  `json:"final_price"`
	Fingerprint string           `json:"fingerprint"`
	Pools       []poolOutput     `json:"pools"`
	Snapshots   []snapshotOutput `json:"snapshots,omitempty"`
}

func newSimOutput(r *domain.SimResult) simOutput {
	out := simOutput{
		Seed:        r.Seed,
		Steps:       r.Steps,
		FinalPrice:  r.FinalPrice,
		Fingerprint: r.Fingerprint,
		Pools:       make([]poolOutput, len(r.Pools)),
	}
	for i, p := range r.Pools {
		out.Pools[i] = poolOutput{
			Pool:          p.Pool,
			Strategy:      p.Strategy,
			Edge:          p.Edge,
			PnL:           p.PnL,
			ArbVolumeY:    p.ArbVolumeY,
			RetailVolumeY: p.RetailVolumeY,
			AvgBidFee:     p.AvgBidFee,
			AvgAskFee:     p.AvgAskFee,
			FinalReserveX: p.FinalReserveX,
			FinalReserveY: p.FinalReserveY,
			AccruedFeesX:  p.AccruedFeesX,
			AccruedFeesY:  p.AccruedFeesY,
			TradeCount:    p.TradeCount,
		}
	}
	if len(r.Snapshots) > 0 {
		out.Snapshots = make([]snapshotOutput, len(r.Snapshots))
		for i, s := range r.Snapshots {
			snap := snapshotOutput{
				Step:      s.Step,
				FairPrice: s.FairPrice,
				Pools:     make([]poolSnapshotOutput, len(s.Pools)),
			}
			for j, p := range s.Pools {
				snap.Pools[j] = poolSnapshotOutput{
					Pool:      p.Pool,
					SpotPrice: p.SpotPrice,
					BidFee:    p.BidFee,
					AskFee:    p.AskFee,
					PnL:       p.PnL,
				}
			}
			out.Snapshots[i] = snap
		}
	}
	return out
}

type standingOutput struct {
	Placement int             `json:"placement"`
	Strategy  string          `json:"strategy"`
	Points    int             `json:"points"`
	Wins      int             `json:"wins"`
	Draws     int             `json:"draws"`
	TotalEdge decimal.Decimal `json:"total_edge"`
	AvgEdge   decimal.Decimal `json:"avg_edge"`
}

type matchOutput struct {
	MatchID      uuid.UUID        `json:"match_id"`
	NSimulations int              `json:"n_simulations"`
	BaseSeed     int64            `json:"base_seed"`
	Winner       string           `json:"winner,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	Standings    []standingOutput `json:"standings"`
}

func newMatchOutput(m *domain.MatchResult) matchOutput {
	out := matchOutput{
		MatchID:      m.ID,
		NSimulations: m.Sims,
		BaseSeed:     m.BaseSeed,
		Winner:       m.Winner(),
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
		Standings:    make([]standingOutput, len(m.Participants)),
	}
	for i, p := range m.Participants {
		out.Standings[i] = standingOutput{
			Placement: p.Placement,
			Strategy:  p.Strategy,
			Points:    p.Points,
			Wins:      p.Wins,
			Draws:     p.Draws,
			TotalEdge: p.TotalEdge,
			AvgEdge:   p.AvgEdge,
		}
	}
	return out
}

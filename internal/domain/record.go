package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StrategyRecord is a registered competitor. Kind names the factory that
// builds it and Params feed that factory, so a stored strategy can be
// reconstructed for any future match.
type StrategyRecord struct {
	ID          uuid.UUID
	Name        string
	Author      string
	Kind        string
	Params      map[string]float64
	Description string
	CreatedAt   time.Time
}

// MatchRecord is a persisted match header. Matches are written only once
// finished; outcomes live in the participant rows.
type MatchRecord struct {
	ID            uuid.UUID
	NParticipants int
	NSimulations  int
	BaseSeed      int64
	CreatedAt     time.Time
}

// ParticipantRecord joins a strategy to a match with its aggregate outcome.
type ParticipantRecord struct {
	MatchID    uuid.UUID
	StrategyID uuid.UUID
	Strategy   string
	Placement  int
	Wins       int
	Points     int
	AvgEdge    decimal.Decimal
	TotalEdge  decimal.Decimal
}

// SimRecord is one participant's outcome in a single simulation of a match.
type SimRecord struct {
	ID          uuid.UUID
	MatchID     uuid.UUID
	SimIndex    int
	Seed        int64
	Strategy    string
	Edge        decimal.Decimal
	PnL         decimal.Decimal
	Placement   int
	Fingerprint string
	CreatedAt   time.Time
}

// LeaderboardEntry is one row of the standings, aggregated across all
// completed matches.
type LeaderboardEntry struct {
	Strategy     string
	Matches      int
	Wins         int
	Draws        int
	WinRate      float64
	AvgEdge      decimal.Decimal
	Points       int
	AvgPlacement float64
}

// LeaderboardSort selects the standings ordering.
type LeaderboardSort string

const (
	SortByWinRate   LeaderboardSort = "win_rate"
	SortByMatches   LeaderboardSort = "matches"
	SortByAvgEdge   LeaderboardSort = "avg_edge"
	SortByPoints    LeaderboardSort = "points"
	SortByPlacement LeaderboardSort = "avg_placement"
)

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinParticipants and MaxParticipants bound the field size of a match.
const (
	MinParticipants = 2
	MaxParticipants = 10
)

// ParticipantResult is one strategy's aggregate outcome across a match's
// simulations. Placement is 1-based; Points follow podium scoring (3 for
// first, 2 for second, 1 for third, 0 below).
type ParticipantResult struct {
	Strategy  string
	Wins      int
	Draws     int
	TotalEdge decimal.Decimal
	AvgEdge   decimal.Decimal
	Placement int
	Points    int
}

// MatchResult is a completed match: the same field of strategies run across
// Sims paired simulations, each participant facing identical market
// conditions. Participants are ordered by placement.
type MatchResult struct {
	ID           uuid.UUID
	Participants []ParticipantResult
	Sims         int
	BaseSeed     int64
	StartedAt    time.Time
	FinishedAt   time.Time

	// SimResults holds every simulation's full result ordered by index,
	// populated only when the runner is asked to keep them.
	SimResults []SimResult
}

// Winner returns the strategy placed first, or "" when the match is drawn. A
// two-strategy match is drawn when per-simulation wins are level.
func (m MatchResult) Winner() string {
	if len(m.Participants) == 0 {
		return ""
	}
	first := m.Participants[0]
	if len(m.Participants) == 2 && first.Wins == m.Participants[1].Wins {
		return ""
	}
	return first.Strategy
}

// MatchEventType tags messages on the live match bus.
type MatchEventType string

const (
	MatchEventStarted   MatchEventType = "match.started"
	MatchEventSimDone   MatchEventType = "match.sim_done"
	MatchEventCompleted MatchEventType = "match.completed"
)

// MatchEvent is a progress notification published while a match runs.
type MatchEvent struct {
	Type     MatchEventType
	MatchID  uuid.UUID
	SimIndex int
	Winner   string
	At       time.Time
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// StrategyStore persists registered strategies.
type StrategyStore interface {
	Insert(ctx context.Context, s StrategyRecord) (StrategyRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (StrategyRecord, error)
	GetByName(ctx context.Context, name string) (StrategyRecord, error)
	List(ctx context.Context, search string, opts ListOpts) ([]StrategyRecord, error)
	Count(ctx context.Context) (int64, error)
}

// MatchStore persists finished matches with their participant standings.
type MatchStore interface {
	InsertMatch(ctx context.Context, m MatchRecord, parts []ParticipantRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (MatchRecord, error)
	List(ctx context.Context, opts ListOpts) ([]MatchRecord, error)
	ListByStrategy(ctx context.Context, strategyID uuid.UUID, opts ListOpts) ([]MatchRecord, error)
	ListParticipants(ctx context.Context, matchID uuid.UUID) ([]ParticipantRecord, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]MatchRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
	Leaderboard(ctx context.Context, sort LeaderboardSort, limit int) ([]LeaderboardEntry, error)
}

// SimResultStore persists per-simulation outcomes. Match deletion cleans up
// result rows through the schema's cascade rule.
type SimResultStore interface {
	InsertBatch(ctx context.Context, results []SimRecord) error
	ListByMatch(ctx context.Context, matchID uuid.UUID, opts ListOpts) ([]SimRecord, error)
}

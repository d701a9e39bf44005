package domain

import (
	"context"
	"time"
)

// LeaderboardCache keeps the standings in a sorted set for cheap reads.
type LeaderboardCache interface {
	Rebuild(ctx context.Context, entries []LeaderboardEntry) error
	Top(ctx context.Context, n int) ([]LeaderboardEntry, error)
	Invalidate(ctx context.Context) error
}

// MatchEventEntry is a match event read back from the durable stream.
type MatchEventEntry struct {
	ID    string
	Event MatchEvent
}

// MatchBus fans out live match progress and keeps a bounded replay stream.
type MatchBus interface {
	Publish(ctx context.Context, event MatchEvent) error
	Subscribe(ctx context.Context) (<-chan MatchEvent, error)
	History(ctx context.Context, lastID string, count int) ([]MatchEventEntry, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

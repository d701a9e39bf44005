package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// leaderboardTTL bounds staleness when invalidation is missed; the serve
// layer rebuilds the cache after every stored match anyway.
const leaderboardTTL = 5 * time.Minute

// LeaderboardCache implements domain.LeaderboardCache.
//
// Key schema:
//
//	leaderboard:rank - sorted set, member = strategy name, score = position
//	leaderboard:data - hash, field = strategy name, value = JSON entry
//
// The score is the entry's position in the canonical ordering, not a metric:
// tie-breaks are decided by the aggregation that built the entries, and the
// cache must preserve them exactly.
type LeaderboardCache struct {
	rdb *redis.Client
}

// NewLeaderboardCache creates a LeaderboardCache backed by the given Client.
func NewLeaderboardCache(c *Client) *LeaderboardCache {
	return &LeaderboardCache{rdb: c.Underlying()}
}

const (
	leaderboardRankKey = "leaderboard:rank"
	leaderboardDataKey = "leaderboard:data"
)

// Rebuild replaces the cached standings with the given entries, preserving
// their order.
func (lc *LeaderboardCache) Rebuild(ctx context.Context, entries []domain.LeaderboardEntry) error {
	pipe := lc.rdb.TxPipeline()
	pipe.Del(ctx, leaderboardRankKey, leaderboardDataKey)

	for i, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("redis: marshal leaderboard entry %s: %w", e.Strategy, err)
		}
		pipe.ZAdd(ctx, leaderboardRankKey, redis.Z{Score: float64(i), Member: e.Strategy})
		pipe.HSet(ctx, leaderboardDataKey, e.Strategy, data)
	}

	pipe.Expire(ctx, leaderboardRankKey, leaderboardTTL)
	pipe.Expire(ctx, leaderboardDataKey, leaderboardTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: rebuild leaderboard: %w", err)
	}
	return nil
}

// Top returns the first n cached entries in order. It returns
// domain.ErrNotFound when the cache is empty or expired, so callers know to
// fall back to the store.
func (lc *LeaderboardCache) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	names, err := lc.rdb.ZRange(ctx, leaderboardRankKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: leaderboard top: %w", err)
	}
	if len(names) == 0 {
		return nil, domain.ErrNotFound
	}

	raw, err := lc.rdb.HMGet(ctx, leaderboardDataKey, names...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: leaderboard entries: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(names))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			// Rank and data fell out of sync, likely a partial expiry.
			return nil, domain.ErrNotFound
		}
		var e domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("redis: unmarshal leaderboard entry %s: %w", names[i], err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Invalidate drops the cached standings.
func (lc *LeaderboardCache) Invalidate(ctx context.Context) error {
	if err := lc.rdb.Del(ctx, leaderboardRankKey, leaderboardDataKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate leaderboard: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LeaderboardCache = (*LeaderboardCache)(nil)

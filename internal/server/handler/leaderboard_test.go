package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLeaderboardSource struct {
	entries  []domain.LeaderboardEntry
	err      error
	calls    int
	gotSort  domain.LeaderboardSort
	gotLimit int
}

func (f *fakeLeaderboardSource) Leaderboard(_ context.Context, sort domain.LeaderboardSort, limit int) ([]domain.LeaderboardEntry, error) {
	f.calls++
	f.gotSort = sort
	f.gotLimit = limit
	return f.entries, f.err
}

type fakeLeaderboardCache struct {
	entries    []domain.LeaderboardEntry
	topErr     error
	rebuildErr error
	rebuilt    []domain.LeaderboardEntry
	topCalls   int
	rebuilds   int
	gotTopN    int
}

func (f *fakeLeaderboardCache) Rebuild(_ context.Context, entries []domain.LeaderboardEntry) error {
	f.rebuilds++
	f.rebuilt = entries
	return f.rebuildErr
}

func (f *fakeLeaderboardCache) Top(_ context.Context, n int) ([]domain.LeaderboardEntry, error) {
	f.topCalls++
	f.gotTopN = n
	if f.topErr != nil {
		return nil, f.topErr
	}
	if n < len(f.entries) {
		return f.entries[:n], nil
	}
	return f.entries, nil
}

func (f *fakeLeaderboardCache) Invalidate(context.Context) error { return nil }

func standings(names ...string) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, len(names))
	for i, name := range names {
		entries[i] = domain.LeaderboardEntry{
			Strategy:     name,
			Matches:      10,
			Wins:         8 - i,
			WinRate:      float64(8-i) / 10,
			AvgEdge:      decimal.RequireFromString("1.5"),
			Points:       (8 - i) * 3,
			AvgPlacement: 1.5,
		}
	}
	return entries
}

func TestGetLeaderboardServedFromCache(t *testing.T) {
	source := &fakeLeaderboardSource{entries: standings("a", "b", "c")}
	cache := &fakeLeaderboardCache{entries: standings("a", "b", "c")}
	h := NewLeaderboardHandler(source, cache, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=2", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, source.calls, "cache hit should not touch the store")
	require.Equal(t, 2, cache.gotTopN)

	var resp listLeaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "win_rate", resp.Sort)
	require.Len(t, resp.Leaderboard, 2)
	require.Equal(t, "a", resp.Leaderboard[0].Strategy)
}

func TestGetLeaderboardCacheMissRebuilds(t *testing.T) {
	source := &fakeLeaderboardSource{entries: standings("a", "b", "c")}
	cache := &fakeLeaderboardCache{topErr: domain.ErrNotFound}
	h := NewLeaderboardHandler(source, cache, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=2", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, source.calls)
	require.Zero(t, source.gotLimit, "miss should fetch full standings for the rebuild")
	require.Equal(t, 1, cache.rebuilds)
	require.Len(t, cache.rebuilt, 3)

	var resp listLeaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Leaderboard, 2, "response is still truncated to the requested limit")
}

func TestGetLeaderboardNonDefaultSortSkipsCache(t *testing.T) {
	source := &fakeLeaderboardSource{entries: standings("a")}
	cache := &fakeLeaderboardCache{entries: standings("z")}
	h := NewLeaderboardHandler(source, cache, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?sort=points", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, cache.topCalls)
	require.Zero(t, cache.rebuilds)
	require.Equal(t, domain.SortByPoints, source.gotSort)
	require.Equal(t, defaultLeaderboardLimit, source.gotLimit)
}

func TestGetLeaderboardUnknownSort(t *testing.T) {
	h := NewLeaderboardHandler(&fakeLeaderboardSource{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?sort=karma", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLeaderboardCacheErrorFallsThrough(t *testing.T) {
	source := &fakeLeaderboardSource{entries: standings("a", "b")}
	cache := &fakeLeaderboardCache{topErr: errors.New("connection refused")}
	h := NewLeaderboardHandler(source, cache, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, source.calls)
}

func TestGetLeaderboardSourceError(t *testing.T) {
	source := &fakeLeaderboardSource{err: errors.New("boom")}
	h := NewLeaderboardHandler(source, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	h.GetLeaderboard(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "failed to load leaderboard")
}

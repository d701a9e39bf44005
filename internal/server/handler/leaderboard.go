package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// LeaderboardSource defines the store method the leaderboard handler
// requires. It is declared locally so the handler package does not depend on
// the concrete store implementation.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, sort domain.LeaderboardSort, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardHandler serves the aggregated standings.
type LeaderboardHandler struct {
	source LeaderboardSource
	cache  domain.LeaderboardCache // optional; nil disables caching
	logger *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler. cache may be nil.
func NewLeaderboardHandler(source LeaderboardSource, cache domain.LeaderboardCache, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

var leaderboardSorts = map[string]domain.LeaderboardSort{
	"win_rate":      domain.SortByWinRate,
	"matches":       domain.SortByMatches,
	"avg_edge":      domain.SortByAvgEdge,
	"points":        domain.SortByPoints,
	"avg_placement": domain.SortByPlacement,
}

// leaderboardEntryJSON is the wire shape of one standings row.
type leaderboardEntryJSON struct {
	Strategy     string          `json:"strategy"`
	Matches      int             `json:"matches"`
	Wins         int             `json:"wins"`
	Draws        int             `json:"draws"`
	WinRate      float64         `json:"win_rate"`
	AvgEdge      decimal.Decimal `json:"avg_edge"`
	Points       int             `json:"points"`
	AvgPlacement float64         `json:"avg_placement"`
}

func toLeaderboardJSON(entries []domain.LeaderboardEntry) []leaderboardEntryJSON {
	out := make([]leaderboardEntryJSON, len(entries))
	for i, e := range entries {
		out[i] = leaderboardEntryJSON{
			Strategy:     e.Strategy,
			Matches:      e.Matches,
			Wins:         e.Wins,
			Draws:        e.Draws,
			WinRate:      e.WinRate,
			AvgEdge:      e.AvgEdge,
			Points:       e.Points,
			AvgPlacement: e.AvgPlacement,
		}
	}
	return out
}

// listLeaderboardResponse wraps the leaderboard output.
type listLeaderboardResponse struct {
	Leaderboard []leaderboardEntryJSON `json:"leaderboard"`
	Sort        string                 `json:"sort"`
	Total       int                    `json:"total"`
}

// GetLeaderboard returns the standings, best first.
// GET /api/leaderboard?sort=win_rate&limit=20
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sortStr := q.Get("sort")
	if sortStr == "" {
		sortStr = "win_rate"
	}
	sort, ok := leaderboardSorts[sortStr]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown sort: "+sortStr)
		return
	}

	limit := defaultLeaderboardLimit
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	// The cache holds the full standings in the default ordering only.
	useCache := h.cache != nil && sort == domain.SortByWinRate

	if useCache {
		entries, err := h.cache.Top(r.Context(), limit)
		if err == nil {
			writeJSON(w, http.StatusOK, listLeaderboardResponse{
				Leaderboard: toLeaderboardJSON(entries),
				Sort:        sortStr,
				Total:       len(entries),
			})
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(r.Context(), "handler: leaderboard cache read failed",
				slog.String("error", err.Error()),
			)
		}
	}

	queryLimit := limit
	if useCache {
		// Fetch everything so the rebuilt cache can serve any limit.
		queryLimit = 0
	}

	entries, err := h.source.Leaderboard(r.Context(), sort, queryLimit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: leaderboard query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	if useCache && len(entries) > 0 {
		if err := h.cache.Rebuild(r.Context(), entries); err != nil {
			h.logger.WarnContext(r.Context(), "handler: leaderboard cache rebuild failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}

	writeJSON(w, http.StatusOK, listLeaderboardResponse{
		Leaderboard: toLeaderboardJSON(entries),
		Sort:        sortStr,
		Total:       len(entries),
	})
}

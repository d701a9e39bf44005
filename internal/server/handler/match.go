package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// MatchStarter starts a match and hands back its id before it finishes. It
// is declared locally so the handler package does not depend on the service
// package.
type MatchStarter interface {
	StartByNames(ctx context.Context, names []string) (uuid.UUID, error)
}

// MatchHandler serves stored match and simulation result endpoints, match
// runs, and the durable match event history.
type MatchHandler struct {
	matches domain.MatchStore
	sims    domain.SimResultStore
	bus     domain.MatchBus // optional; nil disables /api/events
	starter MatchStarter    // optional; nil disables POST /api/matches
	logger  *slog.Logger
}

// NewMatchHandler creates a MatchHandler. bus and starter may be nil.
func NewMatchHandler(matches domain.MatchStore, sims domain.SimResultStore, bus domain.MatchBus, starter MatchStarter, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{
		matches: matches,
		sims:    sims,
		bus:     bus,
		starter: starter,
		logger:  logger,
	}
}

// matchJSON is the wire shape of a match header.
type matchJSON struct {
	ID            uuid.UUID `json:"id"`
	NParticipants int       `json:"n_participants"`
	NSimulations  int       `json:"n_simulations"`
	BaseSeed      int64     `json:"base_seed"`
	CreatedAt     time.Time `json:"created_at"`
}

func toMatchJSON(m domain.MatchRecord) matchJSON {
	return matchJSON{
		ID:            m.ID,
		NParticipants: m.NParticipants,
		NSimulations:  m.NSimulations,
		BaseSeed:      m.BaseSeed,
		CreatedAt:     m.CreatedAt,
	}
}

// participantJSON is the wire shape of one match standing.
type participantJSON struct {
	StrategyID uuid.UUID       `json:"strategy_id"`
	Strategy   string          `json:"strategy"`
	Placement  int             `json:"placement"`
	Wins       int             `json:"wins"`
	Points     int             `json:"points"`
	AvgEdge    decimal.Decimal `json:"avg_edge"`
	TotalEdge  decimal.Decimal `json:"total_edge"`
}

// simResultJSON is the wire shape of one simulation outcome.
type simResultJSON struct {
	SimIndex    int             `json:"sim_index"`
	Seed        int64           `json:"seed"`
	Strategy    string          `json:"strategy"`
	Edge        decimal.Decimal `json:"edge"`
	PnL         decimal.Decimal `json:"pnl"`
	Placement   int             `json:"placement"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// listMatchesResponse wraps the list endpoint output with metadata.
type listMatchesResponse struct {
	Matches []matchJSON `json:"matches"`
	Total   int64       `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

// ListMatches returns stored matches, newest first. Passing strategy_id
// filters to matches that strategy took part in.
// GET /api/matches?limit=50&offset=0&strategy_id=&since=&until=
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		recs []domain.MatchRecord
		err  error
	)
	if v := r.URL.Query().Get("strategy_id"); v != "" {
		strategyID, parseErr := uuid.Parse(v)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid strategy_id")
			return
		}
		recs, err = h.matches.ListByStrategy(r.Context(), strategyID, opts)
	} else {
		recs, err = h.matches.List(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list matches failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list matches")
		return
	}

	total, err := h.matches.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count matches failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count matches")
		return
	}

	out := make([]matchJSON, len(recs))
	for i, m := range recs {
		out[i] = toMatchJSON(m)
	}

	writeJSON(w, http.StatusOK, listMatchesResponse{
		Matches: out,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// getMatchResponse is a match header with its standings.
type getMatchResponse struct {
	Match        matchJSON         `json:"match"`
	Participants []participantJSON `json:"participants"`
}

// GetMatch returns a single match with its participant standings.
// GET /api/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMatchID(w, r)
	if !ok {
		return
	}

	m, err := h.matches.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "match not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get match failed",
			slog.String("match_id", id.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get match")
		return
	}

	parts, err := h.matches.ListParticipants(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list participants failed",
			slog.String("match_id", id.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get match")
		return
	}

	resp := getMatchResponse{Match: toMatchJSON(m)}
	for _, p := range parts {
		resp.Participants = append(resp.Participants, participantJSON{
			StrategyID: p.StrategyID,
			Strategy:   p.Strategy,
			Placement:  p.Placement,
			Wins:       p.Wins,
			Points:     p.Points,
			AvgEdge:    p.AvgEdge,
			TotalEdge:  p.TotalEdge,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// listResultsResponse wraps per-simulation outcomes for one match.
type listResultsResponse struct {
	MatchID uuid.UUID       `json:"match_id"`
	Results []simResultJSON `json:"results"`
	Total   int             `json:"total"`
}

// ListResults returns a match's per-simulation results.
// GET /api/matches/{id}/results
func (h *MatchHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMatchID(w, r)
	if !ok {
		return
	}

	recs, err := h.sims.ListByMatch(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list sim results failed",
			slog.String("match_id", id.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list results")
		return
	}

	out := make([]simResultJSON, len(recs))
	for i, rec := range recs {
		out[i] = simResultJSON{
			SimIndex:    rec.SimIndex,
			Seed:        rec.Seed,
			Strategy:    rec.Strategy,
			Edge:        rec.Edge,
			PnL:         rec.PnL,
			Placement:   rec.Placement,
			Fingerprint: rec.Fingerprint,
			CreatedAt:   rec.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, listResultsResponse{
		MatchID: id,
		Results: out,
		Total:   len(out),
	})
}

// runMatchRequest is the POST body for starting a match.
type runMatchRequest struct {
	Strategies []string `json:"strategies"`
}

// RunMatch starts a match between the named strategies and returns its id.
// The match runs in the background; progress arrives on the event stream and
// the finished match becomes readable under /api/matches/{id}.
// POST /api/matches
func (h *MatchHandler) RunMatch(w http.ResponseWriter, r *http.Request) {
	if h.starter == nil {
		writeError(w, http.StatusServiceUnavailable, "match running unavailable")
		return
	}

	var req runMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Strategies) < domain.MinParticipants {
		writeError(w, http.StatusBadRequest, "at least two strategies required")
		return
	}

	id, err := h.starter.StartByNames(r.Context(), req.Strategies)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: start match failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start match")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"match_id": id})
}

// matchEventJSON is the wire shape of one bus event.
type matchEventJSON struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	MatchID  uuid.UUID `json:"match_id"`
	SimIndex int       `json:"sim_index"`
	Winner   string    `json:"winner,omitempty"`
	At       time.Time `json:"at"`
}

// ListEvents returns match events from the durable stream, oldest first.
// Pass the last seen id to page forward.
// GET /api/events?last_id=&limit=100
func (h *MatchHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	entries, err := h.bus.History(r.Context(), q.Get("last_id"), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	out := make([]matchEventJSON, len(entries))
	for i, e := range entries {
		out[i] = matchEventJSON{
			ID:       e.ID,
			Type:     string(e.Event.Type),
			MatchID:  e.Event.MatchID,
			SimIndex: e.Event.SimIndex,
			Winner:   e.Event.Winner,
			At:       e.Event.At,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": out,
		"total":  len(out),
	})
}

// parseMatchID pulls the {id} path parameter and writes the error response
// itself when the value is missing or not a UUID.
func parseMatchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := pathParam(r, "id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing match id")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return uuid.Nil, false
	}
	return id, true
}

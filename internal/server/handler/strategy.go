package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/strategy"
)

// StrategyHandler serves strategy registration and lookup endpoints.
type StrategyHandler struct {
	store    domain.StrategyStore
	registry *strategy.Registry
	logger   *slog.Logger
}

// NewStrategyHandler creates a StrategyHandler with the given store,
// registry, and logger.
func NewStrategyHandler(store domain.StrategyStore, registry *strategy.Registry, logger *slog.Logger) *StrategyHandler {
	return &StrategyHandler{
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// strategyJSON is the wire shape of a registered strategy.
type strategyJSON struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Author      string             `json:"author,omitempty"`
	Kind        string             `json:"kind"`
	Params      map[string]float64 `json:"params,omitempty"`
	Description string             `json:"description,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

func toStrategyJSON(rec domain.StrategyRecord) strategyJSON {
	return strategyJSON{
		ID:          rec.ID,
		Name:        rec.Name,
		Author:      rec.Author,
		Kind:        rec.Kind,
		Params:      rec.Params,
		Description: rec.Description,
		CreatedAt:   rec.CreatedAt,
	}
}

// listStrategiesResponse wraps the list endpoint output with metadata.
type listStrategiesResponse struct {
	Strategies []strategyJSON `json:"strategies"`
	Total      int64          `json:"total"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
}

// ListStrategies returns registered strategies with pagination and optional
// text search over name, author, and description.
// GET /api/strategies?search=&limit=50&offset=0
func (h *StrategyHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	recs, err := h.store.List(r.Context(), search, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list strategies failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list strategies")
		return
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count strategies failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count strategies")
		return
	}

	out := make([]strategyJSON, len(recs))
	for i, rec := range recs {
		out[i] = toStrategyJSON(rec)
	}

	writeJSON(w, http.StatusOK, listStrategiesResponse{
		Strategies: out,
		Total:      total,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	})
}

// GetStrategy returns a single strategy by its unique name.
// GET /api/strategies/{name}
func (h *StrategyHandler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing strategy name")
		return
	}

	rec, err := h.store.GetByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "strategy not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get strategy failed",
			slog.String("strategy", name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get strategy")
		return
	}

	writeJSON(w, http.StatusOK, toStrategyJSON(rec))
}

// registerStrategyRequest is the POST body for strategy registration.
type registerStrategyRequest struct {
	Name        string             `json:"name"`
	Author      string             `json:"author"`
	Kind        string             `json:"kind"`
	Params      map[string]float64 `json:"params"`
	Description string             `json:"description"`
}

// RegisterStrategy registers a new competitor. The kind and params are
// validated by actually building an instance before anything is stored.
// POST /api/strategies
func (h *StrategyHandler) RegisterStrategy(w http.ResponseWriter, r *http.Request) {
	var req registerStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if _, err := h.registry.Create(req.Kind, req.Params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid strategy: "+err.Error())
		return
	}

	rec, err := h.store.Insert(r.Context(), domain.StrategyRecord{
		Name:        req.Name,
		Author:      strings.TrimSpace(req.Author),
		Kind:        req.Kind,
		Params:      req.Params,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "strategy name already taken")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: register strategy failed",
			slog.String("strategy", req.Name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to register strategy")
		return
	}

	writeJSON(w, http.StatusCreated, toStrategyJSON(rec))
}

// ListKinds returns the strategy kinds the registry can build.
// GET /api/strategies/kinds
func (h *StrategyHandler) ListKinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"kinds": h.registry.List(),
	})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports the health of one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// healthCheck is one named dependency probe.
type healthCheck struct {
	name   string
	pinger Pinger
}

// HealthHandler serves the health-check endpoint, probing whichever
// dependencies were attached with WithCheck.
type HealthHandler struct {
	logger *slog.Logger
	checks []healthCheck
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// WithCheck attaches a named dependency probe and returns the handler for
// chaining.
func (h *HealthHandler) WithCheck(name string, p Pinger) *HealthHandler {
	h.checks = append(h.checks, healthCheck{name: name, pinger: p})
	return h
}

// pingTimeout bounds each dependency probe so a hung backend cannot stall
// the health endpoint.
const pingTimeout = 2 * time.Second

// HealthCheck reports overall and per-dependency status. Any failing probe
// degrades the response to 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	checks := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		err := c.pinger.Ping(ctx)
		cancel()
		if err != nil {
			h.logger.WarnContext(r.Context(), "handler: health probe failed",
				slog.String("dependency", c.name),
				slog.String("error", err.Error()),
			)
			checks[c.name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[c.name] = "ok"
	}

	body := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	writeJSON(w, code, body)
}

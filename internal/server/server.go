// Package server exposes the arena over HTTP and WebSocket: strategy
// registration, match runs, standings, stored results, and live match
// events.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/server/handler"
	"github.com/alanyoungcy/ammarena/internal/server/middleware"
	"github.com/alanyoungcy/ammarena/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	RateLimit   int           // requests per window per client IP; 0 disables
	RateWindow  time.Duration // sliding window for rate limiting
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Leaderboard *handler.LeaderboardHandler
	Strategies  *handler.StrategyHandler
	Matches     *handler.MatchHandler
}

// Server is the headless HTTP + WebSocket API for the arena.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// limiter may be nil, in which case rate limiting is disabled regardless of
// cfg.RateLimit. wsHub may be nil when no event bus is configured.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Leaderboard.
	mux.HandleFunc("GET /api/leaderboard", handlers.Leaderboard.GetLeaderboard)

	// Strategy endpoints. The literal /kinds route takes precedence over the
	// {name} wildcard.
	mux.HandleFunc("GET /api/strategies", handlers.Strategies.ListStrategies)
	mux.HandleFunc("POST /api/strategies", handlers.Strategies.RegisterStrategy)
	mux.HandleFunc("GET /api/strategies/kinds", handlers.Strategies.ListKinds)
	mux.HandleFunc("GET /api/strategies/{name}", handlers.Strategies.GetStrategy)

	// Match endpoints.
	mux.HandleFunc("GET /api/matches", handlers.Matches.ListMatches)
	mux.HandleFunc("POST /api/matches", handlers.Matches.RunMatch)
	mux.HandleFunc("GET /api/matches/{id}", handlers.Matches.GetMatch)
	mux.HandleFunc("GET /api/matches/{id}/results", handlers.Matches.ListResults)

	// Recent match events from the stream, for clients that missed the live
	// broadcast.
	mux.HandleFunc("GET /api/events", handlers.Matches.ListEvents)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply rate limiting closest to the mux so limited requests still get
	// logged and CORS headers.
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

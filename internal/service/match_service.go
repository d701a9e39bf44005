// Package service coordinates matches end to end: resolving entrants,
// driving the runner, persisting outcomes, and publishing progress events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/alanyoungcy/ammarena/internal/competition"
	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/notify"
	"github.com/alanyoungcy/ammarena/internal/strategy"
)

// MatchService runs matches for both the CLI and the HTTP API. The stores
// and bus are optional: with a nil MatchStore the match still runs and the
// result is returned, it just is not persisted.
type MatchService struct {
	strategies domain.StrategyStore
	matches    domain.MatchStore
	sims       domain.SimResultStore
	bus        domain.MatchBus
	registry   *strategy.Registry
	runnerCfg  competition.RunnerConfig
	notifier   *notify.Notifier
	logger     *slog.Logger
}

// NewMatchService creates a MatchService. registry falls back to the built-in
// kinds and logger to slog.Default when nil. runnerCfg's OnProgress and
// Logger fields are owned by the service and overwritten on every run.
func NewMatchService(
	strategies domain.StrategyStore,
	matches domain.MatchStore,
	sims domain.SimResultStore,
	bus domain.MatchBus,
	registry *strategy.Registry,
	runnerCfg competition.RunnerConfig,
	logger *slog.Logger,
) *MatchService {
	if registry == nil {
		registry = strategy.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchService{
		strategies: strategies,
		matches:    matches,
		sims:       sims,
		bus:        bus,
		registry:   registry,
		runnerCfg:  runnerCfg,
		logger:     logger.With(slog.String("component", "match_service")),
	}
}

// WithNotifier attaches operator announcements for finished and failed
// matches.
func (s *MatchService) WithNotifier(n *notify.Notifier) *MatchService {
	s.notifier = n
	return s
}

// entrant pairs a runner participant with its store identity. record.ID is
// zero for entrants resolved from a bare registry kind; they are registered
// on first persisted match.
type entrant struct {
	record      domain.StrategyRecord
	participant competition.Participant
}

// RunByNames resolves the named strategies and runs a full match. Names are
// looked up in the strategy store first; a name that is not registered but
// matches a built-in kind runs with that kind's default parameters.
//
// A storage failure after a completed match returns both the result and the
// error, so callers can still report the outcome.
func (s *MatchService) RunByNames(ctx context.Context, names []string) (*domain.MatchResult, error) {
	entrants, err := s.resolveAll(ctx, names)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, uuid.New(), entrants)
}

// StartByNames resolves the named strategies, hands back a match id, and
// runs the match in the background. Resolution errors surface immediately;
// run and storage errors are logged, since the caller is gone by then.
func (s *MatchService) StartByNames(ctx context.Context, names []string) (uuid.UUID, error) {
	entrants, err := s.resolveAll(ctx, names)
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	go func() {
		// The match outlives the request that started it.
		if _, err := s.run(context.Background(), id, entrants); err != nil {
			s.logger.Error("match_service: background match failed",
				slog.String("match_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}()
	return id, nil
}

func (s *MatchService) resolveAll(ctx context.Context, names []string) ([]entrant, error) {
	if len(names) < domain.MinParticipants {
		return nil, fmt.Errorf("match_service: need at least %d strategies, got %d",
			domain.MinParticipants, len(names))
	}

	entrants := make([]entrant, len(names))
	for i, name := range names {
		e, err := s.resolve(ctx, strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		entrants[i] = e
	}
	return entrants, nil
}

// resolve turns one strategy name into an entrant.
func (s *MatchService) resolve(ctx context.Context, name string) (entrant, error) {
	if name == "" {
		return entrant{}, fmt.Errorf("match_service: empty strategy name")
	}

	if s.strategies != nil {
		rec, err := s.strategies.GetByName(ctx, name)
		if err == nil {
			// Fail now rather than inside a worker goroutine.
			if _, buildErr := s.registry.Create(rec.Kind, rec.Params); buildErr != nil {
				return entrant{}, fmt.Errorf("match_service: strategy %q: %w", name, buildErr)
			}
			return entrant{
				record: rec,
				participant: competition.Participant{
					Name: rec.Name,
					New: func() (domain.Strategy, error) {
						return s.registry.Create(rec.Kind, rec.Params)
					},
				},
			}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return entrant{}, fmt.Errorf("match_service: resolve %q: %w", name, err)
		}
	}

	// Fall back to a bare registry kind with default parameters. The display
	// name comes from the built instance (e.g. fixed30), not the kind.
	inst, err := s.registry.Create(name, nil)
	if err != nil {
		return entrant{}, fmt.Errorf("match_service: unknown strategy %q: %w", name, domain.ErrNotFound)
	}
	return entrant{
		record: domain.StrategyRecord{Name: inst.Name(), Kind: name},
		participant: competition.Participant{
			Name: inst.Name(),
			New: func() (domain.Strategy, error) {
				return s.registry.Create(name, nil)
			},
		},
	}, nil
}

func (s *MatchService) run(ctx context.Context, id uuid.UUID, entrants []entrant) (*domain.MatchResult, error) {
	cfg := s.runnerCfg
	cfg.Logger = s.logger
	cfg.OnProgress = nil
	if s.bus != nil {
		cfg.OnProgress = func(ev domain.MatchEvent) {
			if err := s.bus.Publish(ctx, ev); err != nil {
				s.logger.WarnContext(ctx, "match_service: publish event failed",
					slog.String("type", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	runner, err := competition.NewMatchRunner(cfg)
	if err != nil {
		return nil, fmt.Errorf("match_service: %w", err)
	}

	participants := make([]competition.Participant, len(entrants))
	for i, e := range entrants {
		participants[i] = e.participant
	}

	match, err := runner.RunMatchWithID(ctx, id, participants)
	if err != nil {
		s.announceFailure(ctx, id, err)
		return nil, fmt.Errorf("match_service: %w", err)
	}
	s.announce(ctx, match)

	if s.matches != nil {
		if err := s.persist(ctx, entrants, match); err != nil {
			return match, err
		}
	}
	return match, nil
}

// announce reports the finished match to operator channels. Delivery
// failures are logged, never returned: the match itself succeeded.
func (s *MatchService) announce(ctx context.Context, match *domain.MatchResult) {
	if !s.notifier.Enabled() {
		return
	}
	if err := s.notifier.AnnounceMatch(ctx, match); err != nil {
		s.logger.WarnContext(ctx, "match_service: announce failed",
			slog.String("match_id", match.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MatchService) announceFailure(ctx context.Context, id uuid.UUID, runErr error) {
	if !s.notifier.Enabled() {
		return
	}
	if err := s.notifier.AnnounceMatchFailure(ctx, id, runErr); err != nil {
		s.logger.WarnContext(ctx, "match_service: announce failed",
			slog.String("match_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
}

// persist stores the finished match, registering kind-resolved entrants on
// the way. Matches where the same strategy enters twice stay in memory only:
// the participant rows key on (match, strategy).
func (s *MatchService) persist(ctx context.Context, entrants []entrant, match *domain.MatchResult) error {
	seen := make(map[string]bool, len(entrants))
	for _, e := range entrants {
		if seen[e.participant.Name] {
			s.logger.WarnContext(ctx, "match_service: duplicate entrant, match not persisted",
				slog.String("match_id", match.ID.String()),
				slog.String("strategy", e.participant.Name),
			)
			return nil
		}
		seen[e.participant.Name] = true
	}

	ids, err := s.ensureRegistered(ctx, entrants)
	if err != nil {
		return err
	}

	parts := make([]domain.ParticipantRecord, len(match.Participants))
	for i, p := range match.Participants {
		parts[i] = domain.ParticipantRecord{
			MatchID:    match.ID,
			StrategyID: ids[p.Strategy],
			Strategy:   p.Strategy,
			Placement:  p.Placement,
			Wins:       p.Wins,
			Points:     p.Points,
			AvgEdge:    p.AvgEdge,
			TotalEdge:  p.TotalEdge,
		}
	}

	rec := domain.MatchRecord{
		ID:            match.ID,
		NParticipants: len(match.Participants),
		NSimulations:  match.Sims,
		BaseSeed:      match.BaseSeed,
		CreatedAt:     match.FinishedAt,
	}
	if err := s.matches.InsertMatch(ctx, rec, parts); err != nil {
		return fmt.Errorf("match_service: store match %s: %w", match.ID, err)
	}

	if s.sims != nil && len(match.SimResults) > 0 {
		if err := s.sims.InsertBatch(ctx, simRecords(entrants, match)); err != nil {
			return fmt.Errorf("match_service: store simulation results %s: %w", match.ID, err)
		}
	}

	s.logger.InfoContext(ctx, "match stored",
		slog.String("match_id", match.ID.String()),
		slog.Int("participants", len(parts)),
		slog.Int("sims", match.Sims),
	)
	return nil
}

// ensureRegistered maps every entrant name to a strategy id, inserting
// kind-resolved entrants that have no stored record yet.
func (s *MatchService) ensureRegistered(ctx context.Context, entrants []entrant) (map[string]uuid.UUID, error) {
	if s.strategies == nil {
		return nil, fmt.Errorf("match_service: persistence requires a strategy store")
	}

	ids := make(map[string]uuid.UUID, len(entrants))
	for _, e := range entrants {
		if e.record.ID != uuid.Nil {
			ids[e.participant.Name] = e.record.ID
			continue
		}

		rec, err := s.strategies.Insert(ctx, e.record)
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Registered by a concurrent run between resolve and here.
			rec, err = s.strategies.GetByName(ctx, e.record.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("match_service: register %q: %w", e.record.Name, err)
		}
		ids[e.participant.Name] = rec.ID
	}
	return ids, nil
}

// simRecords flattens per-simulation pool outcomes into store rows. Pool
// results are index-aligned with the entrants, and each simulation is ranked
// on its own.
func simRecords(entrants []entrant, match *domain.MatchResult) []domain.SimRecord {
	out := make([]domain.SimRecord, 0, len(match.SimResults)*len(entrants))
	for i := range match.SimResults {
		res := &match.SimResults[i]
		placements := competition.RankByEdge(res.Pools)
		for j := range res.Pools {
			out = append(out, domain.SimRecord{
				MatchID:     match.ID,
				SimIndex:    i,
				Seed:        res.Seed,
				Strategy:    entrants[j].participant.Name,
				Edge:        res.Pools[j].Edge,
				PnL:         res.Pools[j].PnL,
				Placement:   placements[j],
				Fingerprint: res.Fingerprint,
			})
		}
	}
	return out
}

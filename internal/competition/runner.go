// Package competition scores strategies against each other. A match runs the
// same field of strategies through n independently seeded simulations, ranks
// every simulation by captured edge, and aggregates per-simulation wins into
// match placements and podium points.
package competition

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/sim"
)

// Participant is one entrant in a match: a display name and a factory that
// produces a fresh strategy instance for every simulation, since strategies
// carry state and simulations run concurrently.
type Participant struct {
	Name string
	New  func() (domain.Strategy, error)
}

// RunnerConfig configures a MatchRunner.
type RunnerConfig struct {
	// Base is the per-simulation config. Its Seed is the match's base seed:
	// simulation i runs with Seed = Base.Seed + i and draws its variance
	// from an RNG seeded the same way.
	Base sim.Config

	// NSims is the number of simulations per match.
	NSims int

	// Workers bounds concurrent simulations. Zero means min(8, NumCPU).
	Workers int

	// Variance redraws market hyperparameters per simulation.
	Variance Variance

	// StoreSimResults keeps every simulation's full result on the
	// MatchResult, for persistence and charting.
	StoreSimResults bool

	// OnProgress, when set, receives match lifecycle events. It is called
	// from one goroutine at a time but in completion order, not simulation
	// order.
	OnProgress func(domain.MatchEvent)

	Logger *slog.Logger
}

// MatchRunner runs matches under a fixed configuration.
type MatchRunner struct {
	cfg    RunnerConfig
	logger *slog.Logger

	progressMu sync.Mutex
}

// NewMatchRunner creates a runner after validating cfg. A nil logger falls
// back to slog.Default().
func NewMatchRunner(cfg RunnerConfig) (*MatchRunner, error) {
	if err := cfg.Base.Validate(); err != nil {
		return nil, fmt.Errorf("competition: %w", err)
	}
	if err := cfg.Variance.Validate(); err != nil {
		return nil, fmt.Errorf("competition: %w", err)
	}
	if cfg.NSims <= 0 {
		return nil, fmt.Errorf("competition: n_sims must be > 0, got %d", cfg.NSims)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
		if cfg.Workers > 8 {
			cfg.Workers = 8
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchRunner{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "match_runner")),
	}, nil
}

// RunMatch runs a complete match. Every participant backs one pool in every
// simulation, simulation i is seeded Base.Seed+i, and the aggregate result is
// independent of worker scheduling: sums run in simulation order.
func (r *MatchRunner) RunMatch(ctx context.Context, participants []Participant) (*domain.MatchResult, error) {
	return r.RunMatchWithID(ctx, uuid.New(), participants)
}

// RunMatchWithID runs a match under a caller-assigned id, for callers that
// hand the id out before the match finishes. A zero id is replaced with a
// fresh one.
func (r *MatchRunner) RunMatchWithID(ctx context.Context, matchID uuid.UUID, participants []Participant) (*domain.MatchResult, error) {
	n := len(participants)
	if n < domain.MinParticipants || n > domain.MaxParticipants {
		return nil, fmt.Errorf("competition: run match: field size %d outside [%d, %d]",
			n, domain.MinParticipants, domain.MaxParticipants)
	}

	if matchID == uuid.Nil {
		matchID = uuid.New()
	}
	startedAt := time.Now()
	r.emit(domain.MatchEvent{Type: domain.MatchEventStarted, MatchID: matchID, SimIndex: -1})
	r.logger.Info("match started",
		slog.String("match_id", matchID.String()),
		slog.Int("participants", n),
		slog.Int("sims", r.cfg.NSims),
		slog.Int64("base_seed", r.cfg.Base.Seed))

	results := make([]*domain.SimResult, r.cfg.NSims)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := 0; i < r.cfg.NSims; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.runSim(i, participants)
			if err != nil {
				return err
			}
			results[i] = res
			winner := ""
			if top := topByEdge(res.Pools); len(top) == 1 {
				winner = participants[top[0]].Name
			}
			r.emit(domain.MatchEvent{
				Type:     domain.MatchEventSimDone,
				MatchID:  matchID,
				SimIndex: i,
				Winner:   winner,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("competition: match %s: %w", matchID, err)
	}

	match := r.score(matchID, participants, results, startedAt)
	r.emit(domain.MatchEvent{
		Type:    domain.MatchEventCompleted,
		MatchID: matchID,
		Winner:  match.Winner(),
	})
	r.logger.Info("match finished",
		slog.String("match_id", matchID.String()),
		slog.String("winner", match.Winner()),
		slog.Duration("elapsed", match.FinishedAt.Sub(match.StartedAt)))
	return match, nil
}

func (r *MatchRunner) runSim(idx int, participants []Participant) (*domain.SimResult, error) {
	seed := r.cfg.Base.Seed + int64(idx)
	cfg := r.cfg.Variance.Apply(r.cfg.Base, rand.New(rand.NewSource(seed)))
	cfg.Seed = seed

	field := make([]domain.Strategy, len(participants))
	for j, p := range participants {
		s, err := p.New()
		if err != nil {
			return nil, fmt.Errorf("sim %d: participant %s: %w", idx, p.Name, err)
		}
		field[j] = s
	}

	engine, err := sim.New(cfg, r.logger)
	if err != nil {
		return nil, fmt.Errorf("sim %d: %w", idx, err)
	}
	res, err := engine.Run(field)
	if err != nil {
		return nil, fmt.Errorf("sim %d: %w", idx, err)
	}
	return res, nil
}

// score folds the per-simulation results into the match outcome.
// A simulation is won by the strictly highest edge; a shared top is a draw
// for everyone in it. Match placements order participants by wins, then by
// total edge.
func (r *MatchRunner) score(matchID uuid.UUID, participants []Participant, results []*domain.SimResult, startedAt time.Time) *domain.MatchResult {
	n := len(participants)
	wins := make([]int, n)
	draws := make([]int, n)
	totalEdge := make([]decimal.Decimal, n)

	for _, res := range results {
		top := topByEdge(res.Pools)
		if len(top) == 1 {
			wins[top[0]]++
		} else {
			for _, j := range top {
				draws[j]++
			}
		}
		for j := 0; j < n; j++ {
			totalEdge[j] = totalEdge[j].Add(res.Pools[j].Edge)
		}
	}

	nSims := decimal.NewFromInt(int64(len(results)))
	order := make([]int, n)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		ja, jb := order[a], order[b]
		if wins[ja] != wins[jb] {
			return wins[ja] > wins[jb]
		}
		return totalEdge[ja].GreaterThan(totalEdge[jb])
	})

	ranked := make([]domain.ParticipantResult, n)
	for pos, j := range order {
		placement := pos + 1
		// Dead heats share the better placement.
		if pos > 0 {
			prev := order[pos-1]
			if wins[j] == wins[prev] && totalEdge[j].Equal(totalEdge[prev]) {
				placement = ranked[pos-1].Placement
			}
		}
		ranked[pos] = domain.ParticipantResult{
			Strategy:  participants[j].Name,
			Wins:      wins[j],
			Draws:     draws[j],
			TotalEdge: totalEdge[j],
			AvgEdge:   totalEdge[j].Div(nSims),
			Placement: placement,
			Points:    pointsFor(placement),
		}
	}

	match := &domain.MatchResult{
		ID:           matchID,
		Participants: ranked,
		Sims:         len(results),
		BaseSeed:     r.cfg.Base.Seed,
		StartedAt:    startedAt,
		FinishedAt:   time.Now(),
	}
	if r.cfg.StoreSimResults {
		match.SimResults = make([]domain.SimResult, len(results))
		for i, res := range results {
			match.SimResults[i] = *res
		}
	}
	return match
}

func (r *MatchRunner) emit(event domain.MatchEvent) {
	if r.cfg.OnProgress == nil {
		return
	}
	event.At = time.Now()
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.cfg.OnProgress(event)
}

// pointsFor is podium scoring: 3 points for first, 2 for second, 1 for third.
func pointsFor(placement int) int {
	switch placement {
	case 1:
		return 3
	case 2:
		return 2
	case 3:
		return 1
	default:
		return 0
	}
}

// topByEdge returns the pool indices sharing the highest edge of one
// simulation. A single index is an outright win; more is a dead heat.
func topByEdge(pools []domain.PoolResult) []int {
	top := []int{0}
	for j := 1; j < len(pools); j++ {
		switch pools[j].Edge.Cmp(pools[top[0]].Edge) {
		case 1:
			top = append(top[:0], j)
		case 0:
			top = append(top, j)
		}
	}
	return top
}

// RankByEdge assigns standard competition placements (equal edges share a
// placement, the next distinct edge skips past them) to the pools of one
// simulation, aligned by index.
func RankByEdge(pools []domain.PoolResult) []int {
	placements := make([]int, len(pools))
	for i := range pools {
		rank := 1
		for j := range pools {
			if pools[j].Edge.GreaterThan(pools[i].Edge) {
				rank++
			}
		}
		placements[i] = rank
	}
	return placements
}

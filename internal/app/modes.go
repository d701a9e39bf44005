package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/ammarena/internal/competition"
	"github.com/alanyoungcy/ammarena/internal/config"
	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/server"
	"github.com/alanyoungcy/ammarena/internal/server/handler"
	"github.com/alanyoungcy/ammarena/internal/server/ws"
	"github.com/alanyoungcy/ammarena/internal/service"
	"github.com/alanyoungcy/ammarena/internal/sim"
	"github.com/alanyoungcy/ammarena/internal/strategy"
)

// archiveLockTTL bounds how long a crashed archiver blocks the next run.
const archiveLockTTL = 15 * time.Minute

// SimMode runs a single simulation with the configured field and writes the
// full result as JSON to stdout. Field entries must be built-in kinds: sim
// mode wires no database, so there is nothing to look registered names up in.
func (a *App) SimMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sim mode",
		slog.Any("strategies", a.cfg.Strategies),
		slog.Int("n_steps", a.cfg.Sim.NSteps),
		slog.Int64("seed", a.cfg.Match.BaseSeed),
	)

	registry := strategy.DefaultRegistry()
	participants := make([]domain.Strategy, 0, len(a.cfg.Strategies))
	for _, kind := range a.cfg.Strategies {
		s, err := registry.Create(kind, nil)
		if err != nil {
			return fmt.Errorf("sim mode: %w", err)
		}
		participants = append(participants, s)
	}

	engine, err := sim.New(baseSimConfig(a.cfg), a.logger)
	if err != nil {
		return fmt.Errorf("sim mode: %w", err)
	}
	result, err := engine.Run(participants)
	if err != nil {
		return fmt.Errorf("sim mode: %w", err)
	}

	return printJSON(newSimOutput(result))
}

// MatchMode runs one full match from the CLI and writes the standings as
// JSON to stdout. Results are persisted only when match.store_results is set,
// which is also what wires Postgres for this mode. Progress events go to the
// log rather than an event bus.
func (a *App) MatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting match mode",
		slog.Any("strategies", a.cfg.Strategies),
		slog.Int("n_simulations", a.cfg.Match.NSimulations),
		slog.Int64("base_seed", a.cfg.Match.BaseSeed),
	)

	svc := service.NewMatchService(
		deps.StrategyStore,
		deps.MatchStore,
		deps.SimResultStore,
		nil,
		strategy.DefaultRegistry(),
		runnerConfig(a.cfg),
		a.logger,
	).WithNotifier(deps.Notifier)

	match, err := svc.RunByNames(ctx, a.cfg.Strategies)
	if match != nil {
		// A storage failure still leaves a finished match worth printing.
		if printErr := printJSON(newMatchOutput(match)); printErr != nil && err == nil {
			err = printErr
		}
	}
	return err
}

// ServeMode runs the HTTP and WebSocket API: standings, strategy
// registration, match history, and live match runs streamed over the event
// bus.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode",
		slog.Int("port", a.cfg.Server.Port),
	)

	g, ctx := errgroup.WithContext(ctx)

	registry := strategy.DefaultRegistry()
	matchSvc := service.NewMatchService(
		deps.StrategyStore,
		deps.MatchStore,
		deps.SimResultStore,
		deps.MatchBus,
		registry,
		runnerConfig(a.cfg),
		a.logger,
	).WithNotifier(deps.Notifier)

	hub := ws.NewHub(deps.MatchBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	health := handler.NewHealthHandler(a.logger).
		WithCheck("postgres", deps.PG).
		WithCheck("redis", deps.Redis)

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:      health,
			Leaderboard: handler.NewLeaderboardHandler(deps.MatchStore, deps.LeaderboardCache, a.logger),
			Strategies:  handler.NewStrategyHandler(deps.StrategyStore, registry, a.logger),
			Matches:     handler.NewMatchHandler(deps.MatchStore, deps.SimResultStore, deps.MatchBus, matchSvc, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// ArchiveMode exports matches older than the retention window to object
// storage and deletes their database rows. A distributed lock keeps two
// archivers from pruning the same matches; when another instance holds it,
// the run is skipped.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	unlock, err := deps.LockManager.Acquire(ctx, "archive", archiveLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.InfoContext(ctx, "archive lock held by another instance, skipping run")
			return nil
		}
		return fmt.Errorf("archive mode: %w", err)
	}
	defer unlock()

	archived, err := deps.Archiver.ArchiveBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("matches_archived", archived),
	)
	if err := deps.Notifier.AnnounceArchive(ctx, archived, cutoff); err != nil {
		a.logger.WarnContext(ctx, "archive announcement failed",
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// baseSimConfig maps the sim section of the configuration onto the engine
// config. The match base seed seeds simulation zero.
func baseSimConfig(cfg *config.Config) sim.Config {
	return sim.Config{
		NSteps:            cfg.Sim.NSteps,
		InitialPrice:      cfg.Sim.InitialPrice,
		InitialX:          cfg.Sim.InitialX,
		InitialY:          cfg.Sim.InitialY,
		GBMMu:             cfg.Sim.GBMMu,
		GBMSigma:          cfg.Sim.GBMSigma,
		GBMDt:             cfg.Sim.GBMDt,
		RetailArrivalRate: cfg.Sim.RetailArrivalRate,
		RetailMeanSize:    cfg.Sim.RetailMeanSize,
		RetailSizeSigma:   cfg.Sim.RetailSizeSigma,
		RetailBuyProb:     cfg.Sim.RetailBuyProb,
		Seed:              cfg.Match.BaseSeed,
		FeeUpdateInterval: cfg.Sim.FeeUpdateInterval,
		StepSampleRate:    cfg.Sim.StepSampleRate,
	}
}

// runnerConfig maps the match section onto the match runner config. The
// service owns the progress callback and logger fields.
func runnerConfig(cfg *config.Config) competition.RunnerConfig {
	return competition.RunnerConfig{
		Base:    baseSimConfig(cfg),
		NSims:   cfg.Match.NSimulations,
		Workers: cfg.Match.Workers,
		Variance: competition.Variance{
			RetailMeanSizeMin:  cfg.Match.RetailMeanSizeMin,
			RetailMeanSizeMax:  cfg.Match.RetailMeanSizeMax,
			VaryRetailMeanSize: cfg.Match.VaryRetailMeanSize,

			RetailArrivalRateMin:  cfg.Match.RetailArrivalRateMin,
			RetailArrivalRateMax:  cfg.Match.RetailArrivalRateMax,
			VaryRetailArrivalRate: cfg.Match.VaryRetailArrivalRate,

			GBMSigmaMin:  cfg.Match.GBMSigmaMin,
			GBMSigmaMax:  cfg.Match.GBMSigmaMax,
			VaryGBMSigma: cfg.Match.VaryGBMSigma,
		},
		StoreSimResults: cfg.Match.StoreResults,
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}

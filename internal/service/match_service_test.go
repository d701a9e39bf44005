package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammarena/internal/competition"
	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/notify"
	"github.com/alanyoungcy/ammarena/internal/sim"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRunnerConfig(storeSims bool) competition.RunnerConfig {
	base := sim.DefaultConfig()
	base.NSteps = 120
	base.Seed = 7
	return competition.RunnerConfig{
		Base:            base,
		NSims:           3,
		Workers:         2,
		Variance:        competition.DefaultVariance(),
		StoreSimResults: storeSims,
	}
}

type memStrategyStore struct {
	byName map[string]domain.StrategyRecord
}

func newMemStrategyStore(recs ...domain.StrategyRecord) *memStrategyStore {
	s := &memStrategyStore{byName: make(map[string]domain.StrategyRecord)}
	for _, rec := range recs {
		s.byName[rec.Name] = rec
	}
	return s
}

func (s *memStrategyStore) Insert(_ context.Context, rec domain.StrategyRecord) (domain.StrategyRecord, error) {
	if _, ok := s.byName[rec.Name]; ok {
		return domain.StrategyRecord{}, domain.ErrAlreadyExists
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now().UTC()
	s.byName[rec.Name] = rec
	return rec, nil
}

func (s *memStrategyStore) GetByID(_ context.Context, id uuid.UUID) (domain.StrategyRecord, error) {
	for _, rec := range s.byName {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.StrategyRecord{}, domain.ErrNotFound
}

func (s *memStrategyStore) GetByName(_ context.Context, name string) (domain.StrategyRecord, error) {
	rec, ok := s.byName[name]
	if !ok {
		return domain.StrategyRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *memStrategyStore) List(context.Context, string, domain.ListOpts) ([]domain.StrategyRecord, error) {
	return nil, nil
}

func (s *memStrategyStore) Count(context.Context) (int64, error) {
	return int64(len(s.byName)), nil
}

type capturingMatchStore struct {
	mu    sync.Mutex
	match domain.MatchRecord
	parts []domain.ParticipantRecord
	calls int
}

func (c *capturingMatchStore) InsertMatch(_ context.Context, m domain.MatchRecord, parts []domain.ParticipantRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.match = m
	c.parts = parts
	return nil
}

// inserted snapshots the captured state for assertions from other goroutines.
func (c *capturingMatchStore) inserted() (domain.MatchRecord, []domain.ParticipantRecord, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.match, c.parts, c.calls
}

func (c *capturingMatchStore) GetByID(context.Context, uuid.UUID) (domain.MatchRecord, error) {
	return domain.MatchRecord{}, domain.ErrNotFound
}

func (c *capturingMatchStore) List(context.Context, domain.ListOpts) ([]domain.MatchRecord, error) {
	return nil, nil
}

func (c *capturingMatchStore) ListByStrategy(context.Context, uuid.UUID, domain.ListOpts) ([]domain.MatchRecord, error) {
	return nil, nil
}

func (c *capturingMatchStore) ListParticipants(context.Context, uuid.UUID) ([]domain.ParticipantRecord, error) {
	return nil, nil
}

func (c *capturingMatchStore) ListBefore(context.Context, time.Time, int) ([]domain.MatchRecord, error) {
	return nil, nil
}

func (c *capturingMatchStore) Delete(context.Context, uuid.UUID) error { return nil }

func (c *capturingMatchStore) Count(context.Context) (int64, error) { return 0, nil }

func (c *capturingMatchStore) Leaderboard(context.Context, domain.LeaderboardSort, int) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}

type capturingSimStore struct {
	records []domain.SimRecord
}

func (c *capturingSimStore) InsertBatch(_ context.Context, records []domain.SimRecord) error {
	c.records = append(c.records, records...)
	return nil
}

func (c *capturingSimStore) ListByMatch(context.Context, uuid.UUID, domain.ListOpts) ([]domain.SimRecord, error) {
	return nil, nil
}

type capturingBus struct {
	events []domain.MatchEvent
}

func (c *capturingBus) Publish(_ context.Context, ev domain.MatchEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *capturingBus) Subscribe(context.Context) (<-chan domain.MatchEvent, error) {
	return nil, nil
}

func (c *capturingBus) History(context.Context, string, int) ([]domain.MatchEventEntry, error) {
	return nil, nil
}

func TestRunByNamesWithKindFallback(t *testing.T) {
	svc := NewMatchService(nil, nil, nil, nil, nil, testRunnerConfig(false), testLogger())

	match, err := svc.RunByNames(context.Background(), []string{"fixed", "adaptive"})
	require.NoError(t, err)
	require.Len(t, match.Participants, 2)

	// Display names come from the built instances, not the kind strings.
	names := []string{match.Participants[0].Strategy, match.Participants[1].Strategy}
	require.Contains(t, names, "fixed30")
	require.Equal(t, 3, match.Sims)
	require.Equal(t, 1, match.Participants[0].Placement)
}

func TestRunByNamesUnknownStrategy(t *testing.T) {
	svc := NewMatchService(nil, nil, nil, nil, nil, testRunnerConfig(false), testLogger())

	_, err := svc.RunByNames(context.Background(), []string{"fixed", "nessie"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Contains(t, err.Error(), "nessie")
}

func TestRunByNamesNeedsTwo(t *testing.T) {
	svc := NewMatchService(nil, nil, nil, nil, nil, testRunnerConfig(false), testLogger())

	_, err := svc.RunByNames(context.Background(), []string{"fixed"})
	require.Error(t, err)
}

func TestRunByNamesPersistsAndRegisters(t *testing.T) {
	registered := domain.StrategyRecord{
		ID:     uuid.New(),
		Name:   "steady-eddie",
		Kind:   "fixed",
		Params: map[string]float64{"fee_bps": 30},
	}
	strategies := newMemStrategyStore(registered)
	matches := &capturingMatchStore{}
	sims := &capturingSimStore{}

	svc := NewMatchService(strategies, matches, sims, nil, nil, testRunnerConfig(true), testLogger())

	match, err := svc.RunByNames(context.Background(), []string{"steady-eddie", "adaptive"})
	require.NoError(t, err)

	stored, parts, calls := matches.inserted()
	require.Equal(t, 1, calls)
	require.Equal(t, match.ID, stored.ID)
	require.Equal(t, 2, stored.NParticipants)
	require.Equal(t, 3, stored.NSimulations)
	require.Len(t, parts, 2)

	// The adaptive entrant was auto-registered under its display name.
	adaptiveName := match.Participants[0].Strategy
	if adaptiveName == "steady-eddie" {
		adaptiveName = match.Participants[1].Strategy
	}
	adaptiveRec, err := strategies.GetByName(context.Background(), adaptiveName)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, adaptiveRec.ID)
	require.Equal(t, "adaptive", adaptiveRec.Kind)

	for _, p := range parts {
		require.NotEqual(t, uuid.Nil, p.StrategyID)
		if p.Strategy == "steady-eddie" {
			require.Equal(t, registered.ID, p.StrategyID)
		}
	}

	// 3 sims x 2 participants.
	require.Len(t, sims.records, 6)
	for _, rec := range sims.records {
		require.Equal(t, match.ID, rec.MatchID)
		require.NotEmpty(t, rec.Fingerprint)
		require.GreaterOrEqual(t, rec.Placement, 1)
		require.Equal(t, rec.Seed, int64(7)+int64(rec.SimIndex))
	}
}

func TestRunByNamesSkipsPersistenceForSelfPlay(t *testing.T) {
	strategies := newMemStrategyStore()
	matches := &capturingMatchStore{}

	svc := NewMatchService(strategies, matches, nil, nil, nil, testRunnerConfig(false), testLogger())

	match, err := svc.RunByNames(context.Background(), []string{"fixed", "fixed"})
	require.NoError(t, err)
	require.Len(t, match.Participants, 2)
	_, _, calls := matches.inserted()
	require.Zero(t, calls, "self-play matches stay in memory")
}

func TestStartByNamesRunsInBackground(t *testing.T) {
	strategies := newMemStrategyStore()
	matches := &capturingMatchStore{}
	svc := NewMatchService(strategies, matches, nil, nil, nil, testRunnerConfig(false), testLogger())

	id, err := svc.StartByNames(context.Background(), []string{"fixed", "tiered"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	require.Eventually(t, func() bool {
		stored, _, calls := matches.inserted()
		return calls == 1 && stored.ID == id
	}, 10*time.Second, 50*time.Millisecond)
}

func TestStartByNamesValidatesUpfront(t *testing.T) {
	svc := NewMatchService(nil, nil, nil, nil, nil, testRunnerConfig(false), testLogger())

	_, err := svc.StartByNames(context.Background(), []string{"fixed", "nope"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunByNamesPublishesLifecycle(t *testing.T) {
	bus := &capturingBus{}
	svc := NewMatchService(nil, nil, nil, bus, nil, testRunnerConfig(false), testLogger())

	match, err := svc.RunByNames(context.Background(), []string{"fixed", "spread"})
	require.NoError(t, err)

	// started + one per sim + completed.
	require.Len(t, bus.events, 2+match.Sims)
	require.Equal(t, domain.MatchEventStarted, bus.events[0].Type)
	last := bus.events[len(bus.events)-1]
	require.Equal(t, domain.MatchEventCompleted, last.Type)
	require.Equal(t, match.ID, last.MatchID)
	for _, ev := range bus.events {
		require.False(t, ev.At.IsZero())
	}
}

type recordingSender struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func TestRunByNamesAnnouncesOutcome(t *testing.T) {
	sender := &recordingSender{}
	notifier := notify.NewNotifier([]notify.Sender{sender}, nil, testLogger())
	svc := NewMatchService(nil, nil, nil, nil, nil, testRunnerConfig(false), testLogger()).
		WithNotifier(notifier)

	match, err := svc.RunByNames(context.Background(), []string{"fixed", "adaptive"})
	require.NoError(t, err)

	require.Len(t, sender.titles, 1)
	if winner := match.Winner(); winner != "" {
		require.Equal(t, "Match won by "+winner, sender.titles[0])
	} else {
		require.Equal(t, "Match drawn", sender.titles[0])
	}
}

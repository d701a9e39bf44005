package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

type fakeMatchStore struct {
	matches     map[uuid.UUID]domain.MatchRecord
	parts       map[uuid.UUID][]domain.ParticipantRecord
	byStrategy  map[uuid.UUID][]domain.MatchRecord
	listCalls   int
	filterCalls int
	gotStrategy uuid.UUID
}

func (f *fakeMatchStore) InsertMatch(context.Context, domain.MatchRecord, []domain.ParticipantRecord) error {
	return nil
}

func (f *fakeMatchStore) GetByID(_ context.Context, id uuid.UUID) (domain.MatchRecord, error) {
	m, ok := f.matches[id]
	if !ok {
		return domain.MatchRecord{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMatchStore) List(context.Context, domain.ListOpts) ([]domain.MatchRecord, error) {
	f.listCalls++
	out := make([]domain.MatchRecord, 0, len(f.matches))
	for _, m := range f.matches {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMatchStore) ListByStrategy(_ context.Context, strategyID uuid.UUID, _ domain.ListOpts) ([]domain.MatchRecord, error) {
	f.filterCalls++
	f.gotStrategy = strategyID
	return f.byStrategy[strategyID], nil
}

func (f *fakeMatchStore) ListParticipants(_ context.Context, matchID uuid.UUID) ([]domain.ParticipantRecord, error) {
	return f.parts[matchID], nil
}

func (f *fakeMatchStore) ListBefore(context.Context, time.Time, int) ([]domain.MatchRecord, error) {
	return nil, nil
}

func (f *fakeMatchStore) Delete(context.Context, uuid.UUID) error { return nil }

func (f *fakeMatchStore) Count(context.Context) (int64, error) {
	return int64(len(f.matches)), nil
}

func (f *fakeMatchStore) Leaderboard(context.Context, domain.LeaderboardSort, int) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}

type fakeSimResultStore struct {
	results map[uuid.UUID][]domain.SimRecord
}

func (f *fakeSimResultStore) InsertBatch(context.Context, []domain.SimRecord) error { return nil }

func (f *fakeSimResultStore) ListByMatch(_ context.Context, matchID uuid.UUID, _ domain.ListOpts) ([]domain.SimRecord, error) {
	return f.results[matchID], nil
}

type fakeMatchBus struct {
	entries   []domain.MatchEventEntry
	gotLastID string
	gotCount  int
}

func (f *fakeMatchBus) Publish(context.Context, domain.MatchEvent) error { return nil }

func (f *fakeMatchBus) Subscribe(context.Context) (<-chan domain.MatchEvent, error) {
	return nil, nil
}

func (f *fakeMatchBus) History(_ context.Context, lastID string, count int) ([]domain.MatchEventEntry, error) {
	f.gotLastID = lastID
	f.gotCount = count
	return f.entries, nil
}

func storedMatch() domain.MatchRecord {
	return domain.MatchRecord{
		ID:            uuid.New(),
		NParticipants: 2,
		NSimulations:  5,
		BaseSeed:      42,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestGetMatchReturnsParticipants(t *testing.T) {
	m := storedMatch()
	store := &fakeMatchStore{
		matches: map[uuid.UUID]domain.MatchRecord{m.ID: m},
		parts: map[uuid.UUID][]domain.ParticipantRecord{
			m.ID: {
				{MatchID: m.ID, StrategyID: uuid.New(), Strategy: "steady", Placement: 1, Wins: 3, Points: 9, AvgEdge: decimal.RequireFromString("1.25")},
				{MatchID: m.ID, StrategyID: uuid.New(), Strategy: "wild", Placement: 2, Wins: 2, Points: 6, AvgEdge: decimal.RequireFromString("-0.5")},
			},
		},
	}
	h := NewMatchHandler(store, &fakeSimResultStore{}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/matches/"+m.ID.String(), nil)
	req.SetPathValue("id", m.ID.String())
	rec := httptest.NewRecorder()
	h.GetMatch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp getMatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, m.ID, resp.Match.ID)
	require.Equal(t, int64(42), resp.Match.BaseSeed)
	require.Len(t, resp.Participants, 2)
	require.Equal(t, "steady", resp.Participants[0].Strategy)
	require.Equal(t, 1, resp.Participants[0].Placement)
}

func TestGetMatchNotFound(t *testing.T) {
	h := NewMatchHandler(&fakeMatchStore{}, &fakeSimResultStore{}, nil, nil, testLogger())

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/matches/"+id.String(), nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()
	h.GetMatch(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMatchInvalidID(t *testing.T) {
	h := NewMatchHandler(&fakeMatchStore{}, &fakeSimResultStore{}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/matches/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	h.GetMatch(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid match id")
}

func TestListMatchesFiltersByStrategy(t *testing.T) {
	strategyID := uuid.New()
	m := storedMatch()
	store := &fakeMatchStore{
		matches:    map[uuid.UUID]domain.MatchRecord{m.ID: m},
		byStrategy: map[uuid.UUID][]domain.MatchRecord{strategyID: {m}},
	}
	h := NewMatchHandler(store, &fakeSimResultStore{}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/matches?strategy_id="+strategyID.String(), nil)
	rec := httptest.NewRecorder()
	h.ListMatches(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, store.filterCalls)
	require.Zero(t, store.listCalls)
	require.Equal(t, strategyID, store.gotStrategy)
}

func TestListMatchesRejectsBadStrategyID(t *testing.T) {
	h := NewMatchHandler(&fakeMatchStore{}, &fakeSimResultStore{}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/matches?strategy_id=banana", nil)
	rec := httptest.NewRecorder()
	h.ListMatches(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid strategy_id")
}

func TestListResults(t *testing.T) {
	m := storedMatch()
	sims := &fakeSimResultStore{
		results: map[uuid.UUID][]domain.SimRecord{
			m.ID: {
				{MatchID: m.ID, SimIndex: 0, Seed: 42, Strategy: "steady", Edge: decimal.RequireFromString("10"), PnL: decimal.RequireFromString("7"), Placement: 1, Fingerprint: "abc123"},
				{MatchID: m.ID, SimIndex: 0, Seed: 42, Strategy: "wild", Edge: decimal.RequireFromString("-2"), PnL: decimal.RequireFromString("-1"), Placement: 2},
			},
		},
	}
	h := NewMatchHandler(&fakeMatchStore{matches: map[uuid.UUID]domain.MatchRecord{m.ID: m}}, sims, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/matches/"+m.ID.String()+"/results", nil)
	req.SetPathValue("id", m.ID.String())
	rec := httptest.NewRecorder()
	h.ListResults(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, m.ID, resp.MatchID)
	require.Equal(t, 2, resp.Total)
	require.Equal(t, "abc123", resp.Results[0].Fingerprint)
	require.True(t, resp.Results[0].Edge.Equal(decimal.RequireFromString("10")))
}

type fakeMatchStarter struct {
	id       uuid.UUID
	err      error
	gotNames []string
}

func (f *fakeMatchStarter) StartByNames(_ context.Context, names []string) (uuid.UUID, error) {
	f.gotNames = names
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return f.id, nil
}

func TestRunMatchReturnsID(t *testing.T) {
	starter := &fakeMatchStarter{id: uuid.New()}
	h := NewMatchHandler(&fakeMatchStore{}, &fakeSimResultStore{}, nil, starter, testLogger())

	body := `{"strategies":["steady-eddie","adaptive"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/matches", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.RunMatch(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{"steady-eddie", "adaptive"}, starter.gotNames)

	var resp struct {
		MatchID uuid.UUID `json:"match_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, starter.id, resp.MatchID)
}

func TestRunMatchUnknownStrategy(t *testing.T) {
	starter := &fakeMatchStarter{err: fmt.Errorf("unknown strategy %q: %w", "nessie", domain.ErrNotFound)}
	h := NewMatchHandler(&fakeMatchStore{}, &fakeSimResultStore{}, nil, starter, testLogger())

	body := `{"strategies":["fixed","nessie"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/matches", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.RunMatch(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "nessie")
}

func TestRunMatchNeedsTwoStrategies(t *testing.T) {
	h := NewMatchHandler(&fakeMatchStore{}, &fakeSimResultStore{}, nil, &fakeMatchStarter{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/matches", strings.NewReader(`{"strategies":["solo"]}`))
	rec := httptest.NewRecorder()
	h.RunMatch(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunMatchWithoutStarter(t *testing.T) {
	h := NewMatchHandler(&fakeMatchStore{}, &fakeSimResultStore{}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/matches", strings.NewReader(`{"strategies":["a","b"]}`))
	rec := httptest.NewRecorder()
	h.RunMatch(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListEventsWithoutBus(t *testing.T) {
	h := NewMatchHandler(&fakeMatchStore{}, &fakeSimResultStore{}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	h.ListEvents(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListEventsPagesFromLastID(t *testing.T) {
	matchID := uuid.New()
	bus := &fakeMatchBus{
		entries: []domain.MatchEventEntry{
			{
				ID: "1700000000000-0",
				Event: domain.MatchEvent{
					Type:    domain.MatchEventCompleted,
					MatchID: matchID,
					Winner:  "steady",
					At:      time.Now().UTC(),
				},
			},
		},
	}
	h := NewMatchHandler(&fakeMatchStore{}, &fakeSimResultStore{}, bus, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/events?last_id=1699999999999-0&limit=10", nil)
	rec := httptest.NewRecorder()
	h.ListEvents(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1699999999999-0", bus.gotLastID)
	require.Equal(t, 10, bus.gotCount)

	var resp struct {
		Events []matchEventJSON `json:"events"`
		Total  int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	require.Equal(t, "1700000000000-0", resp.Events[0].ID)
	require.Equal(t, string(domain.MatchEventCompleted), resp.Events[0].Type)
	require.Equal(t, "steady", resp.Events[0].Winner)
}

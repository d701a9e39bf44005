package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/strategy"
)

type fakeStrategyStore struct {
	records   []domain.StrategyRecord
	insertErr error
	inserted  *domain.StrategyRecord
}

func (f *fakeStrategyStore) Insert(_ context.Context, rec domain.StrategyRecord) (domain.StrategyRecord, error) {
	if f.insertErr != nil {
		return domain.StrategyRecord{}, f.insertErr
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now().UTC()
	f.inserted = &rec
	return rec, nil
}

func (f *fakeStrategyStore) GetByID(_ context.Context, id uuid.UUID) (domain.StrategyRecord, error) {
	for _, rec := range f.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.StrategyRecord{}, domain.ErrNotFound
}

func (f *fakeStrategyStore) GetByName(_ context.Context, name string) (domain.StrategyRecord, error) {
	for _, rec := range f.records {
		if rec.Name == name {
			return rec, nil
		}
	}
	return domain.StrategyRecord{}, domain.ErrNotFound
}

func (f *fakeStrategyStore) List(_ context.Context, search string, opts domain.ListOpts) ([]domain.StrategyRecord, error) {
	var out []domain.StrategyRecord
	for _, rec := range f.records {
		if search == "" || strings.Contains(rec.Name, search) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStrategyStore) Count(context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

func newStrategyHandler(store *fakeStrategyStore) *StrategyHandler {
	return NewStrategyHandler(store, strategy.DefaultRegistry(), testLogger())
}

func TestRegisterStrategyStoresValidatedRecord(t *testing.T) {
	store := &fakeStrategyStore{}
	h := newStrategyHandler(store)

	body := `{"name":"steady-eddie","author":"alice","kind":"fixed","params":{"fee_bps":30}}`
	req := httptest.NewRequest(http.MethodPost, "/api/strategies", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.RegisterStrategy(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, store.inserted)
	require.Equal(t, "steady-eddie", store.inserted.Name)
	require.Equal(t, "fixed", store.inserted.Kind)

	var resp strategyJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "steady-eddie", resp.Name)
	require.NotEqual(t, uuid.Nil, resp.ID)
}

func TestRegisterStrategyRejectsUnknownKind(t *testing.T) {
	store := &fakeStrategyStore{}
	h := newStrategyHandler(store)

	body := `{"name":"mystery","kind":"quantum"}`
	req := httptest.NewRequest(http.MethodPost, "/api/strategies", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.RegisterStrategy(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid strategy")
	require.Nil(t, store.inserted, "invalid strategies must not reach the store")
}

func TestRegisterStrategyRequiresName(t *testing.T) {
	h := newStrategyHandler(&fakeStrategyStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/strategies", strings.NewReader(`{"kind":"fixed"}`))
	rec := httptest.NewRecorder()
	h.RegisterStrategy(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "name is required")
}

func TestRegisterStrategyDuplicateName(t *testing.T) {
	store := &fakeStrategyStore{insertErr: domain.ErrAlreadyExists}
	h := newStrategyHandler(store)

	body := `{"name":"steady-eddie","kind":"fixed"}`
	req := httptest.NewRequest(http.MethodPost, "/api/strategies", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.RegisterStrategy(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already taken")
}

func TestRegisterStrategyBadBody(t *testing.T) {
	h := newStrategyHandler(&fakeStrategyStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/strategies", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.RegisterStrategy(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStrategyNotFound(t *testing.T) {
	h := newStrategyHandler(&fakeStrategyStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/strategies/ghost", nil)
	req.SetPathValue("name", "ghost")
	rec := httptest.NewRecorder()
	h.GetStrategy(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListStrategiesEnvelope(t *testing.T) {
	store := &fakeStrategyStore{
		records: []domain.StrategyRecord{
			{ID: uuid.New(), Name: "alpha", Kind: "fixed"},
			{ID: uuid.New(), Name: "beta", Kind: "adaptive"},
		},
	}
	h := newStrategyHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/strategies?limit=10", nil)
	rec := httptest.NewRecorder()
	h.ListStrategies(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp listStrategiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Strategies, 2)
	require.EqualValues(t, 2, resp.Total)
	require.Equal(t, 10, resp.Limit)
}

func TestListKinds(t *testing.T) {
	h := newStrategyHandler(&fakeStrategyStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/strategies/kinds", nil)
	rec := httptest.NewRecorder()
	h.ListKinds(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Kinds []string `json:"kinds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Kinds, "fixed")
	require.Contains(t, resp.Kinds, "adaptive")
	require.Contains(t, resp.Kinds, "momentum")
}

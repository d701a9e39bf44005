package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

type fakeWriter struct {
	objects  map[string][]byte
	failPath string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{objects: map[string][]byte{}}
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if path == w.failPath {
		return errors.New("writer down")
	}
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(data); err != nil {
		return err
	}
	w.objects[path] = buf.Bytes()
	return nil
}

func (w *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "")
}

// fakeReader reads back what the fake writer stored. missingPath simulates a
// backend that acknowledged an upload but lost the object.
type fakeReader struct {
	w           *fakeWriter
	missingPath string
}

func (r *fakeReader) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := r.w.objects[path]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *fakeReader) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path, data := range r.w.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, domain.BlobInfo{Path: path, Size: int64(len(data))})
		}
	}
	return infos, nil
}

func (r *fakeReader) Exists(_ context.Context, path string) (bool, error) {
	if path == r.missingPath {
		return false, nil
	}
	_, ok := r.w.objects[path]
	return ok, nil
}

type fakeMatchStore struct {
	matches  []domain.MatchRecord
	parts    map[uuid.UUID][]domain.ParticipantRecord
	deleted  map[uuid.UUID]bool
	pageSize int
}

func (s *fakeMatchStore) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.MatchRecord, error) {
	if s.pageSize > 0 && limit > s.pageSize {
		limit = s.pageSize
	}
	var out []domain.MatchRecord
	for _, m := range s.matches {
		if s.deleted[m.ID] || !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeMatchStore) ListParticipants(_ context.Context, matchID uuid.UUID) ([]domain.ParticipantRecord, error) {
	return s.parts[matchID], nil
}

func (s *fakeMatchStore) Delete(_ context.Context, id uuid.UUID) error {
	if s.deleted == nil {
		s.deleted = map[uuid.UUID]bool{}
	}
	s.deleted[id] = true
	return nil
}

type fakeSimStore struct {
	results map[uuid.UUID][]domain.SimRecord
}

func (s *fakeSimStore) ListByMatch(_ context.Context, matchID uuid.UUID, _ domain.ListOpts) ([]domain.SimRecord, error) {
	return s.results[matchID], nil
}

func storedMatch(age time.Duration) domain.MatchRecord {
	return domain.MatchRecord{
		ID:            uuid.New(),
		NParticipants: 2,
		NSimulations:  100,
		BaseSeed:      42,
		CreatedAt:     time.Now().Add(-age),
	}
}

func TestArchiverExportsAndPrunes(t *testing.T) {
	old1 := storedMatch(48 * time.Hour)
	old2 := storedMatch(30 * time.Hour)
	recent := storedMatch(time.Hour)

	store := &fakeMatchStore{
		matches: []domain.MatchRecord{old1, old2, recent},
		parts: map[uuid.UUID][]domain.ParticipantRecord{
			old1.ID: {
				{MatchID: old1.ID, StrategyID: uuid.New(), Strategy: "steady", Placement: 1, Wins: 60, Points: 3, AvgEdge: decimal.RequireFromString("12.5"), TotalEdge: decimal.RequireFromString("1250")},
				{MatchID: old1.ID, StrategyID: uuid.New(), Strategy: "wild", Placement: 2, Wins: 40, Points: 2, AvgEdge: decimal.RequireFromString("-3.25"), TotalEdge: decimal.RequireFromString("-325")},
			},
		},
		// One result per call exercises the batch loop.
		pageSize: 1,
	}
	sims := &fakeSimStore{
		results: map[uuid.UUID][]domain.SimRecord{
			old1.ID: {
				{MatchID: old1.ID, SimIndex: 0, Seed: 42, Strategy: "steady", Edge: decimal.RequireFromString("10"), PnL: decimal.RequireFromString("7"), Placement: 1, Fingerprint: "abc123"},
			},
		},
	}
	writer := newFakeWriter()

	arch := NewArchiver(writer, &fakeReader{w: writer}, store, sims, "cold", nil)
	count, err := arch.ArchiveBefore(context.Background(), time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.True(t, store.deleted[old1.ID])
	require.True(t, store.deleted[old2.ID])
	require.False(t, store.deleted[recent.ID])

	data, ok := writer.objects[fmt.Sprintf("cold/matches/%s.json", old1.ID)]
	require.True(t, ok)

	var export matchExport
	require.NoError(t, json.Unmarshal(data, &export))
	require.Equal(t, old1.ID, export.ID)
	require.Equal(t, int64(42), export.BaseSeed)
	require.Len(t, export.Participants, 2)
	require.Equal(t, "steady", export.Participants[0].Strategy)
	require.True(t, export.Participants[0].AvgEdge.Equal(decimal.RequireFromString("12.5")))
	require.Len(t, export.SimResults, 1)
	require.Equal(t, "abc123", export.SimResults[0].Fingerprint)

	_, ok = writer.objects[fmt.Sprintf("cold/matches/%s.json", recent.ID)]
	require.False(t, ok)
}

func TestArchiverKeepsRowsWhenUploadFails(t *testing.T) {
	old1 := storedMatch(48 * time.Hour)
	old2 := storedMatch(30 * time.Hour)

	store := &fakeMatchStore{
		matches:  []domain.MatchRecord{old1, old2},
		parts:    map[uuid.UUID][]domain.ParticipantRecord{},
		pageSize: 1,
	}
	writer := newFakeWriter()
	writer.failPath = fmt.Sprintf("cold/matches/%s.json", old2.ID)

	arch := NewArchiver(writer, &fakeReader{w: writer}, store, &fakeSimStore{}, "cold", nil)
	count, err := arch.ArchiveBefore(context.Background(), time.Now().Add(-2*time.Hour))
	require.Error(t, err)
	require.Contains(t, err.Error(), "upload")
	require.Equal(t, int64(1), count)

	require.True(t, store.deleted[old1.ID])
	require.False(t, store.deleted[old2.ID])
}

func TestArchiverKeepsRowsWhenVerificationFails(t *testing.T) {
	old := storedMatch(24 * time.Hour)
	store := &fakeMatchStore{
		matches: []domain.MatchRecord{old},
		parts:   map[uuid.UUID][]domain.ParticipantRecord{},
	}
	writer := newFakeWriter()
	reader := &fakeReader{w: writer, missingPath: fmt.Sprintf("cold/matches/%s.json", old.ID)}

	arch := NewArchiver(writer, reader, store, &fakeSimStore{}, "cold", nil)
	count, err := arch.ArchiveBefore(context.Background(), time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "verify")
	require.Zero(t, count)
	require.False(t, store.deleted[old.ID])
}

func TestArchiverDefaultsPrefix(t *testing.T) {
	old := storedMatch(24 * time.Hour)
	store := &fakeMatchStore{
		matches: []domain.MatchRecord{old},
		parts:   map[uuid.UUID][]domain.ParticipantRecord{},
	}
	writer := newFakeWriter()

	arch := NewArchiver(writer, &fakeReader{w: writer}, store, &fakeSimStore{}, "", nil)
	count, err := arch.ArchiveBefore(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	_, ok := writer.objects[fmt.Sprintf("archive/matches/%s.json", old.ID)]
	require.True(t, ok)
}

package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// archiveBatchSize bounds how many matches one query pulls; the archiver
// loops until the cutoff is exhausted.
const archiveBatchSize = 100

// multipartThreshold is the export size above which the archiver switches to
// multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// Narrow store interfaces covering only what the archiver calls. The
// Postgres stores satisfy them implicitly.

// MatchArchiveStore provides match access for archival.
type MatchArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.MatchRecord, error)
	ListParticipants(ctx context.Context, matchID uuid.UUID) ([]domain.ParticipantRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SimResultArchiveStore provides simulation result access for archival.
type SimResultArchiveStore interface {
	ListByMatch(ctx context.Context, matchID uuid.UUID, opts domain.ListOpts) ([]domain.SimRecord, error)
}

// Archiver implements domain.Archiver: it exports matches older than a
// cutoff to object storage as one JSON document per match, then deletes the
// database rows. A match is deleted only after its export has uploaded and
// been confirmed present, so a failed or lost upload leaves the rows in
// place for the next run.
type Archiver struct {
	writer  domain.BlobWriter
	reader  domain.BlobReader
	matches MatchArchiveStore
	sims    SimResultArchiveStore
	prefix  string
	logger  *slog.Logger
}

// NewArchiver creates an Archiver writing under the given key prefix.
// A nil reader skips the post-upload existence check; a nil logger falls
// back to slog.Default().
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, matches MatchArchiveStore, sims SimResultArchiveStore, prefix string, logger *slog.Logger) *Archiver {
	if prefix == "" {
		prefix = "archive"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		writer:  writer,
		reader:  reader,
		matches: matches,
		sims:    sims,
		prefix:  prefix,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// matchExport is the stored JSON shape of an archived match. Kept separate
// from the domain records so the archive format stays stable.
type matchExport struct {
	ID            uuid.UUID           `json:"id"`
	NParticipants int                 `json:"n_participants"`
	NSimulations  int                 `json:"n_simulations"`
	BaseSeed      int64               `json:"base_seed"`
	CreatedAt     time.Time           `json:"created_at"`
	Participants  []participantExport `json:"participants"`
	SimResults    []simResultExport   `json:"sim_results,omitempty"`
}

type participantExport struct {
	StrategyID uuid.UUID       `json:"strategy_id"`
	Strategy   string          `json:"strategy"`
	Placement  int             `json:"placement"`
	Wins       int             `json:"wins"`
	Points     int             `json:"points"`
	AvgEdge    decimal.Decimal `json:"avg_edge"`
	TotalEdge  decimal.Decimal `json:"total_edge"`
}

type simResultExport struct {
	SimIndex    int             `json:"sim_index"`
	Seed        int64           `json:"seed"`
	Strategy    string          `json:"strategy"`
	Edge        decimal.Decimal `json:"edge"`
	PnL         decimal.Decimal `json:"pnl"`
	Placement   int             `json:"placement"`
	Fingerprint string          `json:"fingerprint,omitempty"`
}

// ArchiveBefore exports and prunes all matches created strictly before the
// cutoff. It returns the number of matches archived.
func (a *Archiver) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var archived int64

	for {
		batch, err := a.matches.ListBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			return archived, fmt.Errorf("s3blob: archive query: %w", err)
		}
		if len(batch) == 0 {
			return archived, nil
		}

		for _, m := range batch {
			if err := a.archiveMatch(ctx, m); err != nil {
				return archived, err
			}
			archived++
		}
	}
}

func (a *Archiver) archiveMatch(ctx context.Context, m domain.MatchRecord) error {
	parts, err := a.matches.ListParticipants(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("s3blob: archive match %s participants: %w", m.ID, err)
	}

	sims, err := a.sims.ListByMatch(ctx, m.ID, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("s3blob: archive match %s sim results: %w", m.ID, err)
	}

	export := matchExport{
		ID:            m.ID,
		NParticipants: m.NParticipants,
		NSimulations:  m.NSimulations,
		BaseSeed:      m.BaseSeed,
		CreatedAt:     m.CreatedAt,
	}
	for _, p := range parts {
		export.Participants = append(export.Participants, participantExport{
			StrategyID: p.StrategyID,
			Strategy:   p.Strategy,
			Placement:  p.Placement,
			Wins:       p.Wins,
			Points:     p.Points,
			AvgEdge:    p.AvgEdge,
			TotalEdge:  p.TotalEdge,
		})
	}
	for _, r := range sims {
		export.SimResults = append(export.SimResults, simResultExport{
			SimIndex:    r.SimIndex,
			Seed:        r.Seed,
			Strategy:    r.Strategy,
			Edge:        r.Edge,
			PnL:         r.PnL,
			Placement:   r.Placement,
			Fingerprint: r.Fingerprint,
		})
	}

	data, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("s3blob: archive match %s marshal: %w", m.ID, err)
	}

	path := a.matchPath(m.ID)
	if len(data) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(data), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(data), "application/json")
	}
	if err != nil {
		return fmt.Errorf("s3blob: archive match %s upload: %w", m.ID, err)
	}

	if a.reader != nil {
		ok, err := a.reader.Exists(ctx, path)
		if err != nil {
			return fmt.Errorf("s3blob: archive match %s verify: %w", m.ID, err)
		}
		if !ok {
			return fmt.Errorf("s3blob: archive match %s verify: object %s missing after upload", m.ID, path)
		}
	}

	if err := a.matches.Delete(ctx, m.ID); err != nil {
		return fmt.Errorf("s3blob: archive match %s prune: %w", m.ID, err)
	}

	a.logger.Info("match archived",
		slog.String("match_id", m.ID.String()),
		slog.String("path", path),
		slog.Int("participants", len(parts)),
		slog.Int("sim_results", len(sims)))

	return nil
}

// matchPath builds the S3 key for an archived match.
//
//	<prefix>/matches/<id>.json
func (a *Archiver) matchPath(id uuid.UUID) string {
	return fmt.Sprintf("%s/matches/%s.json", a.prefix, id)
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)

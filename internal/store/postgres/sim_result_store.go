package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// SimResultStore implements domain.SimResultStore using PostgreSQL.
type SimResultStore struct {
	pool *pgxpool.Pool
}

// NewSimResultStore creates a new SimResultStore backed by the given
// connection pool.
func NewSimResultStore(pool *pgxpool.Pool) *SimResultStore {
	return &SimResultStore{pool: pool}
}

const simResultSelectCols = `id, match_id, sim_index, seed, strategy_name,
	edge, pnl, placement, fingerprint, created_at`

func scanSimResultRows(rows pgx.Rows) ([]domain.SimRecord, error) {
	var recs []domain.SimRecord
	for rows.Next() {
		var r domain.SimRecord
		if err := rows.Scan(
			&r.ID, &r.MatchID, &r.SimIndex, &r.Seed, &r.Strategy,
			&r.Edge, &r.PnL, &r.Placement, &r.Fingerprint, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// InsertBatch inserts simulation results efficiently using pgx Batch.
// Re-runs of an already stored simulation (same match, index, and strategy)
// are silently skipped via ON CONFLICT DO NOTHING.
func (s *SimResultStore) InsertBatch(ctx context.Context, results []domain.SimRecord) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO simulation_results (
			match_id, sim_index, seed, strategy_name,
			edge, pnl, placement, fingerprint
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		) ON CONFLICT (match_id, sim_index, strategy_name) DO NOTHING`

	for _, r := range results {
		batch.Queue(query,
			r.MatchID, r.SimIndex, r.Seed, r.Strategy,
			r.Edge, r.PnL, r.Placement, r.Fingerprint,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert sim result batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByMatch returns a match's simulation results ordered by simulation
// index, then placement within each simulation.
func (s *SimResultStore) ListByMatch(ctx context.Context, matchID uuid.UUID, opts domain.ListOpts) ([]domain.SimRecord, error) {
	query := `SELECT ` + simResultSelectCols + ` FROM simulation_results WHERE match_id = $1`
	args := []any{matchID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY sim_index, placement"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sim results: %w", err)
	}
	defer rows.Close()

	recs, err := scanSimResultRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan sim results: %w", err)
	}
	return recs, nil
}

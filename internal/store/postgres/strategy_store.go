package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// StrategyStore implements domain.StrategyStore using PostgreSQL.
type StrategyStore struct {
	pool *pgxpool.Pool
}

// NewStrategyStore creates a new StrategyStore backed by the given connection
// pool.
func NewStrategyStore(pool *pgxpool.Pool) *StrategyStore {
	return &StrategyStore{pool: pool}
}

const strategySelectCols = `id, name, author, kind, params, description, created_at`

func scanStrategy(row pgx.Row) (domain.StrategyRecord, error) {
	var rec domain.StrategyRecord
	var params []byte
	if err := row.Scan(
		&rec.ID, &rec.Name, &rec.Author, &rec.Kind,
		&params, &rec.Description, &rec.CreatedAt,
	); err != nil {
		return domain.StrategyRecord{}, err
	}
	if params != nil {
		if err := json.Unmarshal(params, &rec.Params); err != nil {
			return domain.StrategyRecord{}, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	return rec, nil
}

// Insert registers a new strategy and returns the stored record with its
// generated id and timestamp. A name collision yields domain.ErrAlreadyExists.
func (s *StrategyStore) Insert(ctx context.Context, rec domain.StrategyRecord) (domain.StrategyRecord, error) {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return domain.StrategyRecord{}, fmt.Errorf("postgres: marshal strategy params %s: %w", rec.Name, err)
	}

	const query = `
		INSERT INTO strategies (name, author, kind, params, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	stored := rec
	err = s.pool.QueryRow(ctx, query,
		rec.Name, rec.Author, rec.Kind, params, rec.Description,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.StrategyRecord{}, fmt.Errorf("postgres: insert strategy %s: %w", rec.Name, domain.ErrAlreadyExists)
		}
		return domain.StrategyRecord{}, fmt.Errorf("postgres: insert strategy %s: %w", rec.Name, err)
	}
	return stored, nil
}

// GetByID retrieves a strategy by its id.
func (s *StrategyStore) GetByID(ctx context.Context, id uuid.UUID) (domain.StrategyRecord, error) {
	query := `SELECT ` + strategySelectCols + ` FROM strategies WHERE id = $1`
	rec, err := scanStrategy(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StrategyRecord{}, domain.ErrNotFound
		}
		return domain.StrategyRecord{}, fmt.Errorf("postgres: get strategy %s: %w", id, err)
	}
	return rec, nil
}

// GetByName retrieves a strategy by its unique name.
func (s *StrategyStore) GetByName(ctx context.Context, name string) (domain.StrategyRecord, error) {
	query := `SELECT ` + strategySelectCols + ` FROM strategies WHERE name = $1`
	rec, err := scanStrategy(s.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StrategyRecord{}, domain.ErrNotFound
		}
		return domain.StrategyRecord{}, fmt.Errorf("postgres: get strategy %q: %w", name, err)
	}
	return rec, nil
}

// List returns strategies ordered by name, optionally filtered by a search
// term matched against name, author, and description.
func (s *StrategyStore) List(ctx context.Context, search string, opts domain.ListOpts) ([]domain.StrategyRecord, error) {
	query := `SELECT ` + strategySelectCols + ` FROM strategies WHERE 1=1`
	args := []any{}
	argIdx := 1

	if search != "" {
		query += fmt.Sprintf(" AND (name ILIKE $%d OR author ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx, argIdx)
		args = append(args, "%"+search+"%")
		argIdx++
	}

	query += " ORDER BY name"

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
		return nil, fmt.Errorf("postgres: list strategies: %w", err)
	}
	defer rows.Close()

	var recs []domain.StrategyRecord
	for rows.Next() {
		rec, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan strategy: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list strategies rows: %w", err)
	}
	return recs, nil
}

// Count returns the number of registered strategies.
func (s *StrategyStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM strategies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count strategies: %w", err)
	}
	return n, nil
}

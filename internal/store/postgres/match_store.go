package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/ammarena/internal/competition"
	"github.com/alanyoungcy/ammarena/internal/domain"
)

// MatchStore implements domain.MatchStore using PostgreSQL.
type MatchStore struct {
	pool *pgxpool.Pool
}

// NewMatchStore creates a new MatchStore backed by the given connection pool.
func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

const matchSelectCols = `id, n_participants, n_simulations, base_seed, created_at`

func scanMatchRows(rows pgx.Rows) ([]domain.MatchRecord, error) {
	var recs []domain.MatchRecord
	for rows.Next() {
		var m domain.MatchRecord
		if err := rows.Scan(&m.ID, &m.NParticipants, &m.NSimulations, &m.BaseSeed, &m.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, m)
	}
	return recs, rows.Err()
}

// InsertMatch writes a finished match and its participant standings in one
// transaction.
func (s *MatchStore) InsertMatch(ctx context.Context, m domain.MatchRecord, parts []domain.ParticipantRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO matches (id, n_participants, n_simulations, base_seed, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.NParticipants, m.NSimulations, m.BaseSeed, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert match: %w", err)
	}

	for _, p := range parts {
		_, err = tx.Exec(ctx, `
			INSERT INTO match_participants (match_id, strategy_id, name, placement, wins, points, avg_edge, total_edge)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			m.ID, p.StrategyID, p.Strategy, p.Placement, p.Wins, p.Points, p.AvgEdge, p.TotalEdge,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert match participant %s: %w", p.Strategy, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a match header by id.
func (s *MatchStore) GetByID(ctx context.Context, id uuid.UUID) (domain.MatchRecord, error) {
	var m domain.MatchRecord
	err := s.pool.QueryRow(ctx,
		`SELECT `+matchSelectCols+` FROM matches WHERE id = $1`, id,
	).Scan(&m.ID, &m.NParticipants, &m.NSimulations, &m.BaseSeed, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MatchRecord{}, domain.ErrNotFound
		}
		return domain.MatchRecord{}, fmt.Errorf("postgres: get match %s: %w", id, err)
	}
	return m, nil
}

// List returns matches newest first, with pagination and optional time
// filtering.
func (s *MatchStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.MatchRecord, error) {
	query := `SELECT ` + matchSelectCols + ` FROM matches WHERE 1=1`
	args := []any{}
	argIdx := 1

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

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("postgres: list matches: %w", err)
	}
	defer rows.Close()

	recs, err := scanMatchRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan matches: %w", err)
	}
	return recs, nil
}

// ListByStrategy returns matches a strategy took part in, newest first.
func (s *MatchStore) ListByStrategy(ctx context.Context, strategyID uuid.UUID, opts domain.ListOpts) ([]domain.MatchRecord, error) {
	query := `
		SELECT m.id, m.n_participants, m.n_simulations, m.base_seed, m.created_at
		FROM matches m
		JOIN match_participants p ON p.match_id = m.id
		WHERE p.strategy_id = $1`
	args := []any{strategyID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND m.created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND m.created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY m.created_at DESC"

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
		return nil, fmt.Errorf("postgres: list matches by strategy: %w", err)
	}
	defer rows.Close()

	recs, err := scanMatchRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan matches by strategy: %w", err)
	}
	return recs, nil
}

// ListParticipants returns a match's standings ordered by placement.
func (s *MatchStore) ListParticipants(ctx context.Context, matchID uuid.UUID) ([]domain.ParticipantRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT match_id, strategy_id, name, placement, wins, points, avg_edge, total_edge
		FROM match_participants
		WHERE match_id = $1
		ORDER BY placement`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list match participants: %w", err)
	}
	defer rows.Close()

	var recs []domain.ParticipantRecord
	for rows.Next() {
		var p domain.ParticipantRecord
		if err := rows.Scan(
			&p.MatchID, &p.StrategyID, &p.Strategy,
			&p.Placement, &p.Wins, &p.Points, &p.AvgEdge, &p.TotalEdge,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan match participant: %w", err)
		}
		recs = append(recs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list match participants rows: %w", err)
	}
	return recs, nil
}

// ListBefore returns matches created strictly before the given time, oldest
// first (for archiving).
func (s *MatchStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.MatchRecord, error) {
	query := `SELECT ` + matchSelectCols + ` FROM matches WHERE created_at < $1 ORDER BY created_at ASC`
	args := []any{before}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list matches before: %w", err)
	}
	defer rows.Close()

	recs, err := scanMatchRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan matches before: %w", err)
	}
	return recs, nil
}

// Delete removes a match; participants and simulation results cascade.
func (s *MatchStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete match %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the number of stored matches.
func (s *MatchStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count matches: %w", err)
	}
	return n, nil
}

// Leaderboard aggregates standings across all stored matches. First place in
// a match counts as a win even when shared; shared firsts also count as
// draws. Placements below fourth are clamped to 4 for the average, matching
// the scoring where everything past the podium is just a loss.
func (s *MatchStore) Leaderboard(ctx context.Context, sort domain.LeaderboardSort, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			p.name,
			COUNT(*) AS matches,
			COUNT(*) FILTER (WHERE p.placement = 1) AS wins,
			COUNT(*) FILTER (WHERE p.placement = 1 AND EXISTS (
				SELECT 1 FROM match_participants o
				WHERE o.match_id = p.match_id
				  AND o.strategy_id <> p.strategy_id
				  AND o.placement = 1
			)) AS draws,
			COALESCE(AVG(p.avg_edge), 0) AS avg_edge,
			COALESCE(SUM(p.points), 0) AS points,
			COALESCE(AVG(LEAST(p.placement, 4)), 0) AS avg_placement
		FROM match_participants p
		GROUP BY p.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		var matches, wins, draws, points int64
		if err := rows.Scan(&e.Strategy, &matches, &wins, &draws, &e.AvgEdge, &points, &e.AvgPlacement); err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard row: %w", err)
		}
		e.Matches = int(matches)
		e.Wins = int(wins)
		e.Draws = int(draws)
		e.Points = int(points)
		if e.Matches > 0 {
			e.WinRate = float64(e.Wins) / float64(e.Matches)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: leaderboard rows: %w", err)
	}

	competition.SortLeaderboard(entries, sort)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

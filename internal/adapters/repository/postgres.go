package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// Pool settings.
const (
	pgMaxOpenConns    = 10
	pgMaxIdleConns    = 10
	pgConnMaxLifetime = 30 * time.Minute
)

var schemaStatements = []string{ //nolint:gochecknoglobals // fixed DDL
	`
	CREATE TABLE IF NOT EXISTS compression_results (
		trajectory_id TEXT PRIMARY KEY,
		job_id        TEXT NOT NULL,
		tolerance     DOUBLE PRECISION NOT NULL,
		original      INTEGER NOT NULL,
		points        JSONB NOT NULL,
		rate          DOUBLE PRECISION NOT NULL,
		completed_at  TIMESTAMPTZ NOT NULL
	);
	`,
	`
	CREATE INDEX IF NOT EXISTS idx_compression_results_completed
	ON compression_results (completed_at DESC);
	`,
}

// PostgresStore keeps results in PostgreSQL. Retained points are stored as
// a JSONB array.
type PostgresStore struct {
	DB *sql.DB
}

// OpenPostgres connects to databaseURL, verifies the connection and ensures
// the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, ErrMissingDSN
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(pgMaxOpenConns)
	db.SetMaxIdleConns(pgMaxIdleConns)
	db.SetConnMaxLifetime(pgConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open postgres: verify connection: %w", err)
	}

	s := NewPostgresStore(db)
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an already opened database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// InitSchema creates the results table when missing.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if s.DB == nil {
		return errors.New("init schema: db is nil")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}
	return nil
}

// Save upserts r.
func (s *PostgresStore) Save(ctx context.Context, r Result) error {
	if r.TrajectoryID == "" {
		return ErrInvalidID
	}
	start := time.Now()
	defer observe("save", start)

	points, err := json.Marshal(r.Points)
	if err != nil {
		return fmt.Errorf("save result: encode points: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO compression_results (trajectory_id, job_id, tolerance, original, points, rate, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (trajectory_id) DO UPDATE
	SET job_id = EXCLUDED.job_id,
		tolerance = EXCLUDED.tolerance,
		original = EXCLUDED.original,
		points = EXCLUDED.points,
		rate = EXCLUDED.rate,
		completed_at = EXCLUDED.completed_at;
	`, r.TrajectoryID, r.JobID, r.Tolerance, r.Original, points, r.Rate, r.Completed)
	if err != nil {
		return fmt.Errorf("save result trajectory=%q: %w", r.TrajectoryID, err)
	}
	return nil
}

// Get returns the result for trajectoryID.
func (s *PostgresStore) Get(ctx context.Context, trajectoryID string) (Result, error) {
	start := time.Now()
	defer observe("get", start)

	row := s.DB.QueryRowContext(ctx, `
	SELECT trajectory_id, job_id, tolerance, original, points, rate, completed_at
	FROM compression_results
	WHERE trajectory_id = $1;
	`, trajectoryID)

	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("get result trajectory=%q: %w", trajectoryID, err)
	}
	return r, nil
}

// List returns up to limit results, most recently completed first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Result, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer observe("list", start)

	rows, err := s.DB.QueryContext(ctx, `
	SELECT trajectory_id, job_id, tolerance, original, points, rate, completed_at
	FROM compression_results
	ORDER BY completed_at DESC
	LIMIT $1;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: query: %w", err)
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("list results: scan rows: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results: row iteration: %w", err)
	}
	return out, nil
}

// Delete removes the result for trajectoryID.
func (s *PostgresStore) Delete(ctx context.Context, trajectoryID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM compression_results WHERE trajectory_id = $1;`, trajectoryID)
	if err != nil {
		return fmt.Errorf("delete result trajectory=%q: %w", trajectoryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete result trajectory=%q: rows affected: %w", trajectoryID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored results, or 0 if the query fails.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT count(*) FROM compression_results;`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close closes the database.
func (s *PostgresStore) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (Result, error) {
	var (
		r      Result
		points []byte
	)
	if err := sc.Scan(&r.TrajectoryID, &r.JobID, &r.Tolerance, &r.Original, &points, &r.Rate, &r.Completed); err != nil {
		return Result{}, err
	}
	if err := json.Unmarshal(points, &r.Points); err != nil {
		return Result{}, fmt.Errorf("decode points: %w", err)
	}
	return r, nil
}

package pulsar

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS workflow_runs (
	id            TEXT PRIMARY KEY,
	workflow_name TEXT NOT NULL,
	success       BOOLEAN NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	step_count    INTEGER NOT NULL,
	final_state   JSONB,
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS workflow_runs_started_at_idx
	ON workflow_runs (started_at DESC);
`

// PostgresRunStore persists run records in a workflow_runs table.
type PostgresRunStore struct {
	db *sql.DB
}

// NewPostgresRunStore opens a connection with the given DSN and creates the
// schema if needed.
func NewPostgresRunStore(ctx context.Context, dsn string) (*PostgresRunStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := &PostgresRunStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresRunStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, runsSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *PostgresRunStore) Close() error {
	return s.db.Close()
}

func (s *PostgresRunStore) Save(ctx context.Context, record *RunRecord) error {
	state, err := json.Marshal(record.FinalState)
	if err != nil {
		return fmt.Errorf("failed to marshal final state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_runs
			(id, workflow_name, success, error, step_count, final_state,
			 started_at, completed_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			success = EXCLUDED.success,
			error = EXCLUDED.error,
			step_count = EXCLUDED.step_count,
			final_state = EXCLUDED.final_state,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms`,
		record.ID, record.WorkflowName, record.Success, record.Error,
		record.StepCount, state, record.StartedAt, record.CompletedAt,
		record.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}
	return nil
}

func (s *PostgresRunStore) Get(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_name, success, error, step_count, final_state,
		       started_at, completed_at, duration_ms
		FROM workflow_runs WHERE id = $1`, id)
	record, err := scanRunRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

func (s *PostgresRunStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM workflow_runs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete run record: %w", err)
	}
	return nil
}

func (s *PostgresRunStore) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `
		SELECT id, workflow_name, success, error, step_count, final_state,
		       started_at, completed_at, duration_ms
		FROM workflow_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		record, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRecord(row rowScanner) (*RunRecord, error) {
	var record RunRecord
	var state []byte
	var durationMs int64
	err := row.Scan(&record.ID, &record.WorkflowName, &record.Success,
		&record.Error, &record.StepCount, &state,
		&record.StartedAt, &record.CompletedAt, &durationMs)
	if err != nil {
		return nil, err
	}
	if len(state) > 0 {
		if err := json.Unmarshal(state, &record.FinalState); err != nil {
			return nil, fmt.Errorf("failed to unmarshal final state: %w", err)
		}
	}
	record.Duration = time.Duration(durationMs) * time.Millisecond
	return &record, nil
}

// Package history persists task execution traces to PostgreSQL. Persistence
// is strictly diagnostic: the engine never reads records back, and a disabled
// store (no database URL configured) is a supported steady state.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// ErrNotFound is returned when no record exists for the requested task.
var ErrNotFound = errors.New("task record not found")

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store provides the PostgreSQL task history implementation.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("history")}, nil
}

// EnsureSchema creates the task history table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS task_history (
            task_id     TEXT PRIMARY KEY,
            text        TEXT NOT NULL,
            mode        TEXT NOT NULL,
            success     BOOLEAN NOT NULL,
            summary     TEXT NOT NULL,
            outcomes    JSONB NOT NULL DEFAULT '[]',
            started_at  TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL
        );`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure task_history schema: %w", err)
	}
	return nil
}

// SaveRecord inserts one execution trace.
func (s *Store) SaveRecord(ctx context.Context, rec schemas.TaskRecord) error {
	outcomes, err := json.Marshal(rec.Outcomes)
	if err != nil {
		return fmt.Errorf("failed to marshal outcomes: %w", err)
	}
	if len(outcomes) == 0 || string(outcomes) == "null" {
		outcomes = json.RawMessage("[]")
	}

	const query = `
        INSERT INTO task_history (task_id, text, mode, success, summary, outcomes, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	_, err = s.pool.Exec(ctx, query,
		rec.TaskID, rec.Text, rec.Mode, rec.Success, rec.Summary,
		outcomes, rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task record: %w", err)
	}

	s.log.Debug("task record persisted", zap.String("task_id", rec.TaskID))
	return nil
}

// GetRecord fetches one execution trace by task ID.
func (s *Store) GetRecord(ctx context.Context, taskID string) (schemas.TaskRecord, error) {
	const query = `
        SELECT task_id, text, mode, success, summary, outcomes, started_at, finished_at
        FROM task_history
        WHERE task_id = $1;`

	var (
		rec      schemas.TaskRecord
		outcomes []byte
	)
	err := s.pool.QueryRow(ctx, query, taskID).Scan(
		&rec.TaskID, &rec.Text, &rec.Mode, &rec.Success, &rec.Summary,
		&outcomes, &rec.StartedAt, &rec.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.TaskRecord{}, ErrNotFound
	}
	if err != nil {
		return schemas.TaskRecord{}, fmt.Errorf("failed to query task record: %w", err)
	}
	if err := json.Unmarshal(outcomes, &rec.Outcomes); err != nil {
		return schemas.TaskRecord{}, fmt.Errorf("failed to unmarshal outcomes: %w", err)
	}
	return rec, nil
}

// ListRecords returns the most recent execution traces, newest first.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]schemas.TaskRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT task_id, text, mode, success, summary, outcomes, started_at, finished_at
        FROM task_history
        ORDER BY started_at DESC
        LIMIT $1;`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query task history: %w", err)
	}
	defer rows.Close()

	var records []schemas.TaskRecord
	for rows.Next() {
		var (
			rec      schemas.TaskRecord
			outcomes []byte
		)
		if err := rows.Scan(
			&rec.TaskID, &rec.Text, &rec.Mode, &rec.Success, &rec.Summary,
			&outcomes, &rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task record row: %w", err)
		}
		if err := json.Unmarshal(outcomes, &rec.Outcomes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outcomes: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

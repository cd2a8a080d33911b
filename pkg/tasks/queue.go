package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sleads/portal/pkg/observability"
)

// DefaultMaxAttempts bounds retries before a task is dead-lettered
const DefaultMaxAttempts = 5

// PostgresQueue is a Postgres-backed deferred task queue
type PostgresQueue struct {
	db          *sql.DB
	maxAttempts int
	metrics     *observability.Metrics
}

// NewPostgresQueue creates a new queue. metrics may be nil.
func NewPostgresQueue(db *sql.DB, metrics *observability.Metrics) *PostgresQueue {
	return &PostgresQueue{db: db, maxAttempts: DefaultMaxAttempts, metrics: metrics}
}

// Enqueue schedules a task to run no earlier than runAfter from now
func (q *PostgresQueue) Enqueue(ctx context.Context, kind string, payload interface{}, runAfter time.Duration) (int64, error) {
	if kind == "" {
		return 0, fmt.Errorf("task kind is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	query := `
		INSERT INTO tasks (kind, payload, status, attempts, max_attempts, run_after)
		VALUES ($1, $2, 'pending', 0, $3, $4)
		RETURNING id
	`
	var id int64
	err = q.db.QueryRowContext(ctx, query, kind, raw, q.maxAttempts, time.Now().Add(runAfter)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue task: %w", err)
	}

	if q.metrics != nil {
		q.metrics.TasksEnqueuedTotal.WithLabelValues(kind).Inc()
	}
	return id, nil
}

// claimDue atomically claims up to limit due tasks for this worker.
// SKIP LOCKED lets concurrent workers claim disjoint sets.
func (q *PostgresQueue) claimDue(ctx context.Context, limit int) ([]*Task, error) {
	query := `
		UPDATE tasks SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = 'pending' AND run_after <= NOW()
			ORDER BY run_after ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, status, attempts, max_attempts, run_after, COALESCE(last_error, ''), created_at, updated_at
	`
	rows, err := q.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim tasks: %w", err)
	}
	defer rows.Close()

	var claimed []*Task
	for rows.Next() {
		task := &Task{}
		err := rows.Scan(&task.ID, &task.Kind, &task.Payload, &task.Status, &task.Attempts,
			&task.MaxAttempts, &task.RunAfter, &task.LastError, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		claimed = append(claimed, task)
	}
	return claimed, nil
}

func (q *PostgresQueue) complete(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'completed', last_error = NULL, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return nil
}

func (q *PostgresQueue) reschedule(ctx context.Context, id int64, runAfter time.Time, lastError string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'pending', run_after = $1, last_error = $2, updated_at = NOW() WHERE id = $3`,
		runAfter, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to reschedule task: %w", err)
	}
	return nil
}

func (q *PostgresQueue) deadLetter(ctx context.Context, id int64, lastError string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'dead_letter', last_error = $1, updated_at = NOW() WHERE id = $2`,
		lastError, id)
	if err != nil {
		return fmt.Errorf("failed to dead-letter task: %w", err)
	}
	return nil
}

// SweepStuck returns tasks stuck in processing longer than maxAge back to
// pending. A worker that crashed mid-task leaves its claim behind; the
// cron sweep makes such tasks runnable again.
func (q *PostgresQueue) SweepStuck(ctx context.Context, maxAge time.Duration) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'pending', updated_at = NOW() WHERE status = 'processing' AND updated_at < $1`,
		time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stuck tasks: %w", err)
	}
	swept, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return swept, nil
}

// GetTask retrieves a task by ID
func (q *PostgresQueue) GetTask(id int64) (*Task, error) {
	query := `
		SELECT id, kind, payload, status, attempts, max_attempts, run_after, COALESCE(last_error, ''), created_at, updated_at
		FROM tasks WHERE id = $1
	`
	task := &Task{}
	err := q.db.QueryRow(query, id).Scan(&task.ID, &task.Kind, &task.Payload, &task.Status,
		&task.Attempts, &task.MaxAttempts, &task.RunAfter, &task.LastError, &task.CreatedAt, &task.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

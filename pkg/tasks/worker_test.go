package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskColumns() []string {
	return []string{"id", "kind", "payload", "status", "attempts", "max_attempts",
		"run_after", "last_error", "created_at", "updated_at"}
}

func claimedRow(id int64, kind string, attempts int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(taskColumns()).
		AddRow(id, kind, []byte(`{}`), "processing", attempts, DefaultMaxAttempts, now, "", now, now)
}

func TestWorkerCompletesSuccessfulTask(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	worker := NewWorker(NewPostgresQueue(db, nil), nil, nil)

	var ran bool
	worker.Register("send_email", func(ctx context.Context, payload json.RawMessage) error {
		ran = true
		return nil
	})

	mock.ExpectQuery(`UPDATE tasks SET status = 'processing'`).
		WillReturnRows(claimedRow(1, "send_email", 1))
	mock.ExpectExec(`UPDATE tasks SET status = 'completed'`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	worker.processDue(context.Background())

	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerReschedulesFailedTask(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	worker := NewWorker(NewPostgresQueue(db, nil), nil, nil)
	worker.Register("send_email", func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("smtp down")
	})

	mock.ExpectQuery(`UPDATE tasks SET status = 'processing'`).
		WillReturnRows(claimedRow(1, "send_email", 1))
	mock.ExpectExec(`UPDATE tasks SET status = 'pending'`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	worker.processDue(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerDeadLettersExhaustedTask(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	worker := NewWorker(NewPostgresQueue(db, nil), nil, nil)
	worker.Register("send_email", func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("smtp down")
	})

	mock.ExpectQuery(`UPDATE tasks SET status = 'processing'`).
		WillReturnRows(claimedRow(1, "send_email", DefaultMaxAttempts))
	mock.ExpectExec(`UPDATE tasks SET status = 'dead_letter'`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	worker.processDue(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerUnknownKindRetries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	worker := NewWorker(NewPostgresQueue(db, nil), nil, nil)

	mock.ExpectQuery(`UPDATE tasks SET status = 'processing'`).
		WillReturnRows(claimedRow(1, "mystery", 1))
	mock.ExpectExec(`UPDATE tasks SET status = 'pending'`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	worker.processDue(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerRecoversFromHandlerPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	worker := NewWorker(NewPostgresQueue(db, nil), nil, nil)
	worker.Register("explode", func(ctx context.Context, payload json.RawMessage) error {
		panic("boom")
	})

	mock.ExpectQuery(`UPDATE tasks SET status = 'processing'`).
		WillReturnRows(claimedRow(1, "explode", 1))
	mock.ExpectExec(`UPDATE tasks SET status = 'pending'`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	worker.processDue(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

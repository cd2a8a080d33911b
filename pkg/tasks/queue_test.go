package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	queue := NewPostgresQueue(db, nil)

	t.Run("schedules a task", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO tasks`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		id, err := queue.Enqueue(context.Background(), "generate_pdf_and_upload",
			map[string]interface{}{"document_id": 7}, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
	})

	t.Run("requires a kind", func(t *testing.T) {
		_, err := queue.Enqueue(context.Background(), "", nil, 0)
		assert.Error(t, err)
	})
}

func TestSweepStuck(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	queue := NewPostgresQueue(db, nil)

	mock.ExpectExec(`UPDATE tasks SET status = 'pending'.*status = 'processing'`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	swept, err := queue.SweepStuck(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), swept)
}

package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	t.Run("healthy with postgres and redis", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing()

		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		status := NewHealthChecker(db, rdb).Check(context.Background())

		assert.Equal(t, StatusHealthy, status.Status)
		assert.Equal(t, StatusHealthy, status.Dependencies["postgres"].Status)
		assert.Equal(t, StatusHealthy, status.Dependencies["redis"].Status)
	})

	t.Run("unhealthy when postgres is down", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		status := NewHealthChecker(db, nil).Check(context.Background())

		assert.Equal(t, StatusUnhealthy, status.Status)
		assert.Contains(t, status.Dependencies["postgres"].Message, "connection refused")
	})

	t.Run("degraded when only the cache tier is down", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing()

		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()
		mr.Close()

		status := NewHealthChecker(db, rdb).Check(context.Background())

		assert.Equal(t, StatusDegraded, status.Status)
		assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
	})

	t.Run("nil dependencies are skipped", func(t *testing.T) {
		status := NewHealthChecker(nil, nil).Check(context.Background())

		assert.Equal(t, StatusHealthy, status.Status)
		assert.Empty(t, status.Dependencies)
	})
}

func TestHealthEndpoints(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, NewHealthChecker(db, nil))

	t.Run("liveness always answers 200", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readiness reports dependencies", func(t *testing.T) {
		mock.ExpectPing()

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health/ready", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, StatusHealthy, status.Status)
		assert.Contains(t, status.Dependencies, "postgres")
	})

	t.Run("readiness answers 503 when postgres is down", func(t *testing.T) {
		mock.ExpectPing().WillReturnError(errors.New("down"))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

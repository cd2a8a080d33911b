package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Version is stamped at build time via -ldflags
var Version = "dev"

// HealthChecker probes the portal's backing services. Postgres is required:
// every document, page and file lives there, so an unreachable database
// makes the portal unhealthy. Redis only backs the CMS cache's second tier
// and losing it degrades rather than fails.
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

// NewHealthChecker creates a health checker over the portal's dependencies.
// Either argument may be nil; nil dependencies are skipped.
func NewHealthChecker(db *sql.DB, redis *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redis}
}

// HealthStatus is the readiness report
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus reports one backing service
type DependencyStatus struct {
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

// Liveness answers 200 whenever the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness probes the dependencies; 503 only when the portal cannot serve
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// Check probes every configured dependency and aggregates the result
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      Version,
		Dependencies: make(map[string]DependencyStatus),
	}

	if h.db != nil {
		dep := h.checkPostgres(ctx)
		status.Dependencies["postgres"] = dep
		if dep.Status != StatusHealthy {
			status.Status = dep.Status
		}
	}

	if h.redis != nil {
		dep := h.checkRedis(ctx)
		status.Dependencies["redis"] = dep
		if dep.Status == StatusUnhealthy && status.Status == StatusHealthy {
			// Cache tier only
			status.Status = StatusDegraded
		}
	}

	return status
}

func (h *HealthChecker) checkPostgres(ctx context.Context) DependencyStatus {
	start := time.Now()
	dep := DependencyStatus{Status: StatusHealthy}

	err := h.db.PingContext(ctx)
	dep.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
		return dep
	}

	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
		dep.Status = StatusDegraded
		dep.Message = "connection pool exhausted"
	}
	return dep
}

func (h *HealthChecker) checkRedis(ctx context.Context) DependencyStatus {
	start := time.Now()
	dep := DependencyStatus{Status: StatusHealthy}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
	}
	dep.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	return dep
}

// RegisterHealthRoutes mounts the probe endpoints on the internal mux
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}

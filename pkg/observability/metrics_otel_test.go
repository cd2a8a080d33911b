package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewOTelMetrics(t *testing.T) {
	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics failed: %v", err)
	}

	if m.httpRequestsTotal == nil {
		t.Error("httpRequestsTotal is nil")
	}
	if m.httpRequestDuration == nil {
		t.Error("httpRequestDuration is nil")
	}
	if m.dbQueriesTotal == nil {
		t.Error("dbQueriesTotal is nil")
	}
	if m.cacheHitsTotal == nil {
		t.Error("cacheHitsTotal is nil")
	}
	if m.tasksProcessed == nil {
		t.Error("tasksProcessed is nil")
	}
	if m.taskDuration == nil {
		t.Error("taskDuration is nil")
	}
}

func TestOTelMetrics_RecordHTTPRequest(t *testing.T) {
	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics failed: %v", err)
	}

	// With the default no-op meter provider these must not panic
	ctx := context.Background()
	m.RecordHTTPRequest(ctx, "GET", "/api/v1/orgs", 200, 15*time.Millisecond, 128, 512)
	m.RecordHTTPRequest(ctx, "POST", "/api/v1/projects", 500, time.Second, 0, 0)
}

func TestOTelMetrics_RecordDBQuery(t *testing.T) {
	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics failed: %v", err)
	}

	ctx := context.Background()
	m.RecordDBQuery(ctx, "select", 2*time.Millisecond, nil)
	m.RecordDBQuery(ctx, "insert", 5*time.Millisecond, errors.New("duplicate key"))
}

func TestOTelMetrics_RecordTask(t *testing.T) {
	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics failed: %v", err)
	}

	ctx := context.Background()
	m.RecordTask(ctx, "send_email", 120*time.Millisecond, nil)
	m.RecordTask(ctx, "generate_pdf", 3*time.Second, errors.New("render timeout"))
}

func TestOTelMetrics_CacheRecorders(t *testing.T) {
	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics failed: %v", err)
	}

	ctx := context.Background()
	m.RecordCacheHit(ctx, "l1")
	m.RecordCacheMiss(ctx, "l2")
	m.RecordCacheEviction(ctx, "l1")
	m.UpdateCacheSize(ctx, "l1", 1024)
}

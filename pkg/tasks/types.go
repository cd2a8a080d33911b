package tasks

import (
	"context"
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a queued task
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	// StatusDeadLetter marks a task whose attempts are exhausted; it is kept
	// for inspection and never picked up again.
	StatusDeadLetter Status = "dead_letter"
)

// Task is one unit of deferred work
type Task struct {
	ID          int64           `json:"id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAfter    time.Time       `json:"run_after"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Handler executes one task kind. A returned error reschedules the task
// with backoff until its attempts run out. Execution is at-least-once:
// handlers must tolerate being run again after a crash mid-flight.
type Handler func(ctx context.Context, payload json.RawMessage) error

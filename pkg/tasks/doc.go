// Package tasks implements the Postgres-backed deferred task queue that
// decouples user-facing mutations from slow external I/O such as PDF
// rendering and transactional email.
//
// Mutations enqueue a (kind, payload, runAfter) row; workers claim due
// tasks with SKIP LOCKED, run the registered handler, and settle the
// outcome. Failed tasks are rescheduled with exponential backoff until
// their attempts run out, then moved to dead letter for inspection.
// Delivery is at-least-once; handlers must tolerate re-execution.
package tasks

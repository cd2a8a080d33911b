package tasks

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sleads/portal/pkg/observability"
)

// Worker polls the queue for due tasks and runs their handlers
type Worker struct {
	queue       *PostgresQueue
	handlers    map[string]Handler
	retryPolicy *RetryPolicy
	batchSize   int
	metrics     *observability.Metrics
	log         *logrus.Entry
	stopCh      chan struct{}
	ticker      *time.Ticker
}

// NewWorker creates a worker over the given queue. metrics may be nil.
func NewWorker(queue *PostgresQueue, retryPolicy *RetryPolicy, metrics *observability.Metrics) *Worker {
	if retryPolicy == nil {
		retryPolicy = NewRetryPolicy(DefaultRetryConfig())
	}
	return &Worker{
		queue:       queue,
		handlers:    make(map[string]Handler),
		retryPolicy: retryPolicy,
		batchSize:   10,
		metrics:     metrics,
		log:         logrus.WithField("component", "task_worker"),
		stopCh:      make(chan struct{}),
	}
}

// Register binds a handler to a task kind. Tasks with no registered
// handler fail and retry like any other error, so registration order at
// startup does not race the poller.
func (w *Worker) Register(kind string, handler Handler) {
	w.handlers[kind] = handler
}

// Start begins polling for due tasks
func (w *Worker) Start(ctx context.Context, pollInterval time.Duration) {
	w.ticker = time.NewTicker(pollInterval)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Errorf("worker panic: %v\n%s", r, debug.Stack())
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-w.ticker.C:
				w.processDue(ctx)
			}
		}
	}()
}

// Stop stops the worker
func (w *Worker) Stop() {
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stopCh)
}

func (w *Worker) processDue(ctx context.Context) {
	claimed, err := w.queue.claimDue(ctx, w.batchSize)
	if err != nil {
		w.log.WithError(err).Error("failed to claim due tasks")
		return
	}

	for _, task := range claimed {
		w.runTask(ctx, task)
	}
}

// runTask executes one claimed task and settles its outcome: completed,
// rescheduled with backoff, or dead-lettered once attempts run out.
func (w *Worker) runTask(ctx context.Context, task *Task) {
	log := w.log.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"kind":     task.Kind,
		"attempts": task.Attempts,
	})

	start := time.Now()
	err := w.execute(ctx, task)
	duration := time.Since(start)

	w.recordOutcome(task.Kind, duration, err)

	if err == nil {
		if cErr := w.queue.complete(ctx, task.ID); cErr != nil {
			log.WithError(cErr).Error("failed to mark task completed")
		}
		return
	}

	if w.retryPolicy.ShouldRetry(task.Attempts) {
		next := w.retryPolicy.NextRetryTime(task.Attempts)
		log.WithError(err).WithField("next_attempt", next).Warn("task failed, rescheduling")
		if rErr := w.queue.reschedule(ctx, task.ID, next, err.Error()); rErr != nil {
			log.WithError(rErr).Error("failed to reschedule task")
		}
		return
	}

	log.WithError(err).Error("task exhausted its attempts, moving to dead letter")
	if dErr := w.queue.deadLetter(ctx, task.ID, err.Error()); dErr != nil {
		log.WithError(dErr).Error("failed to dead-letter task")
	}
	if w.metrics != nil {
		w.metrics.TasksDeadLetterTotal.WithLabelValues(task.Kind).Inc()
	}
}

func (w *Worker) execute(ctx context.Context, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	handler, ok := w.handlers[task.Kind]
	if !ok {
		return fmt.Errorf("no handler registered for kind %s", task.Kind)
	}
	return handler(ctx, task.Payload)
}

func (w *Worker) recordOutcome(kind string, duration time.Duration, err error) {
	if w.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	w.metrics.TasksProcessedTotal.WithLabelValues(kind, status).Inc()
	w.metrics.TaskDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

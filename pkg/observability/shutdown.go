package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc tears down one portal subsystem
type ShutdownFunc func(context.Context) error

type shutdownStage struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager drains the portal on SIGINT/SIGTERM: it stops the API
// server first so no new work arrives, then runs the registered stages in
// reverse registration order, so dependencies (queue worker, scheduler,
// telemetry, storage) come down after the things built on top of them.
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	timeout time.Duration

	mu     sync.Mutex
	stages []shutdownStage
}

// NewShutdownManager creates a shutdown manager draining into the given
// timeout
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger.WithComponent("shutdown"),
		server:  server,
		timeout: timeout,
	}
}

// RegisterShutdownFunc adds a named teardown stage. Stages run in reverse
// registration order.
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.stages = append(sm.stages, shutdownStage{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then drains
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	sm.logger.WithField("signal", sig.String()).Info("draining portal")
	return sm.Shutdown()
}

// Shutdown drains the API server and runs every registered stage. All
// stages run even when earlier ones fail; the first error is returned.
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	var firstErr error

	if sm.server != nil {
		sm.logger.Info("stopping API server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("API server drain failed")
			firstErr = fmt.Errorf("API server shutdown: %w", err)
		}
	}

	sm.mu.Lock()
	stages := make([]shutdownStage, len(sm.stages))
	copy(stages, sm.stages)
	sm.mu.Unlock()

	for i := len(stages) - 1; i >= 0; i-- {
		stage := stages[i]
		if err := ctx.Err(); err != nil {
			sm.logger.WithField("stage", stage.name).Warn("shutdown timeout reached, skipping remaining stages")
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown timed out before %s", stage.name)
			}
			break
		}

		sm.logger.WithField("stage", stage.name).Info("stopping")
		if err := stage.fn(ctx); err != nil {
			sm.logger.WithError(err).WithField("stage", stage.name).Error("stage failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("%s shutdown: %w", stage.name, err)
			}
		}
	}

	if firstErr == nil {
		sm.logger.Info("portal shutdown complete")
	}
	return firstErr
}

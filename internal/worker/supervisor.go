package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relaytasks/dispatchd/internal/dispatch"
)

// Supervisor owns a fixed-size pool of Workers sharing one Store and one
// Dispatcher, and coordinates their startup and graceful shutdown.
type Supervisor struct {
	store        claimer
	dispatcher   dispatcher
	logger       *slog.Logger
	count        int
	pollInterval time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewSupervisor builds a Supervisor that will run count workers, each
// backed by store for claims/finalizes and d for dispatch.
func NewSupervisor(store claimer, d *dispatch.Dispatcher, logger *slog.Logger, count int, pollInterval time.Duration) *Supervisor {
	if count <= 0 {
		count = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{store: store, dispatcher: d, logger: logger, count: count, pollInterval: pollInterval}
}

// Start spawns the worker pool. It returns immediately; workers keep
// running in the background until Stop is called.
func (sup *Supervisor) Start(ctx context.Context) error {
	sup.mu.Lock()
	defer sup.mu.Unlock()

	if sup.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(runCtx)

	for i := 0; i < sup.count; i++ {
		w := New(i, sup.store, sup.dispatcher, sup.logger, sup.pollInterval)
		group.Go(func() error {
			w.Run(gctx)
			return nil
		})
	}

	sup.cancel = cancel
	sup.group = group
	sup.started = true

	sup.logger.Info("worker supervisor started", slog.Int("workers", sup.count))
	return nil
}

// Stop cancels every worker's context and waits for them to return, or
// for ctx to expire first.
func (sup *Supervisor) Stop(ctx context.Context) error {
	sup.mu.Lock()
	if !sup.started {
		sup.mu.Unlock()
		return ErrNotStarted
	}
	cancel := sup.cancel
	group := sup.group
	sup.mu.Unlock()

	cancel()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		sup.mu.Lock()
		sup.started = false
		sup.mu.Unlock()
		if err != nil {
			return fmt.Errorf("worker: supervisor stop: %w", err)
		}
		sup.logger.Info("worker supervisor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown adapts Stop to the shutdown-hook signature used at server
// startup (see cmd/server/main.go).
func (sup *Supervisor) Shutdown() func(context.Context) error {
	return sup.Stop
}

// Package worker claims pending tasks one at a time, dispatches them, and
// writes back their terminal status. Supervisor owns a fixed pool of
// these loops and their shared lifecycle.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/relaytasks/dispatchd/internal/dispatch"
	"github.com/relaytasks/dispatchd/internal/task"
)

// claimer is the subset of *store.Store a Worker needs. Defined here so
// worker_test.go can substitute a fake without touching a database.
type claimer interface {
	ClaimOnePending(ctx context.Context) (*task.Task, error)
	Finalize(ctx context.Context, id string, status task.Status, result []byte) error
}

// dispatcher is the subset of *dispatch.Dispatcher a Worker needs.
type dispatcher interface {
	Dispatch(ctx context.Context, t *task.Task) ([]byte, error)
}

// Worker repeatedly claims the oldest pending task, dispatches it to its
// downstream service, and finalizes the result. It never terminates on
// its own: claim errors, dispatch failures, and finalize errors are all
// logged and the loop continues, exiting only when ctx is done.
type Worker struct {
	id           int
	store        claimer
	dispatcher   dispatcher
	logger       *slog.Logger
	pollInterval time.Duration
}

// New builds a Worker. pollInterval is the backoff applied after finding
// an empty queue, so idle workers don't spin against the database.
func New(id int, store claimer, d dispatcher, logger *slog.Logger, pollInterval time.Duration) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 300 * time.Millisecond
	}
	return &Worker{id: id, store: store, dispatcher: d, logger: logger, pollInterval: pollInterval}
}

// Run executes the claim-dispatch-finalize loop until ctx is canceled.
// It recovers from a panic in a single iteration so one bad task can't
// take the worker goroutine down with it.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if !w.tick(ctx) {
			return
		}
	}
}

// tick runs one claim-dispatch-finalize cycle and reports whether the
// worker should keep going (false only once ctx is done).
func (w *Worker) tick(ctx context.Context) (alive bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker: recovered panic", slog.Int("worker", w.id), slog.Any("panic", r))
			alive = ctx.Err() == nil
		}
	}()

	t, err := w.store.ClaimOnePending(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.logger.Error("worker: claim failed", slog.Int("worker", w.id), slog.Any("error", err))
		return w.sleep(ctx)
	}

	if t == nil {
		return w.sleep(ctx)
	}

	status, result := w.execute(ctx, t)

	if err := w.store.Finalize(ctx, t.ID, status, result); err != nil {
		if ctx.Err() != nil {
			return false
		}
		// Database errors during finalize are logged and the loop
		// continues; finalize is not retried, so the row stays PROCESSING
		// (see store.ClaimOnePending's doc comment).
		w.logger.Error("worker: finalize failed",
			slog.Int("worker", w.id), slog.String("task_id", t.TaskID), slog.Any("error", err))
	}

	return ctx.Err() == nil
}

// execute dispatches t and folds the outcome into a terminal status and
// result payload.
func (w *Worker) execute(ctx context.Context, t *task.Task) (task.Status, []byte) {
	result, err := w.dispatcher.Dispatch(ctx, t)
	if err == nil {
		return task.StatusSuccess, result
	}

	w.logger.Warn("worker: dispatch failed",
		slog.Int("worker", w.id), slog.String("task_id", t.TaskID), slog.Any("error", err))

	var statusErr *dispatch.HTTPStatusError
	if errors.As(err, &statusErr) {
		return task.StatusFailed, failureBody(statusErr.StatusCode, statusErr.Body)
	}

	return task.StatusFailed, errorBody(err)
}

// sleep waits for the poll interval or ctx cancellation, reporting
// whether the caller should keep running.
func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func failureBody(statusCode int, body []byte) []byte {
	if json.Valid(body) {
		out, err := json.Marshal(map[string]any{
			"status_code": statusCode,
			"body":        json.RawMessage(body),
		})
		if err == nil {
			return out
		}
	}

	out, err := json.Marshal(map[string]any{
		"status_code": statusCode,
		"text":        string(body),
	})
	if err != nil {
		return []byte(`{"detail":"downstream returned a non-2xx status"}`)
	}
	return out
}

func errorBody(err error) []byte {
	out, marshalErr := json.Marshal(map[string]any{"detail": err.Error()})
	if marshalErr != nil {
		return []byte(`{"detail":"dispatch failed"}`)
	}
	return out
}

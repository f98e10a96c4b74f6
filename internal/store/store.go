// Package store implements the durable task table and the queue protocol
// that turns it into a crash-safe, parallelizable job queue: Insert,
// ClaimOnePending, Finalize, and LookupByTaskID.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaytasks/dispatchd/internal/task"
	"github.com/relaytasks/dispatchd/pkg/db"
)

// uniqueViolation is the PostgreSQL error code for a unique-constraint
// violation (23505).
const uniqueViolation = "23505"

// newTaskID generates the client-facing task_id Insert assigns to a new
// row. Overridden in tests to force a collision through Insert itself.
var newTaskID = uuid.NewString

// Store is the durable task table, backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-open connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert creates a PENDING row for the given draft and returns its
// client-facing task_id. Fails with ErrConflict if the generated task_id
// collides with an existing row.
func (s *Store) Insert(ctx context.Context, draft task.Draft) (string, error) {
	id := uuid.NewString()
	taskID := newTaskID()
	now := time.Now().UTC()

	method := draft.Method
	if method == "" {
		method = task.MethodPost
	}

	params := draft.Params
	if params == nil {
		params = []byte("{}")
	}

	const query = `
		INSERT INTO tasks (id, task_id, service, route, method, params, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		id, taskID, string(draft.Service), draft.Route, string(method), params, string(task.StatusPending), now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", ErrConflict
		}
		return "", fmt.Errorf("store: insert task: %w", err)
	}

	return taskID, nil
}

// ClaimOnePending atomically transitions the oldest PENDING row to
// PROCESSING and returns a detached snapshot of it. Returns (nil, nil)
// when the queue is empty.
//
// The claim is a single transaction: a SELECT ... FOR UPDATE SKIP LOCKED
// takes an exclusive, non-blocking lock on exactly one PENDING row
// ordered by created_at, then an UPDATE inside the same transaction
// flips it to PROCESSING before commit. The skip-locked predicate is
// what lets N workers scan the same table concurrently without ever
// double-claiming a row; committing the PROCESSING write in the same
// transaction that took the lock is what makes the claim durable across
// a worker crash immediately after — the row is left visibly PROCESSING
// rather than silently reverting to PENDING.
//
// TODO: a crash between this call and Finalize leaves the row stuck in
// PROCESSING forever (see spec §7 item 5). No reaper is implemented; an
// external sweeper
// that resets stale PROCESSING rows back to PENDING would hook in here.
func (s *Store) ClaimOnePending(ctx context.Context) (*task.Task, error) {
	var claimed *task.Task

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		const selectQuery = `
			SELECT id, task_id, service, route, method, params, status, result, created_at, updated_at
			FROM tasks
			WHERE status = $1
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`

		row := tx.QueryRow(ctx, selectQuery, string(task.StatusPending))
		t, err := scanTask(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("store: select pending: %w", err)
		}

		const updateQuery = `UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3`
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, updateQuery, string(task.StatusProcessing), now, t.ID); err != nil {
			return fmt.Errorf("store: claim task: %w", err)
		}

		t.Status = task.StatusProcessing
		t.UpdatedAt = now
		claimed = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// Finalize sets a claimed task's terminal status and result. Callers
// must call this at most once per claim; no lock is re-acquired, so
// correctness relies on the invariant that only the claiming worker ever
// finalizes a given id.
func (s *Store) Finalize(ctx context.Context, id string, status task.Status, result []byte) error {
	const query = `UPDATE tasks SET status = $1, result = $2, updated_at = $3 WHERE id = $4`

	_, err := s.pool.Exec(ctx, query, string(status), result, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: finalize task %s: %w", id, err)
	}
	return nil
}

// LookupByTaskID returns the task with the given client-facing task_id,
// or ErrNotFound if none exists.
func (s *Store) LookupByTaskID(ctx context.Context, taskID string) (*task.Task, error) {
	const query = `
		SELECT id, task_id, service, route, method, params, status, result, created_at, updated_at
		FROM tasks
		WHERE task_id = $1
	`

	row := s.pool.QueryRow(ctx, query, taskID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: lookup task %s: %w", taskID, err)
	}
	return t, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t             task.Task
		service, meth string
		status        string
	)

	if err := row.Scan(
		&t.ID, &t.TaskID, &service, &t.Route, &meth, &t.Params, &status, &t.Result, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.Service = task.Service(service)
	t.Method = task.Method(meth)
	t.Status = task.Status(status)
	return &t, nil
}

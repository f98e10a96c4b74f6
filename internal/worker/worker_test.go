package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaytasks/dispatchd/internal/dispatch"
	"github.com/relaytasks/dispatchd/internal/task"
)

// fakeStore hands out a fixed queue of tasks, one per ClaimOnePending
// call, and records every Finalize.
type fakeStore struct {
	mu        sync.Mutex
	queue     []*task.Task
	claimErr  error
	finalized []finalizedCall
}

type finalizedCall struct {
	id     string
	status task.Status
	result []byte
}

func (f *fakeStore) ClaimOnePending(ctx context.Context) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if len(f.queue) == 0 {
		return nil, nil
	}
	t := f.queue[0]
	f.queue = f.queue[1:]
	return t, nil
}

func (f *fakeStore) Finalize(ctx context.Context, id string, status task.Status, result []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = append(f.finalized, finalizedCall{id: id, status: status, result: result})
	return nil
}

func (f *fakeStore) calls() []finalizedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]finalizedCall(nil), f.finalized...)
}

type fakeDispatcher struct {
	result []byte
	err    error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, t *task.Task) ([]byte, error) {
	return f.result, f.err
}

func TestWorker_FinalizesSuccess(t *testing.T) {
	st := &fakeStore{queue: []*task.Task{{ID: "t1", TaskID: "pub-1"}}}
	d := &fakeDispatcher{result: json.RawMessage(`{"ok":true}`)}
	w := New(0, st, d, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer cancel()

	require.Eventually(t, func() bool {
		return len(st.calls()) == 1
	}, time.Second, time.Millisecond, "worker never finalized the claimed task")

	calls := st.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "t1", calls[0].id)
	assert.Equal(t, task.StatusSuccess, calls[0].status)
	assert.JSONEq(t, `{"ok":true}`, string(calls[0].result))
}

func TestWorker_FinalizesFailureOnHTTPStatusError(t *testing.T) {
	st := &fakeStore{queue: []*task.Task{{ID: "t1", TaskID: "pub-1"}}}
	d := &fakeDispatcher{err: &dispatch.HTTPStatusError{StatusCode: 500, Body: []byte(`{"detail":"boom"}`)}}
	w := New(0, st, d, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer cancel()

	require.Eventually(t, func() bool {
		return len(st.calls()) == 1
	}, time.Second, time.Millisecond)

	calls := st.calls()
	assert.Equal(t, task.StatusFailed, calls[0].status)
	assert.Contains(t, string(calls[0].result), "boom")
}

func TestWorker_FinalizesFailureOnTransportError(t *testing.T) {
	st := &fakeStore{queue: []*task.Task{{ID: "t1", TaskID: "pub-1"}}}
	d := &fakeDispatcher{err: assertError{"connection refused"}}
	w := New(0, st, d, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer cancel()

	require.Eventually(t, func() bool {
		return len(st.calls()) == 1
	}, time.Second, time.Millisecond)

	calls := st.calls()
	assert.Equal(t, task.StatusFailed, calls[0].status)
	assert.Contains(t, string(calls[0].result), "connection refused")
}

func TestWorker_StopsOnCancellation(t *testing.T) {
	st := &fakeStore{}
	d := &fakeDispatcher{}
	w := New(0, st, d, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after cancellation")
	}
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

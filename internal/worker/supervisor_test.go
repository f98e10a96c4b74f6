package worker

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaytasks/dispatchd/internal/task"
)

func newTestSupervisor(st claimer, d dispatcher, count int) *Supervisor {
	return &Supervisor{
		store:        st,
		dispatcher:   d,
		logger:       slog.Default(),
		count:        count,
		pollInterval: time.Millisecond,
	}
}

func TestSupervisor_StartStopLifecycle(t *testing.T) {
	sup := newTestSupervisor(&fakeStore{}, &fakeDispatcher{}, 3)

	ctx := context.Background()
	require.NoError(t, sup.Start(ctx))
	assert.ErrorIs(t, sup.Start(ctx), ErrAlreadyStarted)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, sup.Stop(stopCtx))
	assert.ErrorIs(t, sup.Stop(stopCtx), ErrNotStarted)
}

func TestSupervisor_DrainsQueueAcrossWorkers(t *testing.T) {
	st := &fakeStore{}
	for i := 0; i < 20; i++ {
		st.queue = append(st.queue, &task.Task{ID: fmt.Sprintf("t%d", i), TaskID: fmt.Sprintf("pub-%d", i)})
	}
	d := &fakeDispatcher{result: []byte(`{"ok":true}`)}
	sup := newTestSupervisor(st, d, 4)

	ctx := context.Background()
	require.NoError(t, sup.Start(ctx))

	require.Eventually(t, func() bool {
		return len(st.calls()) == 20
	}, 2*time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, sup.Stop(stopCtx))
}

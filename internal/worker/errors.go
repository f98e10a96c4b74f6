package worker

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called on a running supervisor.
	ErrAlreadyStarted = errors.New("worker: already started")

	// ErrNotStarted is returned when Stop is called on a supervisor that
	// was never started.
	ErrNotStarted = errors.New("worker: not started")
)

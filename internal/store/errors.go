package store

import "errors"

var (
	// ErrConflict is returned by Insert when the generated task_id
	// collides with an existing row (a unique-constraint violation at
	// the database level). The API layer maps this to 409.
	ErrConflict = errors.New("store: task_id conflict")

	// ErrNotFound is returned by LookupByTaskID when no row matches.
	ErrNotFound = errors.New("store: task not found")
)

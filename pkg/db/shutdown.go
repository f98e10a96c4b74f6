package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Shutdown returns a function that gracefully closes the database connection
// pool, suitable for a server's ordered teardown sequence alongside the HTTP
// listener and worker supervisor shutdowns.
func Shutdown(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		pool.Close()
		return nil
	}
}

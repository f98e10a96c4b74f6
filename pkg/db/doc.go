// Package db provides PostgreSQL connection and migration utilities for the
// task dispatcher.
//
// It wraps [github.com/jackc/pgx/v5/pgxpool] to provide connection pooling,
// a health check function, and schema migrations with sensible defaults for
// a service whose correctness depends on row-level locking (the queue
// protocol claims rows with SELECT ... FOR UPDATE SKIP LOCKED and needs a
// pool that survives reconnects without losing in-flight transactions).
//
// # Features
//
//   - Connection pooling with configurable limits and timeouts
//   - Automatic retry logic with linear backoff during startup
//   - Health check function compatible with the pkg/health CheckFunc signature
//   - Database migrations using [github.com/pressly/goose/v3]
//
// # Configuration
//
// This package reads no environment variables itself; settings arrive as
// [Option] values. The dispatcher's internal/config reads these variables
// and cmd/server passes them through:
//
//	DATABASE_URL                - PostgreSQL connection URL (required)
//	DATABASE_MAX_OPEN_CONNS     - Maximum open connections (default: 10)
//	DATABASE_MIN_CONNS          - Minimum idle connections (default: 5)
//	DATABASE_HEALTHCHECK_PERIOD - Health check interval (default: 1m)
//	DATABASE_MAX_CONN_IDLE_TIME - Maximum connection idle time (default: 10m)
//	DATABASE_MAX_CONN_LIFETIME  - Maximum connection lifetime (default: 30m)
//	DATABASE_RETRY_ATTEMPTS     - Connection retry attempts (default: 3)
//	DATABASE_RETRY_INTERVAL     - Base retry interval (default: 5s)
//
// # Usage
//
//	pool, err := db.Open(ctx, cfg.DatabaseURL,
//		db.WithMigrations(migrations),
//		db.WithLogger(log),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Close()
//
// # Transactions
//
// The [WithTx] helper provides automatic transaction management with
// rollback on error; the queue protocol's claim operation is built on it:
//
//	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
//		return tx.QueryRow(ctx, "SELECT ... FOR UPDATE SKIP LOCKED").Scan(&id)
//	})
//
// # Error Handling
//
//   - [ErrFailedToParseDBConfig] - Invalid connection string format
//   - [ErrFailedToOpenDBConnection] - Connection failed after all retries
//   - [ErrHealthcheckFailed] - Database ping failed
//   - [ErrSetDialect] - Migration dialect configuration error
//   - [ErrApplyMigrations] - Migration execution failed
//
// Errors are wrapped using [errors.Join] to preserve the original error context.
package db

package db

import "errors"

// Sentinel errors wrapped (via errors.Join) around the underlying pgx/goose
// error so callers can errors.Is against a stable cause while the message
// still carries the driver's own diagnostic text.
var (
	ErrFailedToParseDBConfig    = errors.New("db: failed to parse database configuration")
	ErrFailedToOpenDBConnection = errors.New("db: failed to open database connection")
	ErrHealthcheckFailed        = errors.New("db: healthcheck failed")
	ErrSetDialect               = errors.New("db migrator: failed to set dialect")
	ErrApplyMigrations          = errors.New("db migrator: failed to apply migrations")
)

package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrations live under the repository's top-level migrations/ package and
// are embedded via go:embed; see migrations.FS.
const (
	migrationsDir   = "migrations"
	migrationsTable = "schema_migrations"
)

// Migrate applies the dispatcher's embedded schema migrations (the tasks
// table and its indexes) up to the latest version. Pass nil for log to
// silence goose's own progress output.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations embed.FS, log *slog.Logger) error {
	// goose operates on database/sql; stdlib.OpenDBFromPool shares pool's
	// underlying connections rather than opening a second pool, so it must
	// not be closed here.
	sqlDB := stdlib.OpenDBFromPool(pool)

	goose.SetBaseFS(migrations)
	goose.SetTableName(migrationsTable)

	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	goose.SetLogger(&gooseLoggerAdapter{log})

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrSetDialect, err)
	}

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return errors.Join(ErrApplyMigrations, err)
	}

	return nil
}

// gooseLoggerAdapter routes goose's Printf/Fatalf logging interface through
// slog so migration output shares the server's structured log stream.
type gooseLoggerAdapter struct {
	log *slog.Logger
}

func (g *gooseLoggerAdapter) Printf(format string, args ...any) {
	g.log.Info(fmt.Sprintf(format, args...))
}

// Fatalf logs at error level rather than exiting; goose's caller (Migrate)
// already returns the error so the process can shut down cleanly instead of
// goose calling os.Exit out from under it.
func (g *gooseLoggerAdapter) Fatalf(format string, args ...any) {
	g.log.Error(fmt.Sprintf(format, args...))
}

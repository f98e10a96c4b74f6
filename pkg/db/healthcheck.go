package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Healthcheck returns a health check function compatible with pkg/health's
// CheckFunc signature. It verifies the pool can reach the database.
func Healthcheck(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil {
			return errors.Join(ErrHealthcheckFailed, errors.New("pool is nil"))
		}
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

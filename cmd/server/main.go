// Command server runs the task dispatcher: the HTTP API, the durable
// task store, and the worker pool that drains it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaytasks/dispatchd/internal/api"
	"github.com/relaytasks/dispatchd/internal/config"
	"github.com/relaytasks/dispatchd/internal/dispatch"
	"github.com/relaytasks/dispatchd/internal/store"
	"github.com/relaytasks/dispatchd/internal/worker"
	"github.com/relaytasks/dispatchd/migrations"
	"github.com/relaytasks/dispatchd/pkg/db"
	"github.com/relaytasks/dispatchd/pkg/health"
	"github.com/relaytasks/dispatchd/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewWithSentry(logger.SentryConfig{DSN: cfg.SentryDSN}, api.RequestIDExtractor())

	dbOpts := []db.Option{
		db.WithLogger(log),
		db.WithMaxConns(cfg.DatabaseMaxConns),
		db.WithMinConns(cfg.DatabaseMinConns),
		db.WithRetry(cfg.DatabaseRetries, cfg.DatabaseRetryGap),
		db.WithHealthCheckPeriod(cfg.DatabaseHealthCheckPeriod),
		db.WithMaxConnIdleTime(cfg.DatabaseMaxConnIdleTime),
		db.WithMaxConnLifetime(cfg.DatabaseMaxConnLifetime),
	}
	if !cfg.Testing {
		dbOpts = append(dbOpts, db.WithMigrations(migrations.FS))
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, dbOpts...)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	shutdownDB := db.Shutdown(pool)

	taskStore := store.New(pool)

	dispatcher := dispatch.New(
		&http.Client{Timeout: cfg.DispatchTimeout},
		cfg.ServiceBaseURL,
	)

	checks := health.Checks{"database": db.Healthcheck(pool)}
	handler := api.New(taskStore, log, checks)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	var supervisor *worker.Supervisor
	if !cfg.Testing {
		supervisor = worker.NewSupervisor(taskStore, dispatcher, log, cfg.WorkerCount, cfg.ClaimPollInterval)
		if err := supervisor.Start(ctx); err != nil {
			return fmt.Errorf("start workers: %w", err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", slog.Any("error", err))
	}

	if supervisor != nil {
		if err := supervisor.Stop(shutdownCtx); err != nil {
			log.Error("worker supervisor shutdown error", slog.Any("error", err))
		}
	}

	if err := shutdownDB(shutdownCtx); err != nil {
		log.Error("database shutdown error", slog.Any("error", err))
	}

	return nil
}

// Package api exposes the dispatcher's three HTTP endpoints: create-task,
// tasks/{task_id}, and health, plus the /healthz/ready and /healthz/live
// probes.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/relaytasks/dispatchd/internal/store"
	"github.com/relaytasks/dispatchd/pkg/health"
)

// readinessTimeout bounds how long /healthz/ready waits on its checks
// (currently just db.Healthcheck) before reporting unhealthy.
const readinessTimeout = 3 * time.Second

// Server wires the HTTP surface. It holds no state beyond references to
// its collaborators; all durable state lives in the store.
type Server struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds the chi router for the dispatcher's HTTP surface. checks
// backs the additional /healthz/ready endpoint alongside the contractual
// /health; the endpoint is always registered, and with no checks it
// reports healthy.
func New(st *store.Store, logger *slog.Logger, checks health.Checks) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{store: st, logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(recoverer(logger))
	r.Use(cors)

	r.Post("/create-task", s.createTask)
	r.Get("/tasks/{task_id}", s.getTask)
	r.Get("/health", s.health)
	r.Get("/healthz/ready", health.ReadinessHandler(checks,
		health.WithTimeout(readinessTimeout),
		health.WithLogger(logger),
	))
	r.Get("/healthz/live", health.LivenessHandler())

	return r
}

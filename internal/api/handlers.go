package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/relaytasks/dispatchd/internal/store"
	"github.com/relaytasks/dispatchd/internal/task"
)

// createTaskRequest is the body accepted by POST /create-task.
type createTaskRequest struct {
	Service task.Service    `json:"service"`
	Route   string          `json:"route"`
	Method  task.Method     `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// taskResponse is the body returned by GET /tasks/{task_id}.
type taskResponse struct {
	TaskID string          `json:"task_id"`
	Status task.Status     `json:"status"`
	Result json.RawMessage `json:"result"`
}

const maxRequestBody = 1 << 20 // 1MiB; task params are small JSON objects.

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "request body must be valid JSON")
		return
	}

	if !req.Service.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "service must be one of user, payment, flight")
		return
	}
	if req.Route == "" {
		writeError(w, http.StatusUnprocessableEntity, "route is required")
		return
	}
	if req.Method == "" {
		req.Method = task.MethodPost
	}
	if !req.Method.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "method is not a supported HTTP verb")
		return
	}

	draft := task.Draft{
		Service: req.Service,
		Route:   req.Route,
		Method:  req.Method,
		Params:  req.Params,
	}

	taskID, err := s.store.Insert(r.Context(), draft)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "task already exists")
			return
		}
		s.logger.ErrorContext(r.Context(), "create task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	writeJSON(w, http.StatusOK, taskID)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	t, err := s.store.LookupByTaskID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "lookup task failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up task")
		return
	}

	writeJSON(w, http.StatusOK, taskResponse{
		TaskID: t.TaskID,
		Status: t.Status,
		Result: t.Result,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

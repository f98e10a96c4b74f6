package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaytasks/dispatchd/internal/store"
	"github.com/relaytasks/dispatchd/migrations"
	"github.com/relaytasks/dispatchd/pkg/db"
	"github.com/relaytasks/dispatchd/pkg/health"
)

func requirePool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping api integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, dsn, db.WithMigrations(migrations.FS))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, "TRUNCATE TABLE tasks")
	require.NoError(t, err)

	t.Cleanup(pool.Close)
	return pool
}

func newTestServer(t *testing.T) http.Handler {
	pool := requirePool(t)
	return New(store.New(pool), nil, health.Checks{})
}

func TestCreateTask_ReturnsTaskID(t *testing.T) {
	h := newTestServer(t)

	body := `{"service":"user","route":"create-user","params":{"name":"Sean","email":"sean@example.com"}}`
	req := httptest.NewRequest(http.MethodPost, "/create-task", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var taskID string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &taskID))
	assert.Len(t, taskID, 36)
}

func TestCreateTask_RejectsUnknownService(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/create-task", bytes.NewBufferString(`{"service":"bogus","route":"x"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetTask_UnknownReturns404(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/tasks/does-not-exist", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Task not found"}`, rec.Body.String())
}

func TestGetTask_ReturnsPendingStatusWithNullResult(t *testing.T) {
	h := newTestServer(t)

	createReq := httptest.NewRequest(http.MethodPost, "/create-task",
		bytes.NewBufferString(`{"service":"payment","route":"charge","params":{"amount":10}}`))
	createRec := httptest.NewRecorder()
	h.ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusOK, createRec.Code)

	var taskID string
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &taskID))

	getReq := httptest.NewRequest(http.MethodGet, "/tasks/"+taskID, nil)
	getRec := httptest.NewRecorder()
	h.ServeHTTP(getRec, getReq)

	require.Equal(t, http.StatusOK, getRec.Code)

	var resp taskResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", string(resp.Status))
	assert.Nil(t, resp.Result)
}

func TestHealth_ReturnsOK(t *testing.T) {
	h := New(nil, nil, health.Checks{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

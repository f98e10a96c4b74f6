package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/dispatchd")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 5, cfg.WorkerCount)
	assert.Equal(t, 300*time.Millisecond, cfg.ClaimPollInterval)
	assert.Equal(t, 10*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Testing)
	assert.Equal(t, int32(10), cfg.DatabaseMaxConns)
	assert.Equal(t, int32(5), cfg.DatabaseMinConns)
	assert.Equal(t, 3, cfg.DatabaseRetries)
	assert.Equal(t, 5*time.Second, cfg.DatabaseRetryGap)
	assert.Equal(t, time.Minute, cfg.DatabaseHealthCheckPeriod)
	assert.Equal(t, 10*time.Minute, cfg.DatabaseMaxConnIdleTime)
	assert.Equal(t, 30*time.Minute, cfg.DatabaseMaxConnLifetime)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_OverridesFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/dispatchd")
	t.Setenv("WORKER_COUNT", "12")
	t.Setenv("TESTING", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.WorkerCount)
	assert.True(t, cfg.Testing)
}

func TestServiceBaseURL(t *testing.T) {
	cfg := &Config{UsersURL: "http://users", PaymentsURL: "http://payments", FlightsURL: "http://flights"}

	base, ok := cfg.ServiceBaseURL("user")
	require.True(t, ok)
	assert.Equal(t, "http://users", base)

	base, ok = cfg.ServiceBaseURL("payment")
	require.True(t, ok)
	assert.Equal(t, "http://payments", base)

	_, ok = cfg.ServiceBaseURL("unknown")
	assert.False(t, ok)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// The default run reproduces the original demo setup.
	opt := cfg.Optimization
	assert.Equal(t, "alpine", opt.Function)
	assert.Equal(t, 100, opt.Dimensions)
	assert.Equal(t, -10.0, opt.LowerBound)
	assert.Equal(t, 10.0, opt.UpperBound)
	assert.Equal(t, 2, opt.GridBase)
	assert.Equal(t, 12, opt.GridPower)
	assert.Equal(t, 0, opt.GridSize)
	assert.Equal(t, 100000, opt.Evals)
	assert.Equal(t, 4, opt.Rank)
	assert.Equal(t, int64(42), opt.Seed)
	assert.True(t, opt.WithLog)
	assert.True(t, opt.WithCache)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("OPT_WORKER_COUNT", "8")
	t.Setenv("OPT_FUNCTION", "sphere")
	t.Setenv("OPT_DIMENSIONS", "10")
	t.Setenv("OPT_SYNC_WAIT_TIMEOUT", "90s")
	t.Setenv("OPT_SEED", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 8, cfg.Optimization.WorkerCount)
	assert.Equal(t, "sphere", cfg.Optimization.Function)
	assert.Equal(t, 10, cfg.Optimization.Dimensions)
	assert.Equal(t, 90*time.Second, cfg.Optimization.SyncWaitTimeout)
	assert.Equal(t, int64(7), cfg.Optimization.Seed)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "HTTP_PORT", "70000"},
		{"port not a number", "HTTP_PORT", "eighty"},
		{"zero workers", "OPT_WORKER_COUNT", "0"},
		{"negative sync timeout", "OPT_SYNC_WAIT_TIMEOUT", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

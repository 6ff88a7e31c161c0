package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Address())
	assert.Equal(t, "task", cfg.Taskwarrior.Binary)
	assert.Empty(t, cfg.Taskwarrior.Overrides)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 5*time.Second, cfg.Settings.TTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Journal.Retention)
	assert.Equal(t, time.Minute, cfg.Refresh.Interval)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TASK_BIN", "/usr/local/bin/task")
	t.Setenv("TASK_TIMEOUT", "3")
	t.Setenv("TASK_RC_OVERRIDES", "rc.verbose=nothing, rc.hooks=off ,")
	t.Setenv("TASKDATA", "/data/tw")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("SETTINGS_FILE", "/etc/taskwarlock.json")
	t.Setenv("SETTINGS_WATCH", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "/usr/local/bin/task", cfg.Taskwarrior.Binary)
	assert.Equal(t, 3*time.Second, cfg.Taskwarrior.Timeout)
	assert.Equal(t, []string{"rc.verbose=nothing", "rc.hooks=off"}, cfg.Taskwarrior.Overrides)
	assert.Equal(t, "/data/tw", cfg.Taskwarrior.TaskData)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "/etc/taskwarlock.json", cfg.Settings.Path)
	assert.False(t, cfg.Settings.Watch)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("override format", func(t *testing.T) {
		t.Setenv("TASK_RC_OVERRIDES", "verbose=nothing")
		_, err := Load()
		assert.ErrorContains(t, err, "TASK_RC_OVERRIDES")
	})
	t.Run("breaker threshold", func(t *testing.T) {
		t.Setenv("BREAKER_FAILURE_THRESHOLD", "0")
		_, err := Load()
		assert.ErrorContains(t, err, "BREAKER_FAILURE_THRESHOLD")
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "tasker.db", cfg.Database.Path)
	assert.Equal(t, 15, cfg.Scheduler.MinIntervalMinutes)
	assert.Equal(t, 1, cfg.Scheduler.Workers)
	assert.Equal(t, 3, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.True(t, cfg.Notify.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasker.toml")

	content := `
[database]
path = "/tmp/test.db"

[scheduler]
workers = 4
min_interval_minutes = 30

[agent]
model = "anthropic/claude-sonnet"
max_iterations = 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Scheduler.Workers)
	assert.Equal(t, 30, cfg.Scheduler.MinIntervalMinutes)
	assert.Equal(t, "anthropic/claude-sonnet", cfg.Agent.Model)
	assert.Equal(t, 25, cfg.Agent.MaxIterations)

	// Values not present in the file keep their defaults
	assert.Equal(t, 3, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, 0.2, cfg.Agent.Temperature)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/tasker.toml")
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	Reset()
	cfg1, err := Load()
	require.NoError(t, err)

	Reset()
	cfg2, err := Load()
	require.NoError(t, err)

	// Fresh instances after reset
	assert.NotSame(t, cfg1, cfg2)
}

package config

import "github.com/spf13/viper"

// Default file permissions for the config directory
const DefaultDirPermissions = 0o755

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "tasker.db")

	// Scheduler defaults
	v.SetDefault("scheduler.min_interval_minutes", 15) // battery-policy floor
	v.SetDefault("scheduler.workers", 1)
	v.SetDefault("scheduler.poll_interval_seconds", 5)
	v.SetDefault("scheduler.max_attempts", 3)
	v.SetDefault("scheduler.retry_backoff_seconds", 30)
	v.SetDefault("scheduler.triggers_per_second", 2.0)
	v.SetDefault("scheduler.conditional_fallback_minutes", 15)
	// Empty disables probing; constraint-bearing jobs then always fire
	v.SetDefault("scheduler.connectivity_probe_url", "")

	// Agent defaults (per-job profiles override these)
	v.SetDefault("agent.model", "openai/gpt-4o-mini")
	v.SetDefault("agent.temperature", 0.2)
	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("agent.timeout_seconds", 120)

	// Notification defaults
	v.SetDefault("notify.enabled", true)
}

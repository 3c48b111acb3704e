// Package config loads scheduler configuration from TOML files and
// TASKER_* environment variables via Viper.
package config

// Config represents the full tasker configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig configures the scheduling backends and dispatch workers
type SchedulerConfig struct {
	// Floor for recurring intervals. Jobs below this fail validation.
	MinIntervalMinutes int `mapstructure:"min_interval_minutes"`

	// Dispatch worker pool
	Workers             int `mapstructure:"workers"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`

	// Trigger retry policy (bounded attempts with exponential backoff)
	MaxAttempts         int `mapstructure:"max_attempts"`
	RetryBackoffSeconds int `mapstructure:"retry_backoff_seconds"`

	// Trigger dispatch rate limit (triggers per second admitted to the queue)
	TriggersPerSecond float64 `mapstructure:"triggers_per_second"`

	// Interval used when a conditional schedule falls back to recurring
	ConditionalFallbackMinutes int `mapstructure:"conditional_fallback_minutes"`

	// Endpoint probed before firing jobs that require network access.
	// Empty disables probing and treats the host as always online.
	ConnectivityProbeURL string `mapstructure:"connectivity_probe_url"`
}

// AgentConfig holds the global defaults for agent runs. Per-job profile
// values override these (see agent.ResolveRunConfig).
type AgentConfig struct {
	Model         string  `mapstructure:"model"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxIterations int     `mapstructure:"max_iterations"`

	// Endpoint settings for host-supplied executors
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// NotifyConfig configures completion notifications
type NotifyConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

package agent

import (
	"github.com/GNHua/oneclaw-sub005/config"
)

// UnlimitedIterations disables the iteration cap for a run.
const UnlimitedIterations = -1

// Profile carries per-job overrides for the global agent defaults.
// Pointer fields distinguish "not set, use the default" from an explicit
// zero. Stored as a JSON blob on the job row.
type Profile struct {
	Model         string   `json:"model,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
}

// RunConfig is the effective configuration for a single run after the
// profile override chain has been applied.
type RunConfig struct {
	Model       string
	Temperature float64

	// MaxIterations caps reasoning turns. UnlimitedIterations (or any
	// non-positive value) means no cap.
	MaxIterations int
}

// Unbounded reports whether the run has no iteration cap.
func (c RunConfig) Unbounded() bool {
	return c.MaxIterations <= 0
}

// ResolveRunConfig applies the override chain: profile value if set,
// otherwise the global default. A nil profile yields the defaults as-is.
func ResolveRunConfig(profile *Profile, defaults config.AgentConfig) RunConfig {
	cfg := RunConfig{
		Model:         defaults.Model,
		Temperature:   defaults.Temperature,
		MaxIterations: defaults.MaxIterations,
	}
	if profile == nil {
		return cfg
	}
	if profile.Model != "" {
		cfg.Model = profile.Model
	}
	if profile.Temperature != nil {
		cfg.Temperature = *profile.Temperature
	}
	if profile.MaxIterations != nil {
		cfg.MaxIterations = *profile.MaxIterations
	}
	return cfg
}

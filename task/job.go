// Package task provides the persisted job model and its SQLite stores.
package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/GNHua/oneclaw-sub005/agent"
	"github.com/GNHua/oneclaw-sub005/errors"
)

// ScheduleKind discriminates the schedule variants. Persisted as an explicit
// kind column so invalid on-disk values fail parsing loudly.
type ScheduleKind string

const (
	// ScheduleOneTime runs once at an absolute timestamp via the exact-timer
	// backend. Timing precision matters more than battery cost here.
	ScheduleOneTime ScheduleKind = "one_time"
	// ScheduleInterval runs every N minutes via the periodic backend.
	ScheduleInterval ScheduleKind = "interval"
	// ScheduleCron runs on a cron expression via the periodic backend.
	ScheduleCron ScheduleKind = "cron"
	// ScheduleConditional is reserved. It currently schedules as a
	// short-interval recurring fallback.
	ScheduleConditional ScheduleKind = "conditional"
)

// ParseScheduleKind converts a stored kind string back to a ScheduleKind.
// Unknown values are rejected rather than passed through.
func ParseScheduleKind(s string) (ScheduleKind, error) {
	switch kind := ScheduleKind(s); kind {
	case ScheduleOneTime, ScheduleInterval, ScheduleCron, ScheduleConditional:
		return kind, nil
	default:
		return "", errors.Newf("unknown schedule kind: %q", s)
	}
}

// MinIntervalMinutes is the floor for recurring intervals (battery policy).
const MinIntervalMinutes = 15

// Schedule is a tagged union: exactly one variant's fields are set,
// selected by Kind.
type Schedule struct {
	Kind            ScheduleKind
	ExecuteAt       *time.Time // one_time only
	IntervalMinutes int        // interval and conditional only
	CronExpression  string     // cron only
}

// OneTime returns a schedule that fires once at the given time.
func OneTime(at time.Time) Schedule {
	return Schedule{Kind: ScheduleOneTime, ExecuteAt: &at}
}

// Every returns a recurring schedule with a fixed interval.
func Every(minutes int) Schedule {
	return Schedule{Kind: ScheduleInterval, IntervalMinutes: minutes}
}

// Cron returns a recurring schedule driven by a cron expression.
func Cron(expr string) Schedule {
	return Schedule{Kind: ScheduleCron, CronExpression: expr}
}

// Validate checks the schedule's internal consistency against the clock.
// All failures wrap errors.ErrValidation.
func (s Schedule) Validate(now time.Time) error {
	switch s.Kind {
	case ScheduleOneTime:
		if s.ExecuteAt == nil {
			return errors.NewValidation("one-time schedule requires an execution time")
		}
		if !s.ExecuteAt.After(now) {
			return errors.NewValidation("one-time execution time %s is not in the future", s.ExecuteAt.Format(time.RFC3339))
		}
	case ScheduleInterval:
		if s.CronExpression != "" {
			return errors.NewValidation("interval schedule must not carry a cron expression")
		}
		if s.IntervalMinutes < MinIntervalMinutes {
			return errors.NewValidation("interval %d minutes is below the %d minute floor", s.IntervalMinutes, MinIntervalMinutes)
		}
	case ScheduleCron:
		if s.IntervalMinutes != 0 {
			return errors.NewValidation("cron schedule must not carry an interval")
		}
		if s.CronExpression == "" {
			return errors.NewValidation("cron schedule requires an expression")
		}
	case ScheduleConditional:
		// Reserved kind, executes as a recurring fallback. The fallback
		// interval is resolved at scheduling time from configuration.
	default:
		return errors.NewValidation("unknown schedule kind: %q", s.Kind)
	}
	return nil
}

// Constraints is opaque structured data consumed by the scheduling backend.
type Constraints struct {
	RequiresNetwork  bool `json:"requires_network,omitempty"`
	RequiresCharging bool `json:"requires_charging,omitempty"`
}

// Job is one persisted scheduled task.
type Job struct {
	ID          string
	Title       string
	Description string
	// Instruction is the natural-language task body passed to the agent.
	Instruction string

	Schedule    Schedule
	Constraints Constraints
	// Profile overrides the global agent defaults for this job's runs.
	Profile *agent.Profile

	Enabled            bool
	CreatedAt          time.Time
	LastExecutedAt     *time.Time
	ExecutionCount     int
	MaxExecutions      *int // auto-disable threshold, nil = unlimited
	NotifyOnCompletion bool

	// BackendHandle is the periodic backend's entry identifier, needed to
	// cancel that schedule later. The exact-timer backend is re-derivable
	// from the job ID and needs no handle.
	BackendHandle string

	// OriginConversationID is where results are posted back, if anywhere.
	OriginConversationID string
}

// NewJob creates a job with a fresh ID, enabled, created now.
func NewJob(title, instruction string, schedule Schedule) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Title:       title,
		Instruction: instruction,
		Schedule:    schedule,
		Enabled:     true,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks the job definition. All failures wrap errors.ErrValidation.
func (j *Job) Validate(now time.Time) error {
	if j.ID == "" {
		return errors.NewValidation("job requires an ID")
	}
	if j.Title == "" {
		return errors.NewValidation("job requires a title")
	}
	if j.Instruction == "" {
		return errors.NewValidation("job requires an instruction")
	}
	if j.MaxExecutions != nil && *j.MaxExecutions <= 0 {
		return errors.NewValidation("max executions must be positive, got %d", *j.MaxExecutions)
	}
	return j.Schedule.Validate(now)
}

// Exhausted reports whether the job has reached its execution ceiling.
func (j *Job) Exhausted() bool {
	return j.MaxExecutions != nil && j.ExecutionCount >= *j.MaxExecutions
}

// Package dispatch receives fired schedules, authenticates them, and drains
// a durable SQLite-backed trigger queue with a worker pool. Triggers carry
// only the job ID; the full job is re-read when the work item is processed.
package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Source records which entry point produced a trigger.
type Source string

const (
	SourceAlarm    Source = "alarm"
	SourcePeriodic Source = "periodic"
	SourceManual   Source = "manual"
)

// Status is the queue state of one trigger.
type Status string

const (
	// StatusPending triggers are waiting for a worker (or for their
	// next_attempt_at backoff to elapse).
	StatusPending Status = "pending"
	// StatusRunning triggers are claimed by a worker. Rows stuck here
	// after a restart are orphans and get re-queued.
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	// StatusDead triggers exhausted their retry budget.
	StatusDead Status = "dead"
)

// Trigger is one durable work item.
type Trigger struct {
	ID            string
	JobID         string
	Source        Source
	Status        Status
	Attempts      int
	MaxAttempts   int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewTrigger creates a pending trigger for the given job.
func NewTrigger(jobID string, source Source, maxAttempts int) *Trigger {
	now := time.Now().UTC()
	return &Trigger{
		ID:          uuid.NewString(),
		JobID:       jobID,
		Source:      source,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Exhausted reports whether the trigger has used up its retry budget.
func (t *Trigger) Exhausted() bool {
	return t.Attempts >= t.MaxAttempts
}

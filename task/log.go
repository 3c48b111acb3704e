package task

import "time"

// LogStatus is the lifecycle state of one execution log entry.
type LogStatus string

const (
	// LogStarted is the placeholder written when a run begins. A row stuck
	// in this state after a restart indicates the process died mid-run.
	LogStarted LogStatus = "started"
	LogSuccess LogStatus = "success"
	LogFailed  LogStatus = "failed"
	// LogCancelled marks runs aborted by shutdown or context cancellation.
	LogCancelled LogStatus = "cancelled"
)

// LogEntry is one row of the per-job execution history.
type LogEntry struct {
	ID            int64
	JobID         string
	StartedAt     time.Time
	CompletedAt   *time.Time
	Status        LogStatus
	ResultSummary string
	ErrorMessage  string
}

// Terminal reports whether the entry has reached a final status.
func (e *LogEntry) Terminal() bool {
	return e.Status != LogStarted
}

// Package notify delivers completion notifications for jobs that asked for
// them. Rendering and platform delivery are out of scope; the default
// notifier writes structured log lines the host application can surface.
package notify

import (
	"go.uber.org/zap"

	"github.com/GNHua/oneclaw-sub005/agent"
	"github.com/GNHua/oneclaw-sub005/task"
)

// Notifier receives completion events for jobs with notifyOnCompletion set.
type Notifier interface {
	NotifyCompletion(job *task.Job, result agent.Result)
}

// Func adapts a function to the Notifier interface.
type Func func(job *task.Job, result agent.Result)

// NotifyCompletion implements Notifier.
func (f Func) NotifyCompletion(job *task.Job, result agent.Result) {
	f(job, result)
}

// LogNotifier is the default sink: one structured log line per completion.
type LogNotifier struct {
	log *zap.SugaredLogger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LogNotifier{log: log}
}

// NotifyCompletion implements Notifier.
func (n *LogNotifier) NotifyCompletion(job *task.Job, result agent.Result) {
	n.log.Infow("Job completed",
		"job_id", job.ID,
		"title", job.Title,
		"summary", result.Summary,
	)
}

package dispatch

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GNHua/oneclaw-sub005/errors"
	"github.com/GNHua/oneclaw-sub005/task"
)

// Dispatcher is the receiving end of backend firings. It authenticates each
// trigger against the job store, rate limits admission, enqueues a durable
// work item, and returns immediately; execution happens on the worker pool.
type Dispatcher struct {
	jobs        *task.Store
	queue       *Store
	limiter     *rate.Limiter
	maxAttempts int
	log         *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher admitting at most triggersPerSecond
// automatic triggers into the queue.
func NewDispatcher(jobs *task.Store, queue *Store, triggersPerSecond float64, maxAttempts int, log *zap.SugaredLogger) *Dispatcher {
	if triggersPerSecond <= 0 {
		triggersPerSecond = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		jobs:        jobs,
		queue:       queue,
		limiter:     rate.NewLimiter(rate.Limit(triggersPerSecond), int(triggersPerSecond)+1),
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// OnAlarmFired handles an exact-timer firing.
func (d *Dispatcher) OnAlarmFired(jobID string) {
	d.admit(jobID, SourceAlarm)
}

// OnPeriodicDue handles a periodic backend firing.
func (d *Dispatcher) OnPeriodicDue(jobID string) {
	d.admit(jobID, SourcePeriodic)
}

// admit authenticates and enqueues an automatic trigger. Triggers for
// unknown or disabled jobs are discarded silently: schedules can outlive
// their job (deleted mid-flight, disabled between fire and dispatch) and
// that race is expected, not an error.
func (d *Dispatcher) admit(jobID string, source Source) {
	job, err := d.jobs.GetJob(jobID)
	if err != nil {
		if errors.IsNotFound(err) {
			d.log.Debugw("Discarding trigger for unknown job", "job_id", jobID, "source", source)
			return
		}
		d.log.Errorw("Failed to authenticate trigger", "job_id", jobID, "source", source, "error", err)
		return
	}
	if !job.Enabled {
		d.log.Debugw("Discarding trigger for disabled job", "job_id", jobID, "source", source)
		return
	}

	if !d.limiter.Allow() {
		d.log.Warnw("Trigger rate limit exceeded, dropping", "job_id", jobID, "source", source)
		return
	}

	if err := d.queue.Enqueue(NewTrigger(jobID, source, d.maxAttempts)); err != nil {
		d.log.Errorw("Failed to enqueue trigger", "job_id", jobID, "source", source, "error", err)
		return
	}

	d.log.Infow("Trigger enqueued", "job_id", jobID, "source", source)
}

// RunNow enqueues a manual trigger. Unlike the automatic entry points it
// bypasses the enabled gate (an explicit user action on a paused job is
// honored) and is not rate limited, but the job must exist.
func (d *Dispatcher) RunNow(jobID string) error {
	if _, err := d.jobs.GetJob(jobID); err != nil {
		return err
	}

	if err := d.queue.Enqueue(NewTrigger(jobID, SourceManual, d.maxAttempts)); err != nil {
		return err
	}

	d.log.Infow("Manual trigger enqueued", "job_id", jobID)
	return nil
}

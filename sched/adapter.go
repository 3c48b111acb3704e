package sched

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/GNHua/oneclaw-sub005/config"
	"github.com/GNHua/oneclaw-sub005/errors"
	"github.com/GNHua/oneclaw-sub005/task"
)

// TriggerSink receives backend firings. Both entry points carry only the
// job ID; everything else is re-read from the store when the trigger is
// processed.
type TriggerSink interface {
	OnAlarmFired(jobID string)
	OnPeriodicDue(jobID string)
}

// Adapter owns the job lifecycle: it validates definitions, persists them,
// and installs them on whichever backend the schedule kind selects.
type Adapter struct {
	store    *task.Store
	alarms   *AlarmBackend
	periodic *PeriodicBackend
	sink     TriggerSink
	cfg      config.SchedulerConfig
	log      *zap.SugaredLogger
}

// NewAdapter wires the adapter to its backends and the trigger sink.
func NewAdapter(store *task.Store, alarms *AlarmBackend, periodic *PeriodicBackend, sink TriggerSink, cfg config.SchedulerConfig, log *zap.SugaredLogger) *Adapter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Adapter{
		store:    store,
		alarms:   alarms,
		periodic: periodic,
		sink:     sink,
		cfg:      cfg,
		log:      log,
	}
}

// Add validates the job, persists it, and installs its schedule. Validation
// failures surface synchronously and nothing is persisted.
func (a *Adapter) Add(job *task.Job) error {
	if err := a.validate(job); err != nil {
		return err
	}

	if err := a.store.CreateJob(job); err != nil {
		return err
	}

	if err := a.install(job); err != nil {
		// Roll the persist back so a backend failure leaves no orphan row
		if delErr := a.store.DeleteJob(job.ID); delErr != nil {
			a.log.Errorw("Failed to roll back job after install failure",
				"job_id", job.ID, "error", delErr)
		}
		return err
	}

	a.log.Infow("Job scheduled", "job_id", job.ID, "title", job.Title, "kind", job.Schedule.Kind)
	return nil
}

// Remove cancels the job's schedules and deletes it.
func (a *Adapter) Remove(jobID string) error {
	a.cancelBackends(jobID)
	return a.store.DeleteJob(jobID)
}

// Pause disables the job and removes its backend schedules. The row stays.
func (a *Adapter) Pause(jobID string) error {
	if err := a.store.UpdateEnabled(jobID, false); err != nil {
		return err
	}
	a.cancelBackends(jobID)
	return nil
}

// Resume re-enables the job and reinstalls its schedule. A one-shot job
// whose time has passed while paused fires immediately.
func (a *Adapter) Resume(jobID string) error {
	if err := a.store.UpdateEnabled(jobID, true); err != nil {
		return err
	}

	job, err := a.store.GetJob(jobID)
	if err != nil {
		return err
	}

	return a.installOrFire(job, time.Now())
}

// CancelSchedules removes the job's backend schedules without touching the
// job row. Used when a job auto-disables at its execution ceiling.
func (a *Adapter) CancelSchedules(jobID string) {
	a.cancelBackends(jobID)
}

// Restore re-derives backend state from the store. Called once at daemon
// start: enabled jobs are reinstalled, and one-shot jobs whose time passed
// while the process was down fire immediately.
func (a *Adapter) Restore() error {
	jobs, err := a.store.ListEnabled()
	if err != nil {
		return errors.Wrap(err, "failed to load jobs for schedule restore")
	}

	now := time.Now()
	restored := 0
	for _, job := range jobs {
		if job.Exhausted() {
			continue
		}
		if err := a.installOrFire(job, now); err != nil {
			a.log.Errorw("Failed to restore job schedule", "job_id", job.ID, "error", err)
			continue
		}
		restored++
	}

	a.log.Infow("Restored schedules", "jobs", restored)
	return nil
}

// Stop disarms all timers and halts the cron runner.
func (a *Adapter) Stop() {
	a.alarms.Stop()
	a.periodic.Stop()
}

func (a *Adapter) validate(job *task.Job) error {
	if err := job.Validate(time.Now()); err != nil {
		return err
	}
	// Cron expressions must parse before the backend sees them
	if job.Schedule.Kind == task.ScheduleCron {
		if _, err := cron.ParseStandard(job.Schedule.CronExpression); err != nil {
			return errors.NewValidation("invalid cron expression %q: %v", job.Schedule.CronExpression, err)
		}
	}
	return nil
}

func (a *Adapter) installOrFire(job *task.Job, now time.Time) error {
	if job.Schedule.Kind == task.ScheduleOneTime &&
		job.Schedule.ExecuteAt != nil && !job.Schedule.ExecuteAt.After(now) {
		a.log.Infow("One-shot job overdue, firing immediately", "job_id", job.ID)
		a.sink.OnAlarmFired(job.ID)
		return nil
	}
	return a.install(job)
}

func (a *Adapter) install(job *task.Job) error {
	jobID := job.ID

	switch job.Schedule.Kind {
	case task.ScheduleOneTime:
		a.alarms.Schedule(jobID, *job.Schedule.ExecuteAt, func() {
			a.sink.OnAlarmFired(jobID)
		})
		return nil

	case task.ScheduleInterval, task.ScheduleCron, task.ScheduleConditional:
		spec := a.periodicSpec(job.Schedule)
		handle, err := a.periodic.Schedule(jobID, spec, job.Constraints.RequiresNetwork, func() {
			a.sink.OnPeriodicDue(jobID)
		})
		if err != nil {
			return err
		}
		if err := a.store.UpdateBackendHandle(jobID, handle); err != nil {
			return errors.Wrapf(err, "failed to persist backend handle for job %s", jobID)
		}
		return nil

	default:
		return errors.AssertionFailedf("unreachable schedule kind %q", job.Schedule.Kind)
	}
}

func (a *Adapter) periodicSpec(s task.Schedule) string {
	switch s.Kind {
	case task.ScheduleCron:
		return s.CronExpression
	case task.ScheduleConditional:
		// Reserved kind: recurring fallback at the configured cadence
		minutes := a.cfg.ConditionalFallbackMinutes
		if minutes < task.MinIntervalMinutes {
			minutes = task.MinIntervalMinutes
		}
		return fmt.Sprintf("@every %dm", minutes)
	default:
		return fmt.Sprintf("@every %dm", s.IntervalMinutes)
	}
}

// cancelBackends tries both paths unconditionally; cancelling a schedule
// that was never installed is a no-op.
func (a *Adapter) cancelBackends(jobID string) {
	alarmHit := a.alarms.Cancel(jobID)
	periodicHit := a.periodic.Cancel(jobID)
	if periodicHit {
		if err := a.store.UpdateBackendHandle(jobID, ""); err != nil && !errors.IsNotFound(err) {
			a.log.Warnw("Failed to clear backend handle", "job_id", jobID, "error", err)
		}
	}
	a.log.Debugw("Cancelled schedules", "job_id", jobID, "alarm", alarmHit, "periodic", periodicHit)
}

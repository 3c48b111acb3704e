// Package sched installs job schedules onto the two scheduling backends:
// an exact in-process timer registry for one-shot jobs and a cron runner
// for recurring work. The adapter validates before touching either backend
// and re-derives all schedules from the job store at daemon start.
package sched

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// AlarmBackend is the exact-timing path: one in-process timer per job,
// keyed by job ID. Because the key is deterministic there is no handle to
// persist; cancelling is a lookup by the same ID.
type AlarmBackend struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	log    *zap.SugaredLogger
}

// NewAlarmBackend creates an empty timer registry.
func NewAlarmBackend(log *zap.SugaredLogger) *AlarmBackend {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AlarmBackend{
		timers: make(map[string]*time.Timer),
		log:    log,
	}
}

// Schedule arms a timer that calls fire at the given time. Scheduling the
// same job ID again replaces the previous timer.
func (b *AlarmBackend) Schedule(jobID string, at time.Time, fire func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.timers[jobID]; ok {
		old.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	b.timers[jobID] = time.AfterFunc(delay, func() {
		b.forget(jobID)
		fire()
	})
	b.log.Debugw("Armed exact timer", "job_id", jobID, "at", at)
}

// Cancel disarms the job's timer if one exists. Reports whether a timer
// was actually cancelled.
func (b *AlarmBackend) Cancel(jobID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	timer, ok := b.timers[jobID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(b.timers, jobID)
	return true
}

// Stop disarms every timer. Called on daemon shutdown.
func (b *AlarmBackend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, timer := range b.timers {
		timer.Stop()
		delete(b.timers, id)
	}
}

func (b *AlarmBackend) forget(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.timers, jobID)
}

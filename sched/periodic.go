package sched

import (
	"strconv"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/GNHua/oneclaw-sub005/errors"
)

// ConnectivityChecker gates constraint-bearing schedules. Jobs declaring a
// network requirement are skipped (not failed) while offline.
type ConnectivityChecker interface {
	Online() bool
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

// AlwaysOnline is the default connectivity checker for hosts without a
// meaningful offline state.
var AlwaysOnline ConnectivityChecker = alwaysOnline{}

/// PeriodicBackend is the recurring path: a cron runner holding one entry
// per job. Entries are replaced idempotently by job ID; the runner-assigned
// entry ID is the handle the adapter persists.
type PeriodicBackend struct {
	cron         *cron.Cron
	connectivity ConnectivityChecker
	log          *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewPeriodicBackend creates a stopped cron runner. Call Start before
// scheduling work that should actually fire.
func NewPeriodicBackend(connectivity ConnectivityChecker, log *zap.SugaredLogger) *PeriodicBackend {
	if connectivity == nil {
		connectivity = AlwaysOnline
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &PeriodicBackend{
		cron:         cron.New(),
		connectivity: connectivity,
		log:          log,
		entries:      make(map[string]cron.EntryID),
	}
}

// Start begins firing entries.
func (b *PeriodicBackend) Start() {
	b.cron.Start()
}

// Stop halts the runner and waits for in-flight entry functions.
func (b *PeriodicBackend) Stop() {
	<-b.cron.Stop().Done()
}

// Schedule installs a recurring entry for the job and returns the
// backend-assigned handle. An existing entry for the same job ID is
// removed first, so re-scheduling is an idempotent replace.
func (b *PeriodicBackend) Schedule(jobID, spec string, requiresNetwork bool, fire func()) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.entries[jobID]; ok {
		b.cron.Remove(old)
		delete(b.entries, jobID)
	}

	entryID, err := b.cron.AddFunc(spec, func() {
		if requiresNetwork && !b.connectivity.Online() {
			b.log.Infow("Skipping periodic fire, network constraint unmet", "job_id", jobID)
			return
		}
		fire()
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to install periodic schedule %q for job %s", spec, jobID)
	}

	b.entries[jobID] = entryID
	b.log.Debugw("Installed periodic entry", "job_id", jobID, "spec", spec, "handle", int(entryID))
	return strconv.Itoa(int(entryID)), nil
}

// Cancel removes the job's entry if one exists. Reports whether an entry
// was actually removed.
func (b *PeriodicBackend) Cancel(jobID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entryID, ok := b.entries[jobID]
	if !ok {
		return false
	}
	b.cron.Remove(entryID)
	delete(b.entries, jobID)
	return true
}

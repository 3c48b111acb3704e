package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNHua/oneclaw-sub005/config"
	"github.com/GNHua/oneclaw-sub005/errors"
	qtesting "github.com/GNHua/oneclaw-sub005/internal/testing"
	"github.com/GNHua/oneclaw-sub005/task"
)

// recordingSink captures trigger firings for assertions.
type recordingSink struct {
	mu       sync.Mutex
	alarms   []string
	periodic []string
}

func (s *recordingSink) OnAlarmFired(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarms = append(s.alarms, jobID)
}

func (s *recordingSink) OnPeriodicDue(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periodic = append(s.periodic, jobID)
}

func (s *recordingSink) alarmCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alarms)
}

func newTestAdapter(t *testing.T) (*Adapter, *task.Store, *recordingSink) {
	t.Helper()
	db := qtesting.CreateTestDB(t)
	store := task.NewStore(db)
	sink := &recordingSink{}
	adapter := NewAdapter(store,
		NewAlarmBackend(nil),
		NewPeriodicBackend(nil, nil),
		sink,
		config.SchedulerConfig{MinIntervalMinutes: 15, ConditionalFallbackMinutes: 15},
		nil,
	)
	t.Cleanup(adapter.Stop)
	return adapter, store, sink
}

func TestAddValidatesBeforePersisting(t *testing.T) {
	adapter, store, _ := newTestAdapter(t)

	tests := []struct {
		name string
		job  *task.Job
	}{
		{"past one-shot", task.NewJob("late", "x", task.OneTime(time.Now().Add(-time.Hour)))},
		{"sub-floor interval", task.NewJob("fast", "x", task.Every(5))},
		{"bad cron expression", task.NewJob("broken", "x", task.Cron("not a cron"))},
		{"interval and cron together", task.NewJob("both", "x", task.Schedule{
			Kind: task.ScheduleInterval, IntervalMinutes: 30, CronExpression: "0 9 * * 1",
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := adapter.Add(tt.job)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err), "expected validation error, got: %v", err)

			_, err = store.GetJob(tt.job.ID)
			assert.True(t, errors.IsNotFound(err), "invalid jobs must never be persisted")
		})
	}
}

func TestAddPersistsAndInstallsPeriodic(t *testing.T) {
	adapter, store, _ := newTestAdapter(t)

	job := task.NewJob("hourly report", "summarize inbox", task.Every(60))
	require.NoError(t, adapter.Add(job))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.BackendHandle, "periodic installs persist the backend handle")
}

func TestAddOneTimeHasNoHandle(t *testing.T) {
	adapter, store, _ := newTestAdapter(t)

	job := task.NewJob("reminder", "ping me", task.OneTime(time.Now().Add(time.Hour)))
	require.NoError(t, adapter.Add(job))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Empty(t, got.BackendHandle, "exact timers are keyed by job ID, no handle to store")
}

func TestAlarmFires(t *testing.T) {
	adapter, _, sink := newTestAdapter(t)

	job := task.NewJob("soon", "x", task.OneTime(time.Now().Add(30*time.Millisecond)))
	// Install directly: Add would reject near-past times on slow runners
	require.NoError(t, adapter.store.CreateJob(job))
	require.NoError(t, adapter.install(job))

	assert.Eventually(t, func() bool { return sink.alarmCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestRemoveCancelsAndDeletes(t *testing.T) {
	adapter, store, _ := newTestAdapter(t)

	job := task.NewJob("doomed", "x", task.Every(30))
	require.NoError(t, adapter.Add(job))

	require.NoError(t, adapter.Remove(job.ID))
	_, err := store.GetJob(job.ID)
	assert.True(t, errors.IsNotFound(err))

	// Cancelling schedules for an unknown job is a no-op, but deleting is not
	assert.True(t, errors.IsNotFound(adapter.Remove(job.ID)))
}

func TestPauseResume(t *testing.T) {
	adapter, store, _ := newTestAdapter(t)

	job := task.NewJob("pausable", "x", task.Every(30))
	require.NoError(t, adapter.Add(job))

	require.NoError(t, adapter.Pause(job.ID))
	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.False(t, adapter.periodic.Cancel(job.ID), "pause removed the periodic entry")

	require.NoError(t, adapter.Resume(job.ID))
	got, err = store.GetJob(job.ID)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.True(t, adapter.periodic.Cancel(job.ID), "resume reinstalled the entry")
}

func TestResumeOverdueOneShotFiresImmediately(t *testing.T) {
	adapter, store, sink := newTestAdapter(t)

	// Persist directly with a past time, simulating time passing while paused
	job := task.NewJob("overdue", "x", task.OneTime(time.Now().Add(-time.Minute)))
	job.Enabled = false
	require.NoError(t, store.CreateJob(job))

	require.NoError(t, adapter.Resume(job.ID))
	assert.Equal(t, 1, sink.alarmCount())
}

func TestRestore(t *testing.T) {
	adapter, store, sink := newTestAdapter(t)

	overdue := task.NewJob("overdue one-shot", "x", task.OneTime(time.Now().Add(-time.Hour)))
	future := task.NewJob("future one-shot", "x", task.OneTime(time.Now().Add(time.Hour)))
	recurring := task.NewJob("recurring", "x", task.Every(30))
	disabled := task.NewJob("disabled", "x", task.Every(30))
	disabled.Enabled = false
	exhausted := task.NewJob("exhausted", "x", task.Every(30))
	one := 1
	exhausted.MaxExecutions = &one
	exhausted.ExecutionCount = 1

	for _, j := range []*task.Job{overdue, future, recurring, disabled, exhausted} {
		require.NoError(t, store.CreateJob(j))
	}

	require.NoError(t, adapter.Restore())

	assert.Equal(t, 1, sink.alarmCount(), "only the overdue one-shot fires at restore")
	assert.True(t, adapter.alarms.Cancel(future.ID), "future one-shot got a timer")
	assert.True(t, adapter.periodic.Cancel(recurring.ID), "recurring job got an entry")
	assert.False(t, adapter.periodic.Cancel(disabled.ID), "disabled jobs are not restored")
	assert.False(t, adapter.periodic.Cancel(exhausted.ID), "exhausted jobs are not restored")
}

func TestPeriodicIdempotentReplace(t *testing.T) {
	backend := NewPeriodicBackend(nil, nil)

	h1, err := backend.Schedule("job-1", "@every 30m", false, func() {})
	require.NoError(t, err)
	h2, err := backend.Schedule("job-1", "@every 45m", false, func() {})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "replacement gets a fresh handle")

	// Only one live entry remains
	assert.True(t, backend.Cancel("job-1"))
	assert.False(t, backend.Cancel("job-1"))
}

func TestConditionalFallsBackToRecurring(t *testing.T) {
	adapter, store, _ := newTestAdapter(t)

	job := task.NewJob("when idle", "tidy up", task.Schedule{Kind: task.ScheduleConditional})
	require.NoError(t, adapter.Add(job))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.BackendHandle, "conditional installs on the periodic path")
}

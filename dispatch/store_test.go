package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNHua/oneclaw-sub005/errors"
	qtesting "github.com/GNHua/oneclaw-sub005/internal/testing"
	"github.com/GNHua/oneclaw-sub005/task"
)

func seedJob(t *testing.T, jobs *task.Store) *task.Job {
	t.Helper()
	job := task.NewJob("seeded", "do things", task.Every(30))
	require.NoError(t, jobs.CreateJob(job))
	return job
}

func TestStoreEnqueueClaimComplete(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	jobs := task.NewStore(db)
	store := NewStore(db)
	job := seedJob(t, jobs)

	trigger := NewTrigger(job.ID, SourcePeriodic, 3)
	require.NoError(t, store.Enqueue(trigger))

	claimed, err := store.ClaimNext(time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, trigger.ID, claimed.ID)
	assert.Equal(t, StatusRunning, claimed.Status)
	assert.Equal(t, SourcePeriodic, claimed.Source)

	// Claimed triggers are invisible to further claims
	second, err := store.ClaimNext(time.Now())
	require.NoError(t, err)
	assert.Nil(t, second)

	require.NoError(t, store.Complete(claimed.ID))
	stats, err := store.QueueStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Done)
	assert.Zero(t, stats.Pending)
}

func TestStoreClaimOrder(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	jobs := task.NewStore(db)
	store := NewStore(db)
	job := seedJob(t, jobs)

	older := NewTrigger(job.ID, SourceAlarm, 3)
	older.CreatedAt = older.CreatedAt.Add(-time.Minute)
	newer := NewTrigger(job.ID, SourceAlarm, 3)
	require.NoError(t, store.Enqueue(newer))
	require.NoError(t, store.Enqueue(older))

	claimed, err := store.ClaimNext(time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, older.ID, claimed.ID, "oldest trigger is claimed first")
}

func TestStoreRetryBackoffGatesClaims(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	jobs := task.NewStore(db)
	store := NewStore(db)
	job := seedJob(t, jobs)

	trigger := NewTrigger(job.ID, SourcePeriodic, 3)
	require.NoError(t, store.Enqueue(trigger))

	claimed, err := store.ClaimNext(time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed)

	claimed.Attempts++
	require.NoError(t, store.Retry(claimed, "executor blew up", time.Now().Add(time.Hour)))

	// Backoff has not elapsed
	blocked, err := store.ClaimNext(time.Now())
	require.NoError(t, err)
	assert.Nil(t, blocked)

	// After the backoff window the trigger is claimable again
	reclaimed, err := store.ClaimNext(time.Now().Add(2 * time.Hour))
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, 1, reclaimed.Attempts)
	assert.Equal(t, "executor blew up", reclaimed.LastError)
}

func TestStoreMarkDead(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	jobs := task.NewStore(db)
	store := NewStore(db)
	job := seedJob(t, jobs)

	trigger := NewTrigger(job.ID, SourceManual, 1)
	require.NoError(t, store.Enqueue(trigger))
	require.NoError(t, store.MarkDead(trigger.ID, "out of retries"))

	stats, err := store.QueueStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dead)

	assert.True(t, errors.IsNotFound(store.MarkDead("missing", "x")))
}

func TestStoreRecoverOrphans(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	jobs := task.NewStore(db)
	store := NewStore(db)
	job := seedJob(t, jobs)

	trigger := NewTrigger(job.ID, SourcePeriodic, 3)
	require.NoError(t, store.Enqueue(trigger))
	_, err := store.ClaimNext(time.Now())
	require.NoError(t, err)

	// Simulate a crash: the running row is orphaned
	recovered, err := store.RecoverOrphans()
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	claimed, err := store.ClaimNext(time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed, "orphan became claimable again")
	assert.Equal(t, trigger.ID, claimed.ID)
}

func TestStoreCascadeOnJobDelete(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	jobs := task.NewStore(db)
	store := NewStore(db)
	job := seedJob(t, jobs)

	require.NoError(t, store.Enqueue(NewTrigger(job.ID, SourceAlarm, 3)))
	require.NoError(t, jobs.DeleteJob(job.ID))

	claimed, err := store.ClaimNext(time.Now())
	require.NoError(t, err)
	assert.Nil(t, claimed, "queue rows cascade with the job")
}

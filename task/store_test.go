package task

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNHua/oneclaw-sub005/agent"
	"github.com/GNHua/oneclaw-sub005/errors"
	qtesting "github.com/GNHua/oneclaw-sub005/internal/testing"
)

func TestStoreRoundtrip(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	temp := 0.7
	five := 5
	executeAt := time.Date(2027, 1, 15, 9, 30, 0, 0, time.UTC)

	job := NewJob("flight check", "Check flight prices to Tokyo", OneTime(executeAt))
	job.Description = "one-shot price check"
	job.Constraints = Constraints{RequiresNetwork: true}
	job.Profile = &agent.Profile{Model: "openai/gpt-4o", Temperature: &temp}
	job.MaxExecutions = &five
	job.NotifyOnCompletion = true
	job.OriginConversationID = "conv-123"

	require.NoError(t, store.CreateJob(job))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)

	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "flight check", got.Title)
	assert.Equal(t, "one-shot price check", got.Description)
	assert.Equal(t, ScheduleOneTime, got.Schedule.Kind)
	require.NotNil(t, got.Schedule.ExecuteAt)
	assert.True(t, got.Schedule.ExecuteAt.Equal(executeAt))
	assert.True(t, got.Constraints.RequiresNetwork)
	require.NotNil(t, got.Profile)
	assert.Equal(t, "openai/gpt-4o", got.Profile.Model)
	require.NotNil(t, got.Profile.Temperature)
	assert.Equal(t, 0.7, *got.Profile.Temperature)
	assert.True(t, got.Enabled)
	require.NotNil(t, got.MaxExecutions)
	assert.Equal(t, 5, *got.MaxExecutions)
	assert.True(t, got.NotifyOnCompletion)
	assert.Equal(t, "conv-123", got.OriginConversationID)
	assert.Nil(t, got.LastExecutedAt)
	assert.Zero(t, got.ExecutionCount)
}

func TestStoreGetJobNotFound(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	_, err := store.GetJob("nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestStoreListEnabled(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	enabled := NewJob("a", "instruction a", Every(30))
	disabled := NewJob("b", "instruction b", Every(30))
	disabled.Enabled = false
	require.NoError(t, store.CreateJob(enabled))
	require.NoError(t, store.CreateJob(disabled))

	jobs, err := store.ListEnabled()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, enabled.ID, jobs[0].ID)

	all, err := store.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStoreUpdateEnabled(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	job := NewJob("pausable", "instruction", Cron("0 9 * * 1"))
	require.NoError(t, store.CreateJob(job))

	require.NoError(t, store.UpdateEnabled(job.ID, false))
	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	err = store.UpdateEnabled("missing", true)
	assert.True(t, errors.IsNotFound(err))
}

func TestStoreUpdateBackendHandle(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	job := NewJob("periodic", "instruction", Every(45))
	require.NoError(t, store.CreateJob(job))

	require.NoError(t, store.UpdateBackendHandle(job.ID, "7"))
	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "7", got.BackendHandle)

	// Clearing the handle stores NULL, read back as empty
	require.NoError(t, store.UpdateBackendHandle(job.ID, ""))
	got, err = store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Empty(t, got.BackendHandle)
}

func TestStoreUpdateLastExecution(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	job := NewJob("counted", "instruction", Every(30))
	require.NoError(t, store.CreateJob(job))

	ranAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateLastExecution(job.ID, ranAt))
	require.NoError(t, store.UpdateLastExecution(job.ID, ranAt.Add(30*time.Minute)))

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ExecutionCount)
	require.NotNil(t, got.LastExecutedAt)
	assert.True(t, got.LastExecutedAt.Equal(ranAt.Add(30*time.Minute)))
}

func TestStoreDeleteJob(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)
	logs := NewLogStore(db)

	job := NewJob("doomed", "instruction", Every(30))
	require.NoError(t, store.CreateJob(job))
	_, err := logs.InsertStarted(job.ID, time.Now())
	require.NoError(t, err)

	require.NoError(t, store.DeleteJob(job.ID))

	_, err = store.GetJob(job.ID)
	assert.True(t, errors.IsNotFound(err))

	entries, err := logs.ForJob(job.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries, "log rows cascade with the job")

	assert.True(t, errors.IsNotFound(store.DeleteJob(job.ID)))
}

func TestStoreRejectsCorruptKind(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	_, err := db.Exec(`INSERT INTO jobs (id, title, instruction, schedule_kind, created_at)
		VALUES ('bad', 'corrupt', 'x', 'hourly', ?)`, time.Now().UTC().Format(time.RFC3339))
	require.NoError(t, err)

	_, err = store.GetJob("bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule kind")
}

func TestStoreQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO jobs").WillReturnError(assert.AnError)

	store := NewStore(db)
	job := NewJob("mocked", "instruction", Every(30))
	err = store.CreateJob(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create job")
	assert.NoError(t, mock.ExpectationsWereMet())
}

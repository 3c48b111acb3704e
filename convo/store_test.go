package convo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNHua/oneclaw-sub005/errors"
	qtesting "github.com/GNHua/oneclaw-sub005/internal/testing"
)

func TestCreateAndGet(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	conv, err := store.Create("travel planning")
	require.NoError(t, err)
	assert.False(t, conv.Ephemeral)

	got, err := store.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "travel planning", got.Title)
	assert.Zero(t, got.MessageCount)
	assert.Empty(t, got.Preview)

	_, err = store.Get("missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateEphemeral(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	conv, err := store.CreateEphemeral("scheduled: flight check")
	require.NoError(t, err)
	assert.True(t, conv.Ephemeral)

	got, err := store.Get(conv.ID)
	require.NoError(t, err)
	assert.True(t, got.Ephemeral)
}

func TestAppendMessageMaintainsMetadata(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	conv, err := store.Create("chat")
	require.NoError(t, err)

	_, err = store.AppendMessage(conv.ID, RoleUser, "check flight prices")
	require.NoError(t, err)
	_, err = store.AppendMessage(conv.ID, RoleAssistant, "cheapest flight is $612 on March 14")
	require.NoError(t, err)

	got, err := store.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	assert.Equal(t, "cheapest flight is $612 on March 14", got.Preview)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))

	messages, err := store.Messages(conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, RoleAssistant, messages[1].Role)
}

func TestAppendMessageTruncatesPreview(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	conv, err := store.Create("long")
	require.NoError(t, err)

	long := strings.Repeat("x", 500)
	_, err = store.AppendMessage(conv.ID, RoleAssistant, long)
	require.NoError(t, err)

	got, err := store.Get(conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Preview, previewLength)
}

func TestAppendMessageMissingConversation(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	_, err := store.AppendMessage("missing", RoleUser, "hello")
	require.Error(t, err)
}

func TestDeleteCascades(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db)

	conv, err := store.CreateEphemeral("doomed")
	require.NoError(t, err)
	_, err = store.AppendMessage(conv.ID, RoleAssistant, "scratch work")
	require.NoError(t, err)

	require.NoError(t, store.Delete(conv.ID))

	_, err = store.Get(conv.ID)
	assert.True(t, errors.IsNotFound(err))

	messages, err := store.Messages(conv.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	// Cleanup paths may delete twice; the second is a no-op
	assert.NoError(t, store.Delete(conv.ID))
}

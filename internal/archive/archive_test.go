package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classline/classline/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "archive.db"), 1000)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestAppendAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	first := &models.Message{
		ID: "m-1", SenderID: "u-1", SenderName: "Anna Ivanova",
		Text: "first", Timestamp: base,
	}
	second := &models.Message{
		ID: "m-2", SenderID: "u-2", SenderName: "Test Parent",
		Text: "second", Timestamp: base.Add(time.Minute),
		Attachments: []models.Attachment{{Kind: models.AttachmentImage, URL: "img/1.png"}},
	}

	require.NoError(t, store.Append(ctx, "g-1-homework", first))
	require.NoError(t, store.Append(ctx, "g-1-homework", second))
	require.NoError(t, store.Append(ctx, "g-1-zoom", &models.Message{
		ID: "m-3", SenderID: "u-1", Text: "elsewhere", Timestamp: base,
	}))

	messages, err := store.List(ctx, "g-1-homework", 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "m-1", messages[0].ID)
	require.Equal(t, "m-2", messages[1].ID)
	require.Equal(t, base, messages[0].Timestamp)
	require.Len(t, messages[1].Attachments, 1)
	require.Equal(t, models.AttachmentImage, messages[1].Attachments[0].Kind)
}

func TestAppendSameIDIsNoOp(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	message := &models.Message{
		ID: "m-1", SenderID: "u-1", Text: "original",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, store.Append(ctx, "dm-1", message))

	duplicate := message.Clone()
	duplicate.Text = "changed"
	require.NoError(t, store.Append(ctx, "dm-1", duplicate))

	messages, err := store.List(ctx, "dm-1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "original", messages[0].Text)
}

func TestConversationsListsDistinctIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, store.Append(ctx, "g-1-homework", &models.Message{
		ID: "m-1", SenderID: "u-1", Text: "a", Timestamp: base,
	}))
	require.NoError(t, store.Append(ctx, "g-1-homework", &models.Message{
		ID: "m-2", SenderID: "u-1", Text: "b", Timestamp: base.Add(time.Second),
	}))
	require.NoError(t, store.Append(ctx, "dm-1", &models.Message{
		ID: "m-3", SenderID: "u-2", Text: "c", Timestamp: base,
	}))

	ids, err := store.Conversations(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"dm-1", "g-1-homework"}, ids)
}

func TestListHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "dm-1", &models.Message{
			ID:        string(rune('a' + i)),
			SenderID:  "u-1",
			Text:      "msg",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	messages, err := store.List(ctx, "dm-1", 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)
}

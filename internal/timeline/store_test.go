package timeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classline/classline/internal/directory"
	"github.com/classline/classline/internal/models"
)

type fakeSender struct {
	err   error
	calls atomic.Int32
}

func (f *fakeSender) PostMessage(ctx context.Context, conversationID string, message *models.Message) error {
	f.calls.Add(1)
	return f.err
}

type fakeArchiver struct {
	mu             sync.Mutex
	byConversation map[string][]*models.Message
}

func (f *fakeArchiver) Append(ctx context.Context, conversationID string, message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byConversation == nil {
		f.byConversation = make(map[string][]*models.Message)
	}
	for _, existing := range f.byConversation[conversationID] {
		if existing.ID == message.ID {
			return nil
		}
	}
	f.byConversation[conversationID] = append(f.byConversation[conversationID], message.Clone())
	return nil
}

func (f *fakeArchiver) stored(conversationID string) []*models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Message(nil), f.byConversation[conversationID]...)
}

func testSender() *models.User {
	return &models.User{ID: "u-1", Name: "Anna Ivanova", Role: models.RoleTeacher}
}

func fastDelays() Delays {
	return Delays{
		Sent:      10 * time.Millisecond,
		Delivered: 30 * time.Millisecond,
		Read:      60 * time.Millisecond,
	}
}

func statusOf(t *testing.T, store *Store, conversationID, messageID string) models.MessageStatus {
	t.Helper()
	for _, message := range store.ListMessages(conversationID) {
		if message.ID == messageID {
			return message.Status
		}
	}
	t.Fatalf("message %s not found", messageID)
	return ""
}

func TestSendAdvancesThroughLifecycle(t *testing.T) {
	dir := directory.New("u-sup", "chat-all")
	store := New(dir, &fakeSender{}, WithDelays(fastDelays()))

	message := store.Send(context.Background(), "chat-1", "hello", nil, testSender())
	require.Equal(t, models.StatusSending, message.Status)
	require.Equal(t, "hello", message.Text)

	require.Eventually(t, func() bool {
		return statusOf(t, store, "chat-1", message.ID) == models.StatusRead
	}, time.Second, 5*time.Millisecond)

	// Late timers and acknowledgements never regress the status.
	store.Confirm("chat-1", message.ID, models.StatusSent)
	require.Equal(t, models.StatusRead, statusOf(t, store, "chat-1", message.ID))
}

func TestSendStatusNeverRegresses(t *testing.T) {
	dir := directory.New("u-sup", "chat-all")
	store := New(dir, &fakeSender{}, WithDelays(fastDelays()))

	message := store.Send(context.Background(), "chat-1", "hello", nil, testSender())

	lastRank := models.StatusSending.Rank()
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		rank := statusOf(t, store, "chat-1", message.ID).Rank()
		require.GreaterOrEqual(t, rank, lastRank)
		lastRank = rank
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, models.StatusRead.Rank(), lastRank)
}

func TestSendFailureKeepsOptimisticState(t *testing.T) {
	dir := directory.New("u-sup", "chat-all")
	sender := &fakeSender{err: errors.New("boom")}
	store := New(dir, sender, WithDelays(fastDelays()))

	message := store.Send(context.Background(), "chat-1", "hello", nil, testSender())

	require.Eventually(t, func() bool {
		return sender.calls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	messages := store.ListMessages("chat-1")
	require.Len(t, messages, 1)
	require.Equal(t, message.ID, messages[0].ID)
}

func TestSendUpdatesChatPreviewAndOrder(t *testing.T) {
	dir := directory.New("u-sup", "chat-all")
	dir.UpsertChat(&models.Chat{ID: "g-pinned", Type: models.ChatTypeGroup, IsPinned: true})
	dir.UpsertChat(&models.Chat{ID: "g-a", Type: models.ChatTypeGroup})
	dir.UpsertChat(&models.Chat{ID: "g-b", Type: models.ChatTypeGroup})

	store := New(dir, nil, WithDelays(fastDelays()))
	store.Send(context.Background(), "g-b", "latest news", nil, testSender())

	chats := dir.Chats()
	require.Equal(t, "g-pinned", chats[0].ID)
	require.Equal(t, "g-b", chats[1].ID)
	require.Equal(t, "latest news", chats[1].LastMessage)
}

func TestUpdateStatusIsMonotonic(t *testing.T) {
	dir := directory.New("u-sup", "chat-all")
	store := New(dir, nil)
	store.Append("chat-1", &models.Message{ID: "m-1", SenderID: "u-1", Status: models.StatusDelivered})

	require.True(t, store.UpdateStatus("chat-1", "m-1", models.StatusSent))
	require.Equal(t, models.StatusDelivered, statusOf(t, store, "chat-1", "m-1"))

	require.True(t, store.UpdateStatus("chat-1", "m-1", models.StatusRead))
	require.Equal(t, models.StatusRead, statusOf(t, store, "chat-1", "m-1"))

	require.False(t, store.UpdateStatus("chat-1", "m-1", "bogus"))
}

func TestToggleReactionTwiceRestoresState(t *testing.T) {
	dir := directory.New("u-sup", "chat-all")
	store := New(dir, nil)
	store.Append("chat-1", &models.Message{
		ID: "m-1", SenderID: "u-2",
		Reactions: []models.Reaction{{Emoji: "❤️", Count: 1, Actors: []string{"u-9"}}},
	})

	before := store.ListMessages("chat-1")[0].Reactions

	require.True(t, store.ToggleReaction("chat-1", "m-1", "👍", "U1"))
	middle := store.ListMessages("chat-1")[0].Reactions
	require.Len(t, middle, 2)
	require.Equal(t, "👍", middle[1].Emoji)
	require.Equal(t, 1, middle[1].Count)
	require.Equal(t, []string{"U1"}, middle[1].Actors)

	require.True(t, store.ToggleReaction("chat-1", "m-1", "👍", "U1"))
	after := store.ListMessages("chat-1")[0].Reactions
	require.Equal(t, before, after)
}

func TestReactionCountTracksActors(t *testing.T) {
	dir := directory.New("u-sup", "chat-all")
	store := New(dir, nil)
	store.Append("chat-1", &models.Message{ID: "m-1", SenderID: "u-2"})

	store.ToggleReaction("chat-1", "m-1", "👍", "U1")
	store.ToggleReaction("chat-1", "m-1", "👍", "U2")

	reactions := store.ListMessages("chat-1")[0].Reactions
	require.Len(t, reactions, 1)
	require.Equal(t, len(reactions[0].Actors), reactions[0].Count)
	require.Equal(t, 2, reactions[0].Count)

	store.ToggleReaction("chat-1", "m-1", "👍", "U1")
	store.ToggleReaction("chat-1", "m-1", "👍", "U2")
	require.Empty(t, store.ListMessages("chat-1")[0].Reactions)
}

func TestReplaceMessagesArchivesRemoteHistory(t *testing.T) {
	dir := directory.New("u-sup", "chat-all")
	archiver := &fakeArchiver{}
	store := New(dir, nil, WithArchiver(archiver))

	store.ReplaceMessages("dm-1", []*models.Message{
		{ID: "m-1", SenderID: "u-2", Text: "first"},
		{ID: "m-2", SenderID: "u-2", Text: "second"},
	})

	stored := archiver.stored("dm-1")
	require.Len(t, stored, 2)
	require.Equal(t, "m-1", stored[0].ID)
	require.Equal(t, "m-2", stored[1].ID)
}

func TestRestoreOnlyFillsEmptyTimelines(t *testing.T) {
	dir := directory.New("u-sup", "chat-all")
	store := New(dir, nil)

	archived := []*models.Message{{ID: "m-old", SenderID: "u-2", Text: "from archive"}}
	store.Restore("dm-1", archived)
	messages := store.ListMessages("dm-1")
	require.Len(t, messages, 1)
	require.Equal(t, "m-old", messages[0].ID)

	// A populated timeline wins over the archive copy.
	store.Append("dm-2", &models.Message{ID: "m-live", SenderID: "u-1", Text: "live"})
	store.Restore("dm-2", archived)
	messages = store.ListMessages("dm-2")
	require.Len(t, messages, 1)
	require.Equal(t, "m-live", messages[0].ID)
}

func TestReplaceMessagesKeepsInFlightAndAcknowledges(t *testing.T) {
	dir := directory.New("u-sup", "chat-all")
	store := New(dir, nil)

	store.Append("chat-1", &models.Message{ID: "m-own", SenderID: "u-1", Status: models.StatusSent})
	store.Append("chat-1", &models.Message{ID: "m-flight", SenderID: "u-1", Status: models.StatusSending})

	store.ReplaceMessages("chat-1", []*models.Message{
		{ID: "m-remote", SenderID: "u-2"},
		{ID: "m-own", SenderID: "u-1"},
	})

	messages := store.ListMessages("chat-1")
	require.Len(t, messages, 3)
	require.Equal(t, "m-remote", messages[0].ID)
	// The echoed own message counts as acknowledged.
	require.Equal(t, models.StatusDelivered, messages[1].Status)
	// The in-flight optimistic send stays at the tail.
	require.Equal(t, "m-flight", messages[2].ID)
	require.Equal(t, models.StatusSending, messages[2].Status)
}

package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classline/classline/internal/api"
	"github.com/classline/classline/internal/directory"
	"github.com/classline/classline/internal/events"
	"github.com/classline/classline/internal/models"
	"github.com/classline/classline/internal/timeline"
	"github.com/classline/classline/internal/unread"
)

type fakeRemote struct {
	mu           stdsync.Mutex
	users        []*models.User
	chats        *api.ChatsSnapshot
	chatsErr     error
	messageCalls int
	messagesFn   func(call int, conversationID string) []*models.Message
}

func (f *fakeRemote) ListUsers(ctx context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users, nil
}

func (f *fakeRemote) ListChats(ctx context.Context) (*api.ChatsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats, f.chatsErr
}

func (f *fakeRemote) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	f.mu.Lock()
	f.messageCalls++
	call := f.messageCalls
	fn := f.messagesFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(call, conversationID), nil
}

func newTestSyncer(remote Remote) (*Syncer, *directory.Model, *unread.Accountant, *timeline.Store) {
	dir := directory.New("u-sup", "chat-all")
	dir.UpsertChat(&models.Chat{ID: "g-1", Type: models.ChatTypeGroup})
	dir.EnsureCanonicalTopics("g-1")

	timelines := timeline.New(dir, nil)
	accountant := unread.New(dir, nil)

	syncer := New(Options{
		Remote:     remote,
		Directory:  dir,
		Timelines:  timelines,
		Accountant: accountant,
		Interval:   time.Hour,
	})
	return syncer, dir, accountant, timelines
}

func remoteSummary(dir *directory.Model, unreadBySuffix map[string]int) *api.ChatsSnapshot {
	topics := dir.Topics("g-1")
	for _, topic := range topics {
		topic.Unread = unreadBySuffix[topic.Suffix()]
	}
	chats := dir.Chats()
	return &api.ChatsSnapshot{
		Chats:  chats,
		Topics: map[string][]*models.Topic{"g-1": topics},
	}
}

func TestTickAppliesRemoteSummary(t *testing.T) {
	remote := &fakeRemote{}
	syncer, dir, _, _ := newTestSyncer(remote)

	remote.chats = remoteSummary(dir, map[string]int{
		models.TopicSuffixHomework: 3,
		models.TopicSuffixPayment:  1,
	})

	syncer.Tick(context.Background())

	chat, ok := dir.Chat("g-1")
	require.True(t, ok)
	require.Equal(t, 4, chat.Unread)

	// Canonical set survives a wholesale replace.
	require.Len(t, dir.Topics("g-1"), len(models.CanonicalTopics))
}

func TestTickFetchFailureKeepsLocalState(t *testing.T) {
	remote := &fakeRemote{chatsErr: errors.New("network down")}
	syncer, dir, _, _ := newTestSyncer(remote)

	dir.SetTopicUnread(models.TopicID("g-1", models.TopicSuffixImportant), 2)
	syncer.Tick(context.Background())

	chat, _ := dir.Chat("g-1")
	require.Equal(t, 2, chat.Unread)
}

func TestTickKeepsActiveConversationAtZero(t *testing.T) {
	remote := &fakeRemote{}
	syncer, dir, accountant, _ := newTestSyncer(remote)

	homework := models.TopicID("g-1", models.TopicSuffixHomework)
	accountant.EnterConversation(homework)

	remote.chats = remoteSummary(dir, map[string]int{
		models.TopicSuffixHomework:  5,
		models.TopicSuffixImportant: 1,
	})
	syncer.Tick(context.Background())

	for _, topic := range dir.Topics("g-1") {
		if topic.ID == homework {
			require.Equal(t, 0, topic.Unread)
		}
	}
	chat, _ := dir.Chat("g-1")
	require.Equal(t, 1, chat.Unread)
}

func TestStaleMessageFetchIsDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	remote := &fakeRemote{}
	remote.messagesFn = func(call int, conversationID string) []*models.Message {
		if call == 1 {
			close(entered)
			<-release
			return []*models.Message{{ID: "m-old", SenderID: "u-2", Text: "old"}}
		}
		return []*models.Message{{ID: "m-new", SenderID: "u-2", Text: "new"}}
	}

	syncer, _, _, timelines := newTestSyncer(remote)
	ctx := context.Background()

	syncer.FetchMessages(ctx, "g-1")
	<-entered
	syncer.FetchMessages(ctx, "g-1")

	require.Eventually(t, func() bool {
		messages := timelines.ListMessages("g-1")
		return len(messages) == 1 && messages[0].ID == "m-new"
	}, time.Second, 5*time.Millisecond)

	close(release)
	// The superseded first fetch must not overwrite the newer result.
	time.Sleep(50 * time.Millisecond)
	messages := timelines.ListMessages("g-1")
	require.Len(t, messages, 1)
	require.Equal(t, "m-new", messages[0].ID)
}

func TestMessagePostedEventIncrementsInactiveConversation(t *testing.T) {
	remote := &fakeRemote{}
	bus := events.NewBus()

	dir := directory.New("u-sup", "chat-all")
	dir.UpsertChat(&models.Chat{ID: "g-1", Type: models.ChatTypeGroup})
	dir.EnsureCanonicalTopics("g-1")
	timelines := timeline.New(dir, nil)
	accountant := unread.New(dir, nil)

	syncer := New(Options{
		Remote:     remote,
		Directory:  dir,
		Timelines:  timelines,
		Accountant: accountant,
		Bus:        bus,
		Interval:   time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	syncer.Start(ctx)
	defer syncer.Stop()

	homework := models.TopicID("g-1", models.TopicSuffixHomework)
	bus.Publish(events.Event{Type: events.TypeMessagePosted, ChatID: "g-1", TopicID: homework})

	chat, _ := dir.Chat("g-1")
	require.Equal(t, 1, chat.Unread)
}

func TestMessagePostedEventRefreshesActiveConversation(t *testing.T) {
	remote := &fakeRemote{}
	remote.messagesFn = func(call int, conversationID string) []*models.Message {
		return []*models.Message{{ID: "m-1", SenderID: "u-2", Text: "fresh"}}
	}
	bus := events.NewBus()

	dir := directory.New("u-sup", "chat-all")
	dir.UpsertChat(&models.Chat{
		ID: "dm-1", Type: models.ChatTypePrivate,
		Participants: []string{"u-1", "u-2"},
	})
	timelines := timeline.New(dir, nil)
	accountant := unread.New(dir, nil)
	accountant.EnterConversation("dm-1")

	syncer := New(Options{
		Remote:     remote,
		Directory:  dir,
		Timelines:  timelines,
		Accountant: accountant,
		Bus:        bus,
		Interval:   time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	syncer.Start(ctx)
	defer syncer.Stop()

	bus.Publish(events.Event{Type: events.TypeMessagePosted, ChatID: "dm-1"})

	require.Eventually(t, func() bool {
		messages := timelines.ListMessages("dm-1")
		return len(messages) == 1 && messages[0].Text == "fresh"
	}, time.Second, 5*time.Millisecond)

	// The open conversation's counter stays at zero.
	chat, _ := dir.Chat("dm-1")
	require.Equal(t, 0, chat.Unread)
}

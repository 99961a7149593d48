// Package app wires the engine together: every component is constructed
// explicitly here in dependency order and handed its collaborators, with no
// ambient shared globals.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/classline/classline/internal/api"
	"github.com/classline/classline/internal/archive"
	"github.com/classline/classline/internal/cache"
	"github.com/classline/classline/internal/config"
	"github.com/classline/classline/internal/directory"
	"github.com/classline/classline/internal/events"
	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/models"
	"github.com/classline/classline/internal/notify"
	"github.com/classline/classline/internal/seed"
	"github.com/classline/classline/internal/sync"
	"github.com/classline/classline/internal/timeline"
	"github.com/classline/classline/internal/unread"
)

// App is the composition root. Construction order: cache, directory,
// archive, API client, timelines, notifications, unread accounting, event
// bus, sync loop. Close unwinds in reverse with the cache flush last.
type App struct {
	Config        *config.Config
	Cache         *cache.Store
	Directory     *directory.Model
	Archive       *archive.Store
	Client        *api.Client
	Timelines     *timeline.Store
	Notifications *notify.Service
	Dispatcher    *notify.Dispatcher
	Accountant    *unread.Accountant
	Bus           *events.Bus
	Feed          *events.WSFeed
	Syncer        *sync.Syncer

	logger     zerolog.Logger
	runCtx     context.Context
	feedCancel context.CancelFunc
}

// New builds the full component graph and restores persisted state.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		logger: logging.Component("app"),
	}

	a.Cache = cache.New(cfg.CachePath(), cache.WithDebounce(cfg.Cache.FlushDebounce))
	a.Cache.Load()

	// One-shot repair: private chats must never carry the pinned flag.
	a.Cache.RunMigration("strip-private-pins", func(snap *cache.Snapshot) {
		for _, chat := range snap.Chats {
			if chat.Type == models.ChatTypePrivate && chat.IsPinned {
				chat.IsPinned = false
			}
		}
	})

	snap := a.Cache.Snapshot()

	a.Directory = directory.New(seed.SupervisorID, seed.AllTeachersChatID)
	a.loadDirectory(snap)

	store, err := archive.Open(cfg.ArchivePath(), cfg.Archive.BusyTimeoutMs)
	if err != nil {
		// Storage failures never block startup; history just stops accruing.
		a.logger.Warn().Err(err).Str("path", cfg.ArchivePath()).Msg("message archive unavailable")
	} else {
		a.Archive = store
	}

	a.Client = api.NewClient(cfg.Server.BaseURL, cfg.Server.Timeout,
		api.WithConversationResolver(a.resolveConversation))
	if snap.Session.Authenticated {
		a.Client.SetActingUser(snap.Session.UserID)
	}

	timelineOpts := []timeline.Option{
		timeline.WithDelays(timeline.Delays{
			Sent:      cfg.Timeline.SentDelay,
			Delivered: cfg.Timeline.DeliveredDelay,
			Read:      cfg.Timeline.ReadDelay,
		}),
	}
	if a.Archive != nil {
		timelineOpts = append(timelineOpts, timeline.WithArchiver(a.Archive))
	}
	a.Timelines = timeline.New(a.Directory, a.Client, timelineOpts...)
	a.Timelines.LoadAll(snap.Timelines)
	a.restoreArchivedTimelines()

	a.Notifications = notify.NewService(a.Cache)
	a.Dispatcher = notify.NewDispatcher(a.Notifications, notify.NewTerminalNotifier())
	a.Accountant = unread.New(a.Directory, a.Dispatcher)
	if snap.LastOpenConversation != "" {
		a.Accountant.SetActive(snap.LastOpenConversation)
	}

	a.Bus = events.NewBus()
	a.Feed = events.NewWSFeed(cfg.Server.EventsURL, cfg.Sync.ReconnectInterval, a.Bus)

	a.Syncer = sync.New(sync.Options{
		Remote:     a.Client,
		Directory:  a.Directory,
		Timelines:  a.Timelines,
		Accountant: a.Accountant,
		Settings:   a.Notifications,
		Bus:        a.Bus,
		Interval:   cfg.Sync.PollInterval,
		Persist:    a.PersistSoon,
		Role:       a.sessionRole,
	})

	return a, nil
}

// loadDirectory seeds the directory from the snapshot, falling back to the
// compiled-in roster on a fresh install.
func (a *App) loadDirectory(snap cache.Snapshot) {
	if len(snap.Users) > 0 {
		a.Directory.ReplaceUsers(snap.Users)
	} else {
		a.Directory.ReplaceUsers(seed.Users())
	}
	if len(snap.Chats) > 0 {
		a.Directory.ReplaceChats(snap.Chats)
	} else {
		a.Directory.ReplaceChats(seed.Chats())
	}
	if len(snap.Topics) > 0 {
		a.Directory.ReplaceAllTopics(snap.Topics)
	}
	for _, chat := range a.Directory.Chats() {
		if chat.Type == models.ChatTypeGroup {
			a.Directory.EnsureCanonicalTopics(chat.ID)
		}
	}
}

// restoreArchivedTimelines rehydrates conversations the snapshot does not
// carry from the local history archive. This is how message history survives
// a schema-version reset: the archive is keyed by message ID and is never
// wiped with the snapshot.
func (a *App) restoreArchivedTimelines() {
	if a.Archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conversations, err := a.Archive.Conversations(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("archive scan failed")
		return
	}
	for _, conversationID := range conversations {
		if len(a.Timelines.ListMessages(conversationID)) > 0 {
			continue
		}
		messages, err := a.Archive.List(ctx, conversationID, 0)
		if err != nil {
			a.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("archive read failed")
			continue
		}
		a.Timelines.Restore(conversationID, messages)
	}
}

// resolveConversation maps a conversation ID onto wire identifiers using the
// directory's ownership index.
func (a *App) resolveConversation(conversationID string) (string, string) {
	if chat, topic, ok := a.Directory.OwningChat(conversationID); ok {
		if topic != nil {
			return chat.ID, topic.ID
		}
		return chat.ID, ""
	}
	return conversationID, ""
}

func (a *App) sessionRole() models.Role {
	return a.Cache.Snapshot().Session.Role
}

// Session returns the persisted session state.
func (a *App) Session() cache.Session {
	return a.Cache.Snapshot().Session
}

// Start launches the signaling feed and the sync loop.
func (a *App) Start(ctx context.Context) {
	a.runCtx = ctx
	feedCtx, cancel := context.WithCancel(ctx)
	a.feedCancel = cancel
	go a.Feed.Run(feedCtx)
	a.Syncer.Start(ctx)
}

// Login authenticates against the remote service and persists the session.
func (a *App) Login(ctx context.Context, phone, password string) (*models.User, error) {
	user, err := a.Client.Login(ctx, phone, password)
	if err != nil {
		return nil, err
	}

	a.Client.SetActingUser(user.ID)
	a.Directory.UpsertUser(user)
	a.Cache.Update(func(snap *cache.Snapshot) {
		snap.Session = cache.Session{
			Authenticated: true,
			UserID:        user.ID,
			Name:          user.Name,
			Role:          user.Role,
		}
	})
	a.PersistSoon()
	return user, nil
}

// Logout clears the persisted session.
func (a *App) Logout() {
	a.Client.SetActingUser("")
	a.Cache.Update(func(snap *cache.Snapshot) {
		snap.Session = cache.Session{}
	})
	a.PersistSoon()
}

// OpenConversation enters a conversation, auto-selecting a topic for group
// chats, and kicks off a timeline refresh. Returns the selected
// conversation ID.
func (a *App) OpenConversation(conversationID string) string {
	selected := a.Accountant.EnterConversation(conversationID)
	if a.runCtx != nil {
		a.Syncer.FetchMessages(a.runCtx, selected)
	}
	a.Cache.Update(func(snap *cache.Snapshot) {
		snap.LastOpenConversation = selected
	})
	a.PersistSoon()
	return selected
}

// CloseConversation leaves the active conversation.
func (a *App) CloseConversation() {
	a.Accountant.LeaveConversation()
	a.Cache.Update(func(snap *cache.Snapshot) {
		snap.LastOpenConversation = ""
	})
	a.PersistSoon()
}

// SendMessage composes and optimistically sends a message as the current
// session user.
func (a *App) SendMessage(conversationID, text string, attachments []models.Attachment) *models.Message {
	session := a.Session()
	sender := &models.User{ID: session.UserID, Name: session.Name, Role: session.Role}
	if user, ok := a.Directory.User(session.UserID); ok {
		sender = user
	}
	ctx := a.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	message := a.Timelines.Send(ctx, conversationID, text, attachments, sender)
	a.PersistSoon()
	return message
}

// CreateGroupChat registers a group chat locally and posts it to the remote
// service. The local copy is authoritative for this session: the staff
// participation invariant and the canonical topic set are applied
// immediately, and a remote write failure leaves it in place.
func (a *App) CreateGroupChat(ctx context.Context, chat *models.Chat) error {
	chat.Type = models.ChatTypeGroup
	if err := chat.Validate(); err != nil {
		return err
	}

	a.Directory.UpsertChat(chat)
	a.Directory.EnsureCanonicalTopics(chat.ID)
	a.PersistSoon()

	err := a.Client.CreateChat(ctx, &api.CreateChatRequest{
		Chat:   chat,
		Topics: a.Directory.Topics(chat.ID),
	})
	if err != nil {
		a.logger.Error().Err(err).Str("chat_id", chat.ID).Msg("remote chat creation failed")
	}
	return err
}

// SaveUser creates or updates a directory entry locally and writes it
// through to the remote service.
func (a *App) SaveUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	_, exists := a.Directory.User(user.ID)

	a.Directory.UpsertUser(user)
	a.PersistSoon()

	var err error
	if exists {
		err = a.Client.UpdateUser(ctx, user)
	} else {
		err = a.Client.CreateUser(ctx, user)
	}
	if err != nil {
		a.logger.Error().Err(err).Str("user_id", user.ID).Msg("remote user write failed")
	}
	return err
}

// RemoveUser drops a user from the active directory. Conversations keep
// their captured sender name/avatar snapshots.
func (a *App) RemoveUser(ctx context.Context, userID string) error {
	a.Directory.RemoveUser(userID)
	a.PersistSoon()

	if err := a.Client.DeleteUser(ctx, userID); err != nil {
		a.logger.Error().Err(err).Str("user_id", userID).Msg("remote user delete failed")
		return err
	}
	return nil
}

// MentionCandidates lists directory users for the autocomplete engine.
func (a *App) MentionCandidates() []*models.User {
	return a.Directory.Users()
}

// PersistSoon copies live state into the snapshot and schedules a debounced
// flush.
func (a *App) PersistSoon() {
	users := a.Directory.Users()
	chats := a.Directory.Chats()
	topics := a.Directory.AllTopics()
	timelines := a.Timelines.SnapshotAll()

	a.Cache.Update(func(snap *cache.Snapshot) {
		snap.Users = users
		snap.Chats = chats
		snap.Topics = topics
		snap.Timelines = timelines
	})
}

// Close stops background work and flushes state. The cache flush runs last.
func (a *App) Close() {
	a.Syncer.Stop()
	if a.feedCancel != nil {
		a.feedCancel()
	}
	a.Bus.Close()
	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("archive close failed")
		}
	}
	a.PersistSoon()
	a.Cache.Close()
}

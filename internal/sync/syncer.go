// Package sync drives reconciliation with the remote service: the initial
// directory load, the fixed-interval summary poll and the signaling-event
// reactions.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classline/classline/internal/api"
	"github.com/classline/classline/internal/directory"
	"github.com/classline/classline/internal/events"
	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/metrics"
	"github.com/classline/classline/internal/models"
	"github.com/classline/classline/internal/notify"
	"github.com/classline/classline/internal/observability"
	"github.com/classline/classline/internal/timeline"
	"github.com/classline/classline/internal/unread"
)

const subscriptionID = "syncer"

// Remote is the read surface of the persistence service the loop consumes.
type Remote interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	ListChats(ctx context.Context) (*api.ChatsSnapshot, error)
	ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error)
}

// Syncer runs the reconciliation loop. Each conversation moves through
// Idle -> Fetching -> (Applied | FetchFailed -> Idle); a fetch failure falls
// back to cached local state and is logged, never surfaced.
type Syncer struct {
	remote     Remote
	dir        *directory.Model
	timelines  *timeline.Store
	accountant *unread.Accountant
	settings   *notify.Service
	bus        events.Publisher
	interval   time.Duration
	persist    func()
	role       func() models.Role
	logger     zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	genMu       sync.Mutex
	generations map[string]uint64
}

// Options configures a Syncer.
type Options struct {
	Remote     Remote
	Directory  *directory.Model
	Timelines  *timeline.Store
	Accountant *unread.Accountant
	Settings   *notify.Service
	Bus        events.Publisher
	Interval   time.Duration

	// Persist is called after every applied tick to schedule a cache flush.
	Persist func()

	// Role resolves the current session role for notification defaults.
	Role func() models.Role
}

// New creates a Syncer.
func New(opts Options) *Syncer {
	interval := opts.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	persist := opts.Persist
	if persist == nil {
		persist = func() {}
	}
	role := opts.Role
	if role == nil {
		role = func() models.Role { return "" }
	}
	return &Syncer{
		remote:      opts.Remote,
		dir:         opts.Directory,
		timelines:   opts.Timelines,
		accountant:  opts.Accountant,
		settings:    opts.Settings,
		bus:         opts.Bus,
		interval:    interval,
		persist:     persist,
		role:        role,
		logger:      logging.Component("sync"),
		generations: make(map[string]uint64),
	}
}

// Start begins the poll loop and subscribes to the signaling bus. Safe to
// call once; a second call while running is a no-op.
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	if s.bus != nil {
		err := s.bus.Subscribe(subscriptionID, events.Filter{}, func(event events.Event) {
			s.handleEvent(runCtx, event)
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("bus subscription failed")
		}
	}

	s.wg.Add(1)
	go s.run(runCtx)
}

// Stop halts the loop and waits for in-flight work.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if s.bus != nil {
		_ = s.bus.Unsubscribe(subscriptionID)
	}
	cancel()
	s.wg.Wait()
}

func (s *Syncer) run(ctx context.Context) {
	defer s.wg.Done()

	s.InitialFetch(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// InitialFetch loads the full directory and chat list. When the local
// directory is already populated, failures are ignored and the cached state
// keeps serving.
func (s *Syncer) InitialFetch(ctx context.Context) {
	haveLocal := len(s.dir.Users()) > 0

	users, err := s.remote.ListUsers(ctx)
	if err != nil {
		if haveLocal {
			s.logger.Debug().Err(err).Msg("initial user fetch failed, keeping cached directory")
		} else {
			s.logger.Warn().Err(err).Msg("initial user fetch failed with empty directory")
			observability.CaptureErr(err)
		}
	} else if len(users) > 0 {
		s.dir.ReplaceUsers(users)
	}

	s.Tick(ctx)
}

// Tick runs one poll cycle: fetch summaries, feed unread deltas through the
// accounting pipeline, then replace the chat/topic arrays wholesale. Purely
// local annotations not echoed by the remote snapshot do not survive this.
func (s *Syncer) Tick(ctx context.Context) {
	snapshot, err := s.remote.ListChats(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("summary fetch failed, serving cached state")
		observability.CaptureErr(err)
		return
	}
	if snapshot == nil {
		return
	}

	changed := s.unreadDeltas(snapshot)

	if len(snapshot.Chats) > 0 {
		s.dir.ReplaceChats(snapshot.Chats)
	}
	if len(snapshot.Topics) > 0 {
		s.dir.ReplaceAllTopics(snapshot.Topics)
	}

	for _, chat := range s.dir.Chats() {
		if chat.Type != models.ChatTypeGroup {
			continue
		}
		s.dir.EnsureCanonicalTopics(chat.ID)
		if s.settings != nil {
			s.settings.ApplyAdminDefaults(s.role(), s.dir.Topics(chat.ID))
		}
	}

	// The open conversation stays pinned at zero even when the remote
	// summary says otherwise.
	if active := s.accountant.Active(); active != "" {
		s.accountant.MarkRead(active)
	}

	s.accountant.AfterTick(changed)
	metrics.SyncTicks.Inc()
	s.persist()
}

// unreadDeltas lists the conversations whose remote unread counter is above
// the local one, skipping the active conversation.
func (s *Syncer) unreadDeltas(snapshot *api.ChatsSnapshot) []string {
	active := s.accountant.Active()
	var changed []string

	for chatID, topics := range snapshot.Topics {
		local := make(map[string]int)
		for _, topic := range s.dir.Topics(chatID) {
			local[topic.ID] = topic.Unread
		}
		for _, topic := range topics {
			if topic.ID == active {
				continue
			}
			if topic.Unread > local[topic.ID] {
				changed = append(changed, topic.ID)
			}
		}
	}

	for _, chat := range snapshot.Chats {
		if _, hasTopics := snapshot.Topics[chat.ID]; hasTopics {
			continue
		}
		if chat.ID == active {
			continue
		}
		if current, ok := s.dir.Chat(chat.ID); !ok || chat.Unread > current.Unread {
			changed = append(changed, chat.ID)
		}
	}
	return changed
}

// FetchMessages refreshes one conversation's timeline. Each fetch is tagged
// with a generation number; a result superseded by a newer fetch for the
// same conversation is discarded instead of producing a stale write.
func (s *Syncer) FetchMessages(ctx context.Context, conversationID string) {
	gen := s.nextGeneration(conversationID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		remote, err := s.remote.ListMessages(ctx, conversationID)
		if err != nil {
			s.logger.Debug().Err(err).Str("conversation_id", conversationID).Msg("message fetch failed, keeping local timeline")
			observability.CaptureErr(err)
			return
		}
		if !s.isCurrentGeneration(conversationID, gen) {
			metrics.StaleFetchesDropped.Inc()
			s.logger.Debug().Str("conversation_id", conversationID).Msg("dropping superseded message fetch")
			return
		}
		s.timelines.ReplaceMessages(conversationID, remote)
		s.persist()
	}()
}

// RefreshUsers re-fetches the full directory.
func (s *Syncer) RefreshUsers(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		users, err := s.remote.ListUsers(ctx)
		if err != nil {
			s.logger.Debug().Err(err).Msg("user refresh failed, keeping cached directory")
			return
		}
		if len(users) > 0 {
			s.dir.ReplaceUsers(users)
			s.persist()
		}
	}()
}

// handleEvent reacts to one signaling event.
func (s *Syncer) handleEvent(ctx context.Context, event events.Event) {
	switch event.Type {
	case events.TypeUserChanged:
		s.RefreshUsers(ctx)
	case events.TypeMessagePosted:
		conversationID := event.ConversationID()
		if conversationID == "" {
			return
		}
		if conversationID == s.accountant.Active() {
			s.FetchMessages(ctx, conversationID)
			return
		}
		s.accountant.OnExternalUpdate(conversationID, 1)
		s.accountant.AfterTick([]string{conversationID})
		s.persist()
	}
}

func (s *Syncer) nextGeneration(conversationID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[conversationID]++
	return s.generations[conversationID]
}

func (s *Syncer) isCurrentGeneration(conversationID string, gen uint64) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[conversationID] == gen
}

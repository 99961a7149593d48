// Package timeline owns the per-conversation message logs and the optimistic
// send lifecycle.
package timeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classline/classline/internal/directory"
	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/models"
)

// Default local acknowledgement delays, relative to the original send.
const (
	DefaultSentDelay      = 500 * time.Millisecond
	DefaultDeliveredDelay = 1000 * time.Millisecond
	DefaultReadDelay      = 2000 * time.Millisecond
)

// Sender dispatches a composed message to the remote service.
type Sender interface {
	PostMessage(ctx context.Context, conversationID string, message *models.Message) error
}

// Archiver persists messages to the local history archive. Best effort.
type Archiver interface {
	Append(ctx context.Context, conversationID string, message *models.Message) error
}

// Delays configures the simulated acknowledgement schedule.
type Delays struct {
	Sent      time.Duration
	Delivered time.Duration
	Read      time.Duration
}

// DefaultDelays returns the standard acknowledgement schedule.
func DefaultDelays() Delays {
	return Delays{
		Sent:      DefaultSentDelay,
		Delivered: DefaultDeliveredDelay,
		Read:      DefaultReadDelay,
	}
}

// Store is the message timeline store. All mutation is serialized through a
// single mutex; append order within a conversation is caller order.
type Store struct {
	delays  Delays
	sender  Sender
	archive Archiver
	dir     *directory.Model
	logger  zerolog.Logger
	now     func() time.Time

	mu        sync.Mutex
	timelines map[string][]*models.Message
}

// Option configures a Store.
type Option func(*Store)

// WithDelays overrides the acknowledgement schedule.
func WithDelays(d Delays) Option {
	return func(s *Store) {
		if d.Sent > 0 {
			s.delays.Sent = d.Sent
		}
		if d.Delivered > 0 {
			s.delays.Delivered = d.Delivered
		}
		if d.Read > 0 {
			s.delays.Read = d.Read
		}
	}
}

// WithArchiver attaches a local history archive.
func WithArchiver(a Archiver) Option {
	return func(s *Store) { s.archive = a }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store. The sender may be nil for offline operation; sends
// then stay in their locally simulated lifecycle.
func New(dir *directory.Model, sender Sender, opts ...Option) *Store {
	store := &Store{
		delays:    DefaultDelays(),
		sender:    sender,
		dir:       dir,
		logger:    logging.Component("timeline"),
		now:       func() time.Time { return time.Now().UTC() },
		timelines: make(map[string][]*models.Message),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Append adds a message to the end of a conversation's timeline.
func (s *Store) Append(conversationID string, message *models.Message) {
	if message == nil {
		return
	}
	s.mu.Lock()
	s.timelines[conversationID] = append(s.timelines[conversationID], message.Clone())
	s.mu.Unlock()
}

// ListMessages returns the conversation's messages in arrival order.
func (s *Store) ListMessages(conversationID string) []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.timelines[conversationID]
	out := make([]*models.Message, len(messages))
	for i, message := range messages {
		out[i] = message.Clone()
	}
	return out
}

// ReplaceMessages applies a remote message list to the conversation. Local
// optimistic messages the remote has not echoed yet are kept at the tail, and
// own messages the remote does echo are treated as acknowledged: their status
// advances to at least delivered, never backward.
func (s *Store) ReplaceMessages(conversationID string, remote []*models.Message) {
	s.mu.Lock()

	local := s.timelines[conversationID]
	next := make([]*models.Message, 0, len(remote)+len(local))
	seen := make(map[string]struct{}, len(remote))
	localByID := make(map[string]*models.Message, len(local))
	for _, message := range local {
		localByID[message.ID] = message
	}

	for _, message := range remote {
		copied := message.Clone()
		if prev, ok := localByID[copied.ID]; ok && prev.Status != "" {
			// Server echo acknowledges the message.
			copied.Status = maxStatus(prev.Status, models.StatusDelivered)
		}
		next = append(next, copied)
		seen[copied.ID] = struct{}{}
	}
	for _, message := range local {
		if _, ok := seen[message.ID]; ok {
			continue
		}
		if message.Status != "" {
			// In-flight optimistic send not yet visible remotely.
			next = append(next, message)
		}
	}

	s.timelines[conversationID] = next
	s.mu.Unlock()

	s.archiveAll(conversationID, remote)
}

// archiveAll writes fetched messages into the local history archive so they
// survive snapshot resets. Duplicate IDs are no-ops at the archive layer.
func (s *Store) archiveAll(conversationID string, messages []*models.Message) {
	if s.archive == nil || len(messages) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, message := range messages {
		if err := s.archive.Append(ctx, conversationID, message); err != nil {
			s.logger.Warn().Err(err).Str("message_id", message.ID).Msg("archive write failed")
			return
		}
	}
}

// Restore installs archived history for a conversation the snapshot does not
// carry. A conversation already holding messages is left alone.
func (s *Store) Restore(conversationID string, messages []*models.Message) {
	if len(messages) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timelines[conversationID]) > 0 {
		return
	}
	copied := make([]*models.Message, len(messages))
	for i, message := range messages {
		copied[i] = message.Clone()
	}
	s.timelines[conversationID] = copied
}

// LoadAll installs persisted timelines (startup).
func (s *Store) LoadAll(timelines map[string][]*models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timelines = make(map[string][]*models.Message, len(timelines))
	for conversationID, messages := range timelines {
		copied := make([]*models.Message, len(messages))
		for i, message := range messages {
			copied[i] = message.Clone()
		}
		s.timelines[conversationID] = copied
	}
}

// SnapshotAll exports every timeline keyed by conversation ID (persistence).
func (s *Store) SnapshotAll() map[string][]*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]*models.Message, len(s.timelines))
	for conversationID, messages := range s.timelines {
		copied := make([]*models.Message, len(messages))
		for i, message := range messages {
			copied[i] = message.Clone()
		}
		out[conversationID] = copied
	}
	return out
}

// UpdateStatus advances a message's delivery status. Transitions are
// monotonic: attempts to move backward are ignored.
func (s *Store) UpdateStatus(conversationID, messageID string, status models.MessageStatus) bool {
	if status.Rank() < 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range s.timelines[conversationID] {
		if message.ID != messageID {
			continue
		}
		if message.Status == "" || message.Status.Before(status) {
			message.Status = status
		}
		return true
	}
	return false
}

// ToggleReaction toggles emoji by actor on a message. Toggling twice restores
// the original state; an entry with no remaining actors is removed.
func (s *Store) ToggleReaction(conversationID, messageID, emoji, actorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range s.timelines[conversationID] {
		if message.ID != messageID {
			continue
		}
		message.Reactions = toggleReaction(message.Reactions, emoji, actorID)
		return true
	}
	return false
}

func toggleReaction(reactions []models.Reaction, emoji, actorID string) []models.Reaction {
	for i := range reactions {
		if reactions[i].Emoji != emoji {
			continue
		}
		actors := reactions[i].Actors
		for j, actor := range actors {
			if actor == actorID {
				actors = append(actors[:j], actors[j+1:]...)
				if len(actors) == 0 {
					return append(reactions[:i], reactions[i+1:]...)
				}
				reactions[i].Actors = actors
				reactions[i].Count = len(actors)
				return reactions
			}
		}
		reactions[i].Actors = append(actors, actorID)
		reactions[i].Count = len(reactions[i].Actors)
		return reactions
	}
	return append(reactions, models.Reaction{
		Emoji:  emoji,
		Count:  1,
		Actors: []string{actorID},
	})
}

func maxStatus(a, b models.MessageStatus) models.MessageStatus {
	if a.Before(b) {
		return b
	}
	return a
}

// Package unread tracks per-conversation unread counters and drives the
// notification watermark.
package unread

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/classline/classline/internal/directory"
	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/models"
	"github.com/classline/classline/internal/notify"
)

// Accountant owns unread accounting. Every mutation ends with the owning
// group chat's unread field re-derived as the sum of its topics' counters,
// which the directory enforces.
type Accountant struct {
	dir        *directory.Model
	dispatcher *notify.Dispatcher
	logger     zerolog.Logger

	mu     sync.Mutex
	active string // currently open conversation ID, "" when none
}

// New creates an Accountant. The dispatcher may be nil when notification
// side effects are not wanted (tests).
func New(dir *directory.Model, dispatcher *notify.Dispatcher) *Accountant {
	return &Accountant{
		dir:        dir,
		dispatcher: dispatcher,
		logger:     logging.Component("unread"),
	}
}

// Active returns the currently open conversation ID.
func (a *Accountant) Active() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// SetActive records the currently open conversation without marking it read.
func (a *Accountant) SetActive(conversationID string) {
	a.mu.Lock()
	a.active = conversationID
	a.mu.Unlock()
}

// EnterConversation opens a conversation and marks it read. Entering a group
// chat without an explicit topic auto-selects one (the "important" topic when
// present, else the first canonical topic) and marks only that topic read.
// Returns the conversation that ended up selected.
func (a *Accountant) EnterConversation(conversationID string) string {
	selected := conversationID
	if chat, topic, ok := a.dir.OwningChat(conversationID); ok {
		if topic == nil && chat.Type == models.ChatTypeGroup {
			if defaultTopic, ok := a.dir.DefaultTopic(chat.ID); ok {
				selected = defaultTopic.ID
			}
		}
	}

	a.SetActive(selected)
	a.MarkRead(selected)
	return selected
}

// LeaveConversation clears the active conversation.
func (a *Accountant) LeaveConversation() {
	a.SetActive("")
}

// MarkRead zeroes the conversation's unread counter. For a topic, sibling
// topics are untouched; the owning chat's sum is re-derived.
func (a *Accountant) MarkRead(conversationID string) {
	if a.dir.SetTopicUnread(conversationID, 0) {
		return
	}
	a.dir.SetChatUnread(conversationID, 0)
}

// OnExternalUpdate increments the conversation's unread counter by delta,
// unless the conversation is currently open; the open conversation's counter
// stays at zero and no increment is recorded.
func (a *Accountant) OnExternalUpdate(conversationID string, delta int) {
	if delta <= 0 {
		return
	}
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()

	if conversationID == active {
		// Keep the open conversation pinned at zero.
		a.MarkRead(conversationID)
		return
	}

	if a.dir.AddTopicUnread(conversationID, delta) {
		return
	}
	if !a.dir.AddChatUnread(conversationID, delta) {
		a.logger.Debug().Str("conversation_id", conversationID).Msg("unread update for unknown conversation")
	}
}

// TotalUnread sums unread across the directory.
func (a *Accountant) TotalUnread() int {
	return a.dir.TotalUnread()
}

// AfterTick feeds the notification watermark after a synchronization tick.
// changed lists the conversations whose counters rose during the tick.
func (a *Accountant) AfterTick(changed []string) {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Observe(a.dir.TotalUnread(), changed)
}

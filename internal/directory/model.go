// Package directory owns the canonical user, chat and topic collections and
// derives role-based visibility over them.
package directory

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/models"
)

// Model is the canonical directory. All mutation goes through its methods and
// is serialized by a single mutex, preserving the ordering guarantees the
// rest of the engine depends on.
type Model struct {
	supervisorID      string
	allTeachersChatID string
	logger            zerolog.Logger

	mu     sync.Mutex
	users  map[string]*models.User
	chats  []*models.Chat // arrival order
	topics map[string][]*models.Topic
}

// New creates an empty directory model.
func New(supervisorID, allTeachersChatID string) *Model {
	return &Model{
		supervisorID:      supervisorID,
		allTeachersChatID: allTeachersChatID,
		logger:            logging.Component("directory"),
		users:             make(map[string]*models.User),
		topics:            make(map[string][]*models.Topic),
	}
}

// SupervisorID returns the designated supervisor administrator.
func (m *Model) SupervisorID() string { return m.supervisorID }

// RoleOf resolves a user ID to its role, "" when unknown.
func (m *Model) RoleOf(userID string) models.Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[userID]; ok {
		return user.Role
	}
	return ""
}

// User returns the user by ID.
func (m *Model) User(userID string) (*models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, false
	}
	copied := *user
	return &copied, true
}

// Users returns all directory users.
func (m *Model) Users() []*models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, user := range m.users {
		copied := *user
		out = append(out, &copied)
	}
	return out
}

// Teachers returns the IDs of all current teachers.
func (m *Model) Teachers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teachersLocked()
}

func (m *Model) teachersLocked() []string {
	var ids []string
	for id, user := range m.users {
		if user.Role == models.RoleTeacher {
			ids = append(ids, id)
		}
	}
	return ids
}

// ReplaceUsers swaps the user collection wholesale (full-replace
// reconciliation from the synchronization loop).
func (m *Model) ReplaceUsers(users []*models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[string]*models.User, len(users))
	for _, user := range users {
		copied := *user
		m.users[user.ID] = &copied
	}
	// Staff membership may have changed; re-enforce group participation.
	for _, chat := range m.chats {
		if chat.Type == models.ChatTypeGroup {
			m.enforceGroupParticipantsLocked(chat)
		}
	}
}

// UpsertUser adds or updates a single user.
func (m *Model) UpsertUser(user *models.User) {
	if user == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *user
	m.users[user.ID] = &copied
	if copied.Role == models.RoleTeacher {
		for _, chat := range m.chats {
			if chat.Type == models.ChatTypeGroup {
				m.enforceGroupParticipantsLocked(chat)
			}
		}
	}
}

// RemoveUser takes a user out of the active directory. Conversations keep
// their last-known sender snapshots, so history is unaffected.
func (m *Model) RemoveUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
}

// Chat returns a copy of the chat by ID.
func (m *Model) Chat(chatID string) (*models.Chat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.chatLocked(chatID)
	if chat == nil {
		return nil, false
	}
	return chat.Clone(), true
}

func (m *Model) chatLocked(chatID string) *models.Chat {
	for _, chat := range m.chats {
		if chat.ID == chatID {
			return chat
		}
	}
	return nil
}

// Chats returns all chats in arrival order.
func (m *Model) Chats() []*models.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Chat, len(m.chats))
	for i, chat := range m.chats {
		out[i] = chat.Clone()
	}
	return out
}

// ReplaceChats swaps the chat collection wholesale, enforcing the group
// participation invariant on every incoming chat. Note this is a full
// replace, not a merge: purely-local annotations not echoed by the remote
// snapshot are overwritten.
func (m *Model) ReplaceChats(chats []*models.Chat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats = make([]*models.Chat, 0, len(chats))
	for _, chat := range chats {
		copied := chat.Clone()
		if copied.Type == models.ChatTypeGroup {
			m.enforceGroupParticipantsLocked(copied)
		}
		m.chats = append(m.chats, copied)
	}
}

// UpsertChat adds a chat or replaces it in place, preserving arrival order.
func (m *Model) UpsertChat(chat *models.Chat) {
	if chat == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := chat.Clone()
	if copied.Type == models.ChatTypeGroup {
		m.enforceGroupParticipantsLocked(copied)
	}
	for i, existing := range m.chats {
		if existing.ID == copied.ID {
			m.chats[i] = copied
			return
		}
	}
	m.chats = append(m.chats, copied)
}

// UpsertParticipant adds a user to a chat, re-enforcing the chat-type
// invariant.
func (m *Model) UpsertParticipant(chatID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.chatLocked(chatID)
	if chat == nil {
		return false
	}
	if !chat.HasParticipant(userID) {
		chat.Participants = append(chat.Participants, userID)
	}
	if chat.Type == models.ChatTypeGroup {
		m.enforceGroupParticipantsLocked(chat)
	}
	return true
}

// RemoveParticipant removes a user from a chat. Teachers and the supervisor
// are immediately re-added to group chats by the invariant.
func (m *Model) RemoveParticipant(chatID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.chatLocked(chatID)
	if chat == nil {
		return false
	}
	out := chat.Participants[:0]
	for _, id := range chat.Participants {
		if id != userID {
			out = append(out, id)
		}
	}
	chat.Participants = out
	if chat.Type == models.ChatTypeGroup {
		m.enforceGroupParticipantsLocked(chat)
	}
	return true
}

// ReplaceParticipants swaps a chat's participant set, then re-enforces the
// invariant so every teacher and the supervisor stay in group chats.
func (m *Model) ReplaceParticipants(chatID string, participants []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.chatLocked(chatID)
	if chat == nil {
		return false
	}
	chat.Participants = append([]string(nil), participants...)
	if chat.Type == models.ChatTypeGroup {
		m.enforceGroupParticipantsLocked(chat)
	}
	return true
}

// enforceGroupParticipantsLocked guarantees the group chat invariant: the
// participant set always includes every current teacher and the supervisor.
func (m *Model) enforceGroupParticipantsLocked(chat *models.Chat) {
	required := append(m.teachersLocked(), m.supervisorID)
	for _, id := range required {
		if id != "" && !chat.HasParticipant(id) {
			chat.Participants = append(chat.Participants, id)
		}
	}
	chat.NormalizeParticipants()
}

// UpdatePreview refreshes a conversation's last-message summary. For topics
// the owning chat's preview is refreshed as well.
func (m *Model) UpdatePreview(conversationID, preview string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chat := m.chatLocked(conversationID); chat != nil {
		chat.LastMessage = preview
		chat.LastActivity = at
		return
	}
	for chatID, topics := range m.topics {
		for _, topic := range topics {
			if topic.ID == conversationID {
				topic.LastMessage = preview
				topic.LastActivity = at
				if chat := m.chatLocked(chatID); chat != nil {
					chat.LastMessage = preview
					chat.LastActivity = at
				}
				return
			}
		}
	}
}

// MoveAfterPinned reorders the chat to just after the pinned block, the
// position a freshly active conversation takes.
func (m *Model) MoveAfterPinned(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	index := -1
	for i, chat := range m.chats {
		if chat.ID == chatID {
			index = i
			break
		}
	}
	if index < 0 {
		return
	}
	chat := m.chats[index]
	if chat.IsPinned {
		return
	}
	m.chats = append(m.chats[:index], m.chats[index+1:]...)
	insert := 0
	for i, existing := range m.chats {
		if existing.IsPinned {
			insert = i + 1
		}
	}
	m.chats = append(m.chats[:insert], append([]*models.Chat{chat}, m.chats[insert:]...)...)
}

// OwningChat resolves a conversation ID to its chat. For a topic ID the
// second return is the topic, nil for a plain chat ID.
func (m *Model) OwningChat(conversationID string) (*models.Chat, *models.Topic, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chat := m.chatLocked(conversationID); chat != nil {
		return chat.Clone(), nil, true
	}
	for chatID, topics := range m.topics {
		for _, topic := range topics {
			if topic.ID == conversationID {
				chat := m.chatLocked(chatID)
				if chat == nil {
					return nil, nil, false
				}
				return chat.Clone(), topic.Clone(), true
			}
		}
	}
	return nil, nil, false
}

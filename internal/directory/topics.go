package directory

import (
	"github.com/classline/classline/internal/models"
)

// Topics returns a chat's topics in enumeration order.
func (m *Model) Topics(chatID string) []*models.Topic {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := m.topics[chatID]
	out := make([]*models.Topic, len(topics))
	for i, topic := range topics {
		out[i] = topic.Clone()
	}
	return out
}

// ReplaceTopics swaps a chat's topic list wholesale, then self-heals the
// canonical set.
func (m *Model) ReplaceTopics(chatID string, topics []*models.Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]*models.Topic, len(topics))
	for i, topic := range topics {
		copied[i] = topic.Clone()
	}
	m.topics[chatID] = copied
	m.ensureCanonicalTopicsLocked(chatID)
	m.recomputeChatUnreadLocked(chatID)
}

// ReplaceAllTopics swaps the whole topic map (sync reconciliation).
func (m *Model) ReplaceAllTopics(topics map[string][]*models.Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = make(map[string][]*models.Topic, len(topics))
	for chatID, list := range topics {
		copied := make([]*models.Topic, len(list))
		for i, topic := range list {
			copied[i] = topic.Clone()
		}
		m.topics[chatID] = copied
	}
	for _, chat := range m.chats {
		if chat.Type == models.ChatTypeGroup {
			m.ensureCanonicalTopicsLocked(chat.ID)
			m.recomputeChatUnreadLocked(chat.ID)
		}
	}
}

// AllTopics returns the whole topic map keyed by chat ID (persistence).
func (m *Model) AllTopics() map[string][]*models.Topic {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]*models.Topic, len(m.topics))
	for chatID, topics := range m.topics {
		copied := make([]*models.Topic, len(topics))
		for i, topic := range topics {
			copied[i] = topic.Clone()
		}
		out[chatID] = copied
	}
	return out
}

// EnsureCanonicalTopics backfills any canonical topic missing from the group
// chat, leaving existing topics untouched. Returns the IDs of added topics.
func (m *Model) EnsureCanonicalTopics(chatID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureCanonicalTopicsLocked(chatID)
}

func (m *Model) ensureCanonicalTopicsLocked(chatID string) []string {
	chat := m.chatLocked(chatID)
	if chat == nil || chat.Type != models.ChatTypeGroup {
		return nil
	}

	existing := make(map[string]struct{})
	for _, topic := range m.topics[chatID] {
		if suffix := topic.Suffix(); suffix != "" {
			existing[suffix] = struct{}{}
		}
	}

	var added []string
	for _, canonical := range models.CanonicalTopics {
		if _, ok := existing[canonical.Suffix]; ok {
			continue
		}
		topic := &models.Topic{
			ID:     models.TopicID(chatID, canonical.Suffix),
			ChatID: chatID,
			Name:   canonical.Name,
			Icon:   canonical.Icon,
		}
		m.topics[chatID] = append(m.topics[chatID], topic)
		added = append(added, topic.ID)
	}
	if len(added) > 0 {
		m.logger.Info().Str("chat_id", chatID).Strs("topics", added).Msg("backfilled canonical topics")
	}
	return added
}

// SetTopicUnread sets a topic's unread counter and recomputes the owning
// chat's derived unread sum.
func (m *Model) SetTopicUnread(topicID string, unread int) bool {
	if unread < 0 {
		unread = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for chatID, topics := range m.topics {
		for _, topic := range topics {
			if topic.ID == topicID {
				topic.Unread = unread
				m.recomputeChatUnreadLocked(chatID)
				return true
			}
		}
	}
	return false
}

// AddTopicUnread increments a topic's unread counter by delta.
func (m *Model) AddTopicUnread(topicID string, delta int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for chatID, topics := range m.topics {
		for _, topic := range topics {
			if topic.ID == topicID {
				topic.Unread += delta
				if topic.Unread < 0 {
					topic.Unread = 0
				}
				m.recomputeChatUnreadLocked(chatID)
				return true
			}
		}
	}
	return false
}

// SetChatUnread sets a topic-less chat's unread counter. For group chats with
// topics the field is derived, so the call recomputes instead.
func (m *Model) SetChatUnread(chatID string, unread int) bool {
	if unread < 0 {
		unread = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.chatLocked(chatID)
	if chat == nil {
		return false
	}
	if len(m.topics[chatID]) > 0 {
		m.recomputeChatUnreadLocked(chatID)
		return true
	}
	chat.Unread = unread
	return true
}

// AddChatUnread increments a topic-less chat's unread counter by delta.
func (m *Model) AddChatUnread(chatID string, delta int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.chatLocked(chatID)
	if chat == nil {
		return false
	}
	if len(m.topics[chatID]) > 0 {
		m.recomputeChatUnreadLocked(chatID)
		return true
	}
	chat.Unread += delta
	if chat.Unread < 0 {
		chat.Unread = 0
	}
	return true
}

// RecomputeChatUnread re-derives the chat's unread field as the sum of its
// topics' counters.
func (m *Model) RecomputeChatUnread(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputeChatUnreadLocked(chatID)
}

func (m *Model) recomputeChatUnreadLocked(chatID string) {
	chat := m.chatLocked(chatID)
	if chat == nil {
		return
	}
	topics := m.topics[chatID]
	if len(topics) == 0 {
		return
	}
	sum := 0
	for _, topic := range topics {
		sum += topic.Unread
	}
	chat.Unread = sum
}

// TotalUnread sums unread across every chat (group unread is already the sum
// of its topics).
func (m *Model) TotalUnread() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, chat := range m.chats {
		total += chat.Unread
	}
	return total
}

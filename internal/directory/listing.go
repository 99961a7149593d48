package directory

import (
	"github.com/classline/classline/internal/models"
)

// Entry is one sidebar row: a chat tagged with the bucket it renders in.
// Bucketed entries appear contiguously after their anchor chat.
type Entry struct {
	Chat   *models.Chat
	Bucket Bucket
}

// ListVisibleChats returns the viewer's ordered chat list. Ordering: the
// all-teachers chat first, then pinned chats, then the rest in arrival order.
// The collapsible buckets are spliced in after their anchor: after the
// all-teachers chat for administrators, after the supervisor's own direct
// chat for teachers. Parents and students get only their own group chats.
func (m *Model) ListVisibleChats(role models.Role, viewerID string) []Entry {
	m.mu.Lock()
	chats := make([]*models.Chat, len(m.chats))
	for i, chat := range m.chats {
		chats[i] = chat.Clone()
	}
	m.mu.Unlock()

	roleOf := m.RoleOf

	var primary, teacherDMs, otherStudents []*models.Chat
	for _, chat := range chats {
		switch VisibilityPolicy(role, viewerID, m.supervisorID, chat, roleOf) {
		case BucketPrimary:
			primary = append(primary, chat)
		case BucketTeacherDMs:
			teacherDMs = append(teacherDMs, chat)
		case BucketOtherStudents:
			otherStudents = append(otherStudents, chat)
		}
	}

	ordered := orderPrimary(primary, m.allTeachersChatID)

	if role != models.RoleAdmin && role != models.RoleTeacher {
		return tagEntries(ordered, nil, nil, "")
	}

	anchor := ""
	switch role {
	case models.RoleAdmin:
		anchor = m.allTeachersChatID
	case models.RoleTeacher:
		// The teacher's direct chat with the supervisor.
		for _, chat := range ordered {
			if chat.Type == models.ChatTypePrivate && chat.OtherParticipant(viewerID) == m.supervisorID {
				anchor = chat.ID
				break
			}
		}
	}

	return tagEntries(ordered, teacherDMs, otherStudents, anchor)
}

// orderPrimary applies the primary ordering: the all-teachers chat first,
// then pinned, then the rest in arrival order.
func orderPrimary(chats []*models.Chat, allTeachersChatID string) []*models.Chat {
	var allTeachers, pinned, rest []*models.Chat
	for _, chat := range chats {
		switch {
		case chat.ID == allTeachersChatID:
			allTeachers = append(allTeachers, chat)
		case chat.IsPinned:
			pinned = append(pinned, chat)
		default:
			rest = append(rest, chat)
		}
	}
	out := make([]*models.Chat, 0, len(chats))
	out = append(out, allTeachers...)
	out = append(out, pinned...)
	out = append(out, rest...)
	return out
}

func tagEntries(primary, teacherDMs, otherStudents []*models.Chat, anchor string) []Entry {
	out := make([]Entry, 0, len(primary)+len(teacherDMs)+len(otherStudents))
	spliced := false

	splice := func() {
		for _, chat := range teacherDMs {
			out = append(out, Entry{Chat: chat, Bucket: BucketTeacherDMs})
		}
		for _, chat := range otherStudents {
			out = append(out, Entry{Chat: chat, Bucket: BucketOtherStudents})
		}
		spliced = true
	}

	for _, chat := range primary {
		out = append(out, Entry{Chat: chat, Bucket: BucketPrimary})
		if !spliced && anchor != "" && chat.ID == anchor {
			splice()
		}
	}
	if !spliced {
		splice()
	}
	return out
}

// ListVisibleTopics returns the topics of a chat the role may see, in
// enumeration order.
func (m *Model) ListVisibleTopics(role models.Role, chatID string) []*models.Topic {
	m.mu.Lock()
	topics := make([]*models.Topic, 0, len(m.topics[chatID]))
	for _, topic := range m.topics[chatID] {
		topics = append(topics, topic.Clone())
	}
	m.mu.Unlock()

	out := topics[:0]
	for _, topic := range topics {
		if TopicVisible(role, topic) {
			out = append(out, topic)
		}
	}
	return out
}

// DefaultTopic picks the topic auto-selected when a group chat is entered
// without an explicit selection: the "important" topic when present, else the
// first canonical topic in enumeration order.
func (m *Model) DefaultTopic(chatID string) (*models.Topic, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := m.topics[chatID]
	if len(topics) == 0 {
		return nil, false
	}
	for _, topic := range topics {
		if topic.Suffix() == models.TopicSuffixImportant {
			return topic.Clone(), true
		}
	}
	for _, canonical := range models.CanonicalTopics {
		for _, topic := range topics {
			if topic.Suffix() == canonical.Suffix {
				return topic.Clone(), true
			}
		}
	}
	return topics[0].Clone(), true
}

package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classline/classline/internal/models"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m := New(supervisorID, allTeachers)
	m.ReplaceUsers([]*models.User{
		{ID: supervisorID, Name: "Maria Petrova", Role: models.RoleAdmin},
		{ID: "u-teacher-1", Name: "Anna Ivanova", Role: models.RoleTeacher},
		{ID: "u-teacher-2", Name: "Sergey Volkov", Role: models.RoleTeacher},
		{ID: "u-parent-1", Name: "Test Parent", Role: models.RoleParent},
	})
	return m
}

func TestGroupChatAlwaysIncludesStaff(t *testing.T) {
	m := newTestModel(t)
	m.UpsertChat(&models.Chat{
		ID: "g-1", Name: "Group", Type: models.ChatTypeGroup,
		Participants: []string{"u-parent-1"},
	})

	chat, ok := m.Chat("g-1")
	require.True(t, ok)
	require.True(t, chat.HasParticipant(supervisorID))
	require.True(t, chat.HasParticipant("u-teacher-1"))
	require.True(t, chat.HasParticipant("u-teacher-2"))
	require.True(t, chat.HasParticipant("u-parent-1"))
}

func TestNewTeacherJoinsEveryGroupChat(t *testing.T) {
	m := newTestModel(t)
	m.UpsertChat(&models.Chat{ID: "g-1", Type: models.ChatTypeGroup})

	m.UpsertUser(&models.User{ID: "u-teacher-3", Name: "New Teacher", Role: models.RoleTeacher})

	chat, ok := m.Chat("g-1")
	require.True(t, ok)
	require.True(t, chat.HasParticipant("u-teacher-3"))
}

func TestRemoveParticipantKeepsStaffInvariant(t *testing.T) {
	m := newTestModel(t)
	m.UpsertChat(&models.Chat{ID: "g-1", Type: models.ChatTypeGroup})

	require.True(t, m.RemoveParticipant("g-1", "u-teacher-1"))

	chat, ok := m.Chat("g-1")
	require.True(t, ok)
	// Current teachers cannot actually leave a group chat.
	require.True(t, chat.HasParticipant("u-teacher-1"))
}

func TestPrivateChatValidation(t *testing.T) {
	chat := &models.Chat{
		ID: "dm-1", Type: models.ChatTypePrivate,
		Participants: []string{"a", "b", "c"},
	}
	require.Error(t, chat.Validate())

	chat.Participants = []string{"a", "b"}
	require.NoError(t, chat.Validate())
}

func TestCanonicalTopicHealingAddsOnlyMissing(t *testing.T) {
	m := newTestModel(t)
	m.UpsertChat(&models.Chat{ID: "g-1", Type: models.ChatTypeGroup})

	var existing []*models.Topic
	for _, canonical := range models.CanonicalTopics {
		if canonical.Suffix == models.TopicSuffixPayment {
			continue
		}
		existing = append(existing, &models.Topic{
			ID:          models.TopicID("g-1", canonical.Suffix),
			ChatID:      "g-1",
			Name:        canonical.Name,
			Icon:        canonical.Icon,
			LastMessage: "untouched " + canonical.Suffix,
			Unread:      2,
		})
	}
	m.ReplaceTopics("g-1", existing)

	topics := m.Topics("g-1")
	require.Len(t, topics, len(models.CanonicalTopics))

	added := 0
	for _, topic := range topics {
		if topic.Suffix() == models.TopicSuffixPayment {
			added++
			continue
		}
		require.Equal(t, "untouched "+topic.Suffix(), topic.LastMessage)
		require.Equal(t, 2, topic.Unread)
	}
	require.Equal(t, 1, added)

	// Healing again is a no-op.
	require.Empty(t, m.EnsureCanonicalTopics("g-1"))
}

func TestChatUnreadIsSumOfTopics(t *testing.T) {
	m := newTestModel(t)
	m.UpsertChat(&models.Chat{ID: "g-1", Type: models.ChatTypeGroup})
	m.EnsureCanonicalTopics("g-1")

	require.True(t, m.SetTopicUnread(models.TopicID("g-1", models.TopicSuffixImportant), 3))
	require.True(t, m.AddTopicUnread(models.TopicID("g-1", models.TopicSuffixHomework), 2))

	chat, ok := m.Chat("g-1")
	require.True(t, ok)
	require.Equal(t, 5, chat.Unread)

	require.True(t, m.SetTopicUnread(models.TopicID("g-1", models.TopicSuffixImportant), 0))
	chat, _ = m.Chat("g-1")
	require.Equal(t, 2, chat.Unread)

	// For a chat with topics the unread field stays derived.
	require.True(t, m.SetChatUnread("g-1", 99))
	chat, _ = m.Chat("g-1")
	require.Equal(t, 2, chat.Unread)

	require.Equal(t, 2, m.TotalUnread())
}

func TestListVisibleChatsOrderingForAdmin(t *testing.T) {
	m := newTestModel(t)
	m.UpsertChat(&models.Chat{ID: allTeachers, Name: "Teachers", Type: models.ChatTypeGroup, IsPinned: true})
	m.UpsertChat(&models.Chat{ID: "g-pinned", Type: models.ChatTypeGroup, IsPinned: true})
	m.UpsertChat(&models.Chat{ID: "g-plain", Type: models.ChatTypeGroup})
	m.UpsertChat(&models.Chat{
		ID: "dm-teacher", Type: models.ChatTypePrivate,
		Participants: []string{supervisorID, "u-teacher-1"},
	})

	entries := m.ListVisibleChats(models.RoleAdmin, supervisorID)
	require.NotEmpty(t, entries)
	require.Equal(t, allTeachers, entries[0].Chat.ID)
	// Teacher DMs splice in right after the all-teachers anchor.
	require.Equal(t, "dm-teacher", entries[1].Chat.ID)
	require.Equal(t, BucketTeacherDMs, entries[1].Bucket)
	require.Equal(t, "g-pinned", entries[2].Chat.ID)
	require.Equal(t, "g-plain", entries[3].Chat.ID)
}

func TestListVisibleChatsForStudent(t *testing.T) {
	m := newTestModel(t)
	m.UpsertUser(&models.User{ID: "u-student-1", Name: "Student", Role: models.RoleStudent})
	m.UpsertChat(&models.Chat{
		ID: "g-mine", Type: models.ChatTypeGroup, Participants: []string{"u-student-1"},
	})
	m.UpsertChat(&models.Chat{ID: "g-other", Type: models.ChatTypeGroup})
	m.UpsertChat(&models.Chat{
		ID: "dm-1", Type: models.ChatTypePrivate,
		Participants: []string{"u-student-1", supervisorID},
	})

	entries := m.ListVisibleChats(models.RoleStudent, "u-student-1")
	require.Len(t, entries, 1)
	require.Equal(t, "g-mine", entries[0].Chat.ID)
	require.Equal(t, BucketPrimary, entries[0].Bucket)
}

func TestDefaultTopicPrefersImportant(t *testing.T) {
	m := newTestModel(t)
	m.UpsertChat(&models.Chat{ID: "g-1", Type: models.ChatTypeGroup})
	m.EnsureCanonicalTopics("g-1")

	topic, ok := m.DefaultTopic("g-1")
	require.True(t, ok)
	require.Equal(t, models.TopicSuffixImportant, topic.Suffix())
}

func TestUpdatePreviewOnTopicRefreshesChat(t *testing.T) {
	m := newTestModel(t)
	m.UpsertChat(&models.Chat{ID: "g-1", Type: models.ChatTypeGroup})
	m.EnsureCanonicalTopics("g-1")

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	topicID := models.TopicID("g-1", models.TopicSuffixHomework)
	m.UpdatePreview(topicID, "New homework", at)

	chat, topic, ok := m.OwningChat(topicID)
	require.True(t, ok)
	require.Equal(t, "New homework", topic.LastMessage)
	require.Equal(t, "New homework", chat.LastMessage)
	require.Equal(t, at, chat.LastActivity)
}

func TestMoveAfterPinned(t *testing.T) {
	m := newTestModel(t)
	m.UpsertChat(&models.Chat{ID: "g-pinned", Type: models.ChatTypeGroup, IsPinned: true})
	m.UpsertChat(&models.Chat{ID: "g-a", Type: models.ChatTypeGroup})
	m.UpsertChat(&models.Chat{ID: "g-b", Type: models.ChatTypeGroup})

	m.MoveAfterPinned("g-b")

	chats := m.Chats()
	require.Equal(t, "g-pinned", chats[0].ID)
	require.Equal(t, "g-b", chats[1].ID)
	require.Equal(t, "g-a", chats[2].ID)
}

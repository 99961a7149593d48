package directory

import (
	"github.com/classline/classline/internal/models"
)

// Bucket classifies where a chat lands in a viewer's sidebar.
type Bucket string

const (
	// BucketPrimary is the main chat list.
	BucketPrimary Bucket = "primary"

	// BucketTeacherDMs is the administrator's collapsible bucket of private
	// chats with teachers.
	BucketTeacherDMs Bucket = "teacher_dms"

	// BucketOtherStudents is the collapsible bucket of group chats led by
	// somebody else.
	BucketOtherStudents Bucket = "other_students"

	// BucketHidden excludes the chat from the viewer entirely.
	BucketHidden Bucket = "hidden"
)

// RoleResolver maps a user ID to its role. Unknown users resolve to "".
type RoleResolver func(userID string) models.Role

// VisibilityPolicy classifies a single chat for a viewer. It is a pure
// function so the filtering rules are testable without any rendering.
//
// Precedence follows the sidebar rules: self-chats are hidden first, then
// staff chats led by somebody else are set aside, then the administrator's
// teacher DMs, and everything else is primary. Parents and students only ever
// see group chats they participate in.
func VisibilityPolicy(role models.Role, viewerID, supervisorID string, chat *models.Chat, roleOf RoleResolver) Bucket {
	if chat == nil {
		return BucketHidden
	}

	if chat.Type == models.ChatTypePrivate {
		other := chat.OtherParticipant(viewerID)
		if other == "" {
			// A private chat whose only other participant is the viewer.
			return BucketHidden
		}
		switch role {
		case models.RoleAdmin:
			if roleOf != nil && roleOf(other) == models.RoleTeacher {
				return BucketTeacherDMs
			}
			return BucketPrimary
		case models.RoleTeacher:
			return BucketPrimary
		default:
			// Parents and students have no private chat sidebar.
			return BucketHidden
		}
	}

	// Group chats.
	switch role {
	case models.RoleAdmin:
		if viewerID != supervisorID && chat.LeadAdmin != "" && chat.LeadAdmin != viewerID {
			return BucketOtherStudents
		}
		return BucketPrimary
	case models.RoleTeacher:
		if len(chat.LeadTeachers) > 0 && !chat.IsLeadTeacher(viewerID) {
			return BucketOtherStudents
		}
		return BucketPrimary
	case models.RoleParent, models.RoleStudent:
		if chat.HasParticipant(viewerID) {
			return BucketPrimary
		}
		return BucketHidden
	default:
		return BucketHidden
	}
}

// studentTopicSuffixes is the allow-list of topics a student may see.
var studentTopicSuffixes = map[string]struct{}{
	models.TopicSuffixImportant:    {},
	models.TopicSuffixZoom:         {},
	models.TopicSuffixHomework:     {},
	models.TopicSuffixReports:      {},
	models.TopicSuffixCancellation: {},
}

// TopicVisible reports whether a role may see the topic.
func TopicVisible(role models.Role, topic *models.Topic) bool {
	if topic == nil {
		return false
	}
	switch role {
	case models.RoleAdmin, models.RoleParent:
		return true
	case models.RoleTeacher:
		return topic.Suffix() != models.TopicSuffixAdminContact
	case models.RoleStudent:
		_, ok := studentTopicSuffixes[topic.Suffix()]
		return ok
	default:
		return false
	}
}

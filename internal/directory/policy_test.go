package directory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classline/classline/internal/models"
)

const (
	supervisorID = "u-supervisor"
	allTeachers  = "chat-all-teachers"
)

func roleTable(roles map[string]models.Role) RoleResolver {
	return func(userID string) models.Role { return roles[userID] }
}

func TestVisibilityPolicyAdminBuckets(t *testing.T) {
	roles := roleTable(map[string]models.Role{
		"u-teacher": models.RoleTeacher,
		"u-parent":  models.RoleParent,
	})

	teacherDM := &models.Chat{
		ID: "dm-1", Type: models.ChatTypePrivate,
		Participants: []string{supervisorID, "u-teacher"},
	}
	require.Equal(t, BucketTeacherDMs,
		VisibilityPolicy(models.RoleAdmin, supervisorID, supervisorID, teacherDM, roles))

	parentDM := &models.Chat{
		ID: "dm-2", Type: models.ChatTypePrivate,
		Participants: []string{supervisorID, "u-parent"},
	}
	require.Equal(t, BucketPrimary,
		VisibilityPolicy(models.RoleAdmin, supervisorID, supervisorID, parentDM, roles))

	otherGroup := &models.Chat{
		ID: "g-1", Type: models.ChatTypeGroup, LeadAdmin: "u-admin-2",
	}
	require.Equal(t, BucketOtherStudents,
		VisibilityPolicy(models.RoleAdmin, "u-admin-3", supervisorID, otherGroup, roles))

	// The supervisor is exempt from other-people's-students bucketing.
	require.Equal(t, BucketPrimary,
		VisibilityPolicy(models.RoleAdmin, supervisorID, supervisorID, otherGroup, roles))
}

func TestVisibilityPolicyTeacherBuckets(t *testing.T) {
	ledGroup := &models.Chat{
		ID: "g-1", Type: models.ChatTypeGroup, LeadTeachers: []string{"u-teacher"},
	}
	require.Equal(t, BucketPrimary,
		VisibilityPolicy(models.RoleTeacher, "u-teacher", supervisorID, ledGroup, nil))

	otherGroup := &models.Chat{
		ID: "g-2", Type: models.ChatTypeGroup, LeadTeachers: []string{"u-other"},
	}
	require.Equal(t, BucketOtherStudents,
		VisibilityPolicy(models.RoleTeacher, "u-teacher", supervisorID, otherGroup, nil))
}

func TestVisibilityPolicyFamilyRoles(t *testing.T) {
	group := &models.Chat{
		ID: "g-1", Type: models.ChatTypeGroup,
		Participants: []string{"u-parent", "u-teacher"},
	}
	require.Equal(t, BucketPrimary,
		VisibilityPolicy(models.RoleParent, "u-parent", supervisorID, group, nil))
	require.Equal(t, BucketHidden,
		VisibilityPolicy(models.RoleStudent, "u-stranger", supervisorID, group, nil))

	dm := &models.Chat{
		ID: "dm-1", Type: models.ChatTypePrivate,
		Participants: []string{"u-parent", supervisorID},
	}
	require.Equal(t, BucketHidden,
		VisibilityPolicy(models.RoleParent, "u-parent", supervisorID, dm, nil))
}

func TestStudentNeverSeesPaymentOrAdminContact(t *testing.T) {
	for _, canonical := range models.CanonicalTopics {
		topic := &models.Topic{ID: models.TopicID("g-1", canonical.Suffix), ChatID: "g-1"}
		visible := TopicVisible(models.RoleStudent, topic)
		switch canonical.Suffix {
		case models.TopicSuffixPayment, models.TopicSuffixAdminContact:
			require.False(t, visible, "student must not see %s", canonical.Suffix)
		default:
			require.True(t, visible, "student should see %s", canonical.Suffix)
		}
	}
}

func TestTeacherSeesAllTopicsButAdminContact(t *testing.T) {
	for _, canonical := range models.CanonicalTopics {
		topic := &models.Topic{ID: models.TopicID("g-1", canonical.Suffix), ChatID: "g-1"}
		visible := TopicVisible(models.RoleTeacher, topic)
		if canonical.Suffix == models.TopicSuffixAdminContact {
			require.False(t, visible)
		} else {
			require.True(t, visible)
		}
	}
}

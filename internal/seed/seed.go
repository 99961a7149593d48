// Package seed holds the compiled-in directory used to bootstrap a fresh
// installation and to rebuild state after a schema reset.
package seed

import (
	"github.com/classline/classline/internal/models"
)

// Well-known identities.
const (
	// SupervisorID is the administrator exempt from "other people's
	// students" bucketing.
	SupervisorID = "u-admin-supervisor"

	// AllTeachersChatID is the designated staff-wide group chat.
	AllTeachersChatID = "chat-all-teachers"
)

// Users returns the seed roster: the supervisor, the teacher staff and a pair
// of test family accounts.
func Users() []*models.User {
	return []*models.User{
		{
			ID:    SupervisorID,
			Name:  "Maria Petrova",
			Role:  models.RoleAdmin,
			Phone: "+70000000001",
			Email: "supervisor@classline.example",
		},
		{
			ID:    "u-admin-2",
			Name:  "Olga Smirnova",
			Role:  models.RoleAdmin,
			Phone: "+70000000002",
		},
		{
			ID:    "u-teacher-1",
			Name:  "Anna Ivanova",
			Role:  models.RoleTeacher,
			Phone: "+70000000011",
			AvailableSlots: []string{
				"Monday at 16:00",
				"Wednesday at 17:30",
			},
			EducationDocs: []string{"docs/anna-ivanova-diploma.pdf"},
		},
		{
			ID:    "u-teacher-2",
			Name:  "Sergey Volkov",
			Role:  models.RoleTeacher,
			Phone: "+70000000012",
			AvailableSlots: []string{
				"Tuesday at 15:00",
			},
		},
		{
			ID:    "u-parent-test",
			Name:  "Test Parent",
			Role:  models.RoleParent,
			Phone: "+70000000021",
		},
		{
			ID:    "u-student-test",
			Name:  "Test Student",
			Role:  models.RoleStudent,
			Phone: "+70000000031",
		},
	}
}

// Chats returns the seed chat list: the all-teachers group chat with its
// canonical topics implied (the directory backfills them on load).
func Chats() []*models.Chat {
	teachers := TeacherIDs()
	participants := append([]string{SupervisorID}, teachers...)
	return []*models.Chat{
		{
			ID:           AllTeachersChatID,
			Name:         "Teachers",
			Type:         models.ChatTypeGroup,
			Participants: participants,
			IsPinned:     true,
		},
	}
}

// TeacherIDs returns the IDs of every seed teacher.
func TeacherIDs() []string {
	var ids []string
	for _, user := range Users() {
		if user.Role == models.RoleTeacher {
			ids = append(ids, user.ID)
		}
	}
	return ids
}

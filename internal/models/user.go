// Package models defines the domain types shared across the client: users,
// chats, topics, messages and notification settings.
package models

// Role is one of the four account roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
)

// IsStaff reports whether the role is an employee role.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleTeacher
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleParent, RoleStudent:
		return true
	}
	return false
}

// User is a directory entry. Teacher profiles additionally carry open lesson
// slots and education documents.
type User struct {
	// ID is the unique user identifier.
	ID string `json:"id"`

	// Name is the display name used in chat lists and mentions.
	Name string `json:"name"`

	// Role determines directory visibility and topic access.
	Role Role `json:"role"`

	// Phone is the login identifier.
	Phone string `json:"phone,omitempty"`

	// Email is optional contact info.
	Email string `json:"email,omitempty"`

	// Avatar is an optional avatar reference.
	Avatar string `json:"avatar,omitempty"`

	// AvailableSlots lists open lesson slots, teachers only.
	AvailableSlots []string `json:"available_slots,omitempty"`

	// EducationDocs lists education document references, teachers only.
	EducationDocs []string `json:"education_docs,omitempty"`
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	out := *u
	out.AvailableSlots = append([]string(nil), u.AvailableSlots...)
	out.EducationDocs = append([]string(nil), u.EducationDocs...)
	return &out
}

// Validate checks the user shape.
func (u *User) Validate() error {
	validation := &ValidationErrors{}
	if u.ID == "" {
		validation.AddMessage("id", "id is required")
	}
	if u.Name == "" {
		validation.AddMessage("name", "name is required")
	}
	if !u.Role.Valid() {
		validation.Add("role", ErrInvalidRole)
	}
	return validation.Err()
}

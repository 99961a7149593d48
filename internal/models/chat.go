package models

import (
	"sort"
	"time"
)

// ChatType distinguishes two-party conversations from group chats.
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

// Chat is a conversation container. A private chat has exactly two
// participants; a group chat always includes every current teacher and the
// supervisor administrator.
type Chat struct {
	// ID is the unique chat identifier.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Type is private or group.
	Type ChatType `json:"type"`

	// Participants holds member user IDs.
	Participants []string `json:"participants"`

	// IsPinned pins the chat near the top of the list.
	IsPinned bool `json:"is_pinned,omitempty"`

	// LeadTeachers is the owning teacher subset, group chats only.
	LeadTeachers []string `json:"lead_teachers,omitempty"`

	// LeadAdmin is the owning administrator, group chats only.
	LeadAdmin string `json:"lead_admin,omitempty"`

	// Schedule is optional free-text schedule info.
	Schedule string `json:"schedule,omitempty"`

	// ConclusionLink is an optional URL to the enrollment conclusion.
	ConclusionLink string `json:"conclusion_link,omitempty"`

	// LastMessage is a one-line preview of the most recent message.
	LastMessage string `json:"last_message,omitempty"`

	// LastActivity is the timestamp of the most recent activity.
	LastActivity time.Time `json:"last_activity,omitempty"`

	// Unread counts unseen messages. For a group chat with topics this is
	// always derived as the sum of the topics' unread counts.
	Unread int `json:"unread"`
}

// HasParticipant reports whether the user is a member of the chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// IsLeadTeacher reports whether the user is in the lead-teacher set.
func (c *Chat) IsLeadTeacher(userID string) bool {
	for _, id := range c.LeadTeachers {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the peer of a private chat from the viewer's
// perspective, or "" if the chat is not private.
func (c *Chat) OtherParticipant(viewerID string) string {
	if c.Type != ChatTypePrivate {
		return ""
	}
	for _, id := range c.Participants {
		if id != viewerID {
			return id
		}
	}
	return ""
}

// NormalizeParticipants de-duplicates and sorts the participant set.
func (c *Chat) NormalizeParticipants() {
	seen := make(map[string]struct{}, len(c.Participants))
	out := make([]string, 0, len(c.Participants))
	for _, id := range c.Participants {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	c.Participants = out
}

// Clone returns a deep copy of the chat.
func (c *Chat) Clone() *Chat {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.LeadTeachers = append([]string(nil), c.LeadTeachers...)
	return &out
}

// Validate checks the chat shape invariants.
func (c *Chat) Validate() error {
	validation := &ValidationErrors{}
	if c.ID == "" {
		validation.AddMessage("id", "id is required")
	}
	switch c.Type {
	case ChatTypePrivate:
		if len(c.Participants) != 2 {
			validation.AddMessage("participants", "private chat must have exactly two participants")
		}
	case ChatTypeGroup:
	default:
		validation.Add("type", ErrInvalidChatType)
	}
	if c.Unread < 0 {
		validation.AddMessage("unread", "unread must be non-negative")
	}
	return validation.Err()
}

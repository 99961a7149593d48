package models

import (
	"time"
)

// MessageStatus tracks the delivery lifecycle of a message authored in the
// current session. Transitions are monotonic and never regress.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

var statusRank = map[MessageStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Rank returns the ordering position of the status, -1 for unknown values.
func (s MessageStatus) Rank() int {
	rank, ok := statusRank[s]
	if !ok {
		return -1
	}
	return rank
}

// Before reports whether s is an earlier lifecycle stage than other.
func (s MessageStatus) Before(other MessageStatus) bool {
	return s.Rank() < other.Rank()
}

// AttachmentKind distinguishes inline images from generic files.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	Kind AttachmentKind `json:"kind"`
	URL  string         `json:"url"`
	Name string         `json:"name,omitempty"`
	Size int64          `json:"size,omitempty"`
}

// Reaction aggregates one emoji's reactors on a message. Count always equals
// len(Actors); an entry with no remaining actors is removed entirely.
type Reaction struct {
	Emoji  string   `json:"emoji"`
	Count  int      `json:"count"`
	Actors []string `json:"actors"`
}

// Message is a single timeline entry. Messages are immutable except for
// Status and Reactions.
type Message struct {
	// ID is unique, either time-derived client-side or server-issued.
	ID string `json:"id"`

	// Text is the message body, optional when attachments are present.
	Text string `json:"text,omitempty"`

	// SenderID identifies the author.
	SenderID string `json:"sender_id"`

	// SenderName is the author's display name captured at send time.
	SenderName string `json:"sender_name"`

	// SenderAvatar is the author's avatar reference captured at send time.
	SenderAvatar string `json:"sender_avatar,omitempty"`

	// Timestamp is when the message was created.
	Timestamp time.Time `json:"timestamp"`

	// Attachments holds attachment descriptors in order.
	Attachments []Attachment `json:"attachments,omitempty"`

	// Reactions holds aggregated emoji reactions.
	Reactions []Reaction `json:"reactions,omitempty"`

	// Status is set only for messages authored by the current session.
	Status MessageStatus `json:"status,omitempty"`
}

// IsOwn reports whether the message was authored by the given user. Derived,
// never stored.
func (m *Message) IsOwn(currentUserID string) bool {
	return m.SenderID == currentUserID
}

// Preview returns a one-line summary for chat list previews.
func (m *Message) Preview() string {
	if m.Text != "" {
		return m.Text
	}
	if len(m.Attachments) > 0 {
		if m.Attachments[0].Kind == AttachmentImage {
			return "Photo"
		}
		return "File"
	}
	return ""
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	out := *m
	out.Attachments = append([]Attachment(nil), m.Attachments...)
	if len(m.Reactions) > 0 {
		out.Reactions = make([]Reaction, len(m.Reactions))
		for i, reaction := range m.Reactions {
			reaction.Actors = append([]string(nil), reaction.Actors...)
			out.Reactions[i] = reaction
		}
	}
	return &out
}

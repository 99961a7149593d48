package models

import (
	"strings"
	"time"
)

// Canonical topic suffixes. Every group chat exposes a topic for each suffix;
// a self-healing migration backfills any that are missing.
const (
	TopicSuffixImportant    = "-important"
	TopicSuffixZoom         = "-zoom"
	TopicSuffixHomework     = "-homework"
	TopicSuffixReports      = "-reports"
	TopicSuffixPayment      = "-payment"
	TopicSuffixCancellation = "-cancellation"
	TopicSuffixAdminContact = "-admin-contact"
)

// CanonicalTopics lists the canonical suffixes with their display names and
// icons, in enumeration order.
var CanonicalTopics = []struct {
	Suffix string
	Name   string
	Icon   string
}{
	{TopicSuffixImportant, "Important", "pin"},
	{TopicSuffixZoom, "Zoom", "video"},
	{TopicSuffixHomework, "Homework", "book"},
	{TopicSuffixReports, "Reports", "chart"},
	{TopicSuffixPayment, "Payment", "card"},
	{TopicSuffixCancellation, "Cancellation", "calendar-off"},
	{TopicSuffixAdminContact, "Admin contact", "headset"},
}

// Topic is a named sub-channel of a group chat. Topic IDs are namespaced by
// the parent chat ID plus a suffix.
type Topic struct {
	// ID is the namespaced topic identifier (chat ID + suffix).
	ID string `json:"id"`

	// ChatID is the owning group chat.
	ChatID string `json:"chat_id"`

	// Name is the display name.
	Name string `json:"name"`

	// Icon is a reference to the topic icon.
	Icon string `json:"icon,omitempty"`

	// LastMessage is a one-line preview of the most recent message.
	LastMessage string `json:"last_message,omitempty"`

	// LastActivity is the timestamp of the most recent activity.
	LastActivity time.Time `json:"last_activity,omitempty"`

	// Unread counts unseen messages in this topic.
	Unread int `json:"unread"`
}

// TopicID builds the namespaced topic ID for a chat and canonical suffix.
func TopicID(chatID, suffix string) string {
	return chatID + suffix
}

// Suffix returns the topic's canonical suffix, or "" if the ID does not end
// in a known canonical suffix.
func (t *Topic) Suffix() string {
	for _, canonical := range CanonicalTopics {
		if strings.HasSuffix(t.ID, canonical.Suffix) {
			return canonical.Suffix
		}
	}
	return ""
}

// Clone returns a copy of the topic.
func (t *Topic) Clone() *Topic {
	out := *t
	return &out
}

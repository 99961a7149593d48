package models

// ConversationSetting holds the sound/push switches for one conversation.
type ConversationSetting struct {
	Sound bool `json:"sound"`
	Push  bool `json:"push"`
}

// NotificationSettings is the persisted notification record: a global switch
// pair plus per-conversation overrides. The effective setting for a
// conversation is the logical AND of the global and the override.
type NotificationSettings struct {
	// Global applies to every conversation without an override.
	Global ConversationSetting `json:"global"`

	// Overrides maps conversation ID (chat or topic) to its switches.
	Overrides map[string]ConversationSetting `json:"overrides,omitempty"`

	// MutedByDefault records conversation IDs whose one-time default mute
	// has already been applied, so it is never re-applied after the user
	// unmutes.
	MutedByDefault []string `json:"muted_by_default,omitempty"`
}

// DefaultNotificationSettings enables sound and push globally.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Global: ConversationSetting{Sound: true, Push: true},
	}
}

// Effective resolves the setting for a conversation: both the global switch
// and the override (when present) must be on for a signal to fire.
func (n *NotificationSettings) Effective(conversationID string) ConversationSetting {
	effective := n.Global
	if override, ok := n.Overrides[conversationID]; ok {
		effective.Sound = effective.Sound && override.Sound
		effective.Push = effective.Push && override.Push
	}
	return effective
}

// Clone returns a deep copy of the settings.
func (n *NotificationSettings) Clone() NotificationSettings {
	out := *n
	if n.Overrides != nil {
		out.Overrides = make(map[string]ConversationSetting, len(n.Overrides))
		for id, setting := range n.Overrides {
			out.Overrides[id] = setting
		}
	}
	out.MutedByDefault = append([]string(nil), n.MutedByDefault...)
	return out
}

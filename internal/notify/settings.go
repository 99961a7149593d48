// Package notify owns notification settings, mute policy and signal firing.
package notify

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/classline/classline/internal/cache"
	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/models"
)

// adminDefaultMuteSuffixes are muted once, by default, for administrator
// accounts the first time the topic is observed.
var adminDefaultMuteSuffixes = []string{
	models.TopicSuffixZoom,
	models.TopicSuffixHomework,
	models.TopicSuffixReports,
}

// Service reads and mutates the persisted NotificationSettings record.
type Service struct {
	cache  *cache.Store
	logger zerolog.Logger
}

// NewService creates a settings service backed by the snapshot cache.
func NewService(store *cache.Store) *Service {
	return &Service{
		cache:  store,
		logger: logging.Component("notify"),
	}
}

// Effective resolves the setting for a conversation: global AND override.
func (s *Service) Effective(conversationID string) models.ConversationSetting {
	snap := s.cache.Snapshot()
	return snap.Notifications.Effective(conversationID)
}

// SetGlobal updates the global sound/push switches.
func (s *Service) SetGlobal(setting models.ConversationSetting) {
	s.cache.Update(func(snap *cache.Snapshot) {
		snap.Notifications.Global = setting
	})
}

// SetOverride sets a per-conversation override.
func (s *Service) SetOverride(conversationID string, setting models.ConversationSetting) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return
	}
	s.cache.Update(func(snap *cache.Snapshot) {
		if snap.Notifications.Overrides == nil {
			snap.Notifications.Overrides = make(map[string]models.ConversationSetting)
		}
		snap.Notifications.Overrides[conversationID] = setting
	})
}

// ClearOverride removes a per-conversation override.
func (s *Service) ClearOverride(conversationID string) {
	s.cache.Update(func(snap *cache.Snapshot) {
		delete(snap.Notifications.Overrides, conversationID)
	})
}

// ApplyAdminDefaults applies the one-time default mute for administrator
// accounts: the first time a zoom/homework/reports topic is observed it gets
// a muted override. A topic the user later unmutes is never muted again.
func (s *Service) ApplyAdminDefaults(role models.Role, topics []*models.Topic) {
	if role != models.RoleAdmin || len(topics) == 0 {
		return
	}
	s.cache.Update(func(snap *cache.Snapshot) {
		applied := make(map[string]struct{}, len(snap.Notifications.MutedByDefault))
		for _, id := range snap.Notifications.MutedByDefault {
			applied[id] = struct{}{}
		}
		for _, topic := range topics {
			suffix := topic.Suffix()
			if !isAdminDefaultMute(suffix) {
				continue
			}
			if _, done := applied[topic.ID]; done {
				continue
			}
			if snap.Notifications.Overrides == nil {
				snap.Notifications.Overrides = make(map[string]models.ConversationSetting)
			}
			if _, exists := snap.Notifications.Overrides[topic.ID]; !exists {
				snap.Notifications.Overrides[topic.ID] = models.ConversationSetting{}
			}
			snap.Notifications.MutedByDefault = append(snap.Notifications.MutedByDefault, topic.ID)
			applied[topic.ID] = struct{}{}
		}
	})
}

func isAdminDefaultMute(suffix string) bool {
	for _, candidate := range adminDefaultMuteSuffixes {
		if suffix == candidate {
			return true
		}
	}
	return false
}

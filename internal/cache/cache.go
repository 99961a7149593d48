// Package cache persists conversation state to local storage with a
// versioned schema, debounced flushes and one-shot migrations. Persistence is
// a durability optimization: read and write failures fall back to seed data
// and are logged, never surfaced to callers.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/models"
	"github.com/classline/classline/internal/observability"
	"github.com/classline/classline/internal/seed"
)

const (
	// SchemaVersion tags the snapshot shape. A mismatch on load discards
	// the cached directory and rebuilds it from seed data; it signals an
	// incompatible structural change to identity or chat shape.
	SchemaVersion = 3

	defaultDebounce = 500 * time.Millisecond
)

// Session holds the persisted authenticated-session keys.
type Session struct {
	Authenticated bool        `json:"authenticated"`
	UserID        string      `json:"user_id,omitempty"`
	Name          string      `json:"name,omitempty"`
	Role          models.Role `json:"role,omitempty"`
}

// Snapshot is the full persisted state blob.
type Snapshot struct {
	SchemaVersion int `json:"schema_version"`

	Session Session `json:"session"`

	Users  []*models.User             `json:"users,omitempty"`
	Chats  []*models.Chat             `json:"chats,omitempty"`
	Topics map[string][]*models.Topic `json:"topics,omitempty"` // chat ID -> topics

	// Timelines maps conversation ID (chat or topic) to its message log.
	Timelines map[string][]*models.Message `json:"timelines,omitempty"`

	Notifications models.NotificationSettings `json:"notifications"`

	// AppliedMigrations records completed one-shot migration IDs.
	AppliedMigrations []string `json:"applied_migrations,omitempty"`

	// LastOpenConversation restores the selected conversation on start.
	LastOpenConversation string `json:"last_open_conversation,omitempty"`
}

// Store owns the snapshot and its flush cycle. Mutations mark the snapshot
// dirty; a debounced timer collapses bursts into a single write, and Close
// flushes whatever is still pending.
type Store struct {
	path     string
	lockPath string
	logger   zerolog.Logger

	mu       sync.Mutex
	snap     Snapshot
	dirty    bool
	timer    *time.Timer
	debounce time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithDebounce overrides the flush debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// New creates a Store persisting to path. Call Load before first use.
func New(path string, opts ...Option) *Store {
	path = strings.TrimSpace(path)
	store := &Store{
		path:     path,
		lockPath: path + ".lock",
		logger:   logging.Component("cache"),
		snap:     seedSnapshot(),
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

// Load reads the snapshot from disk. A missing, corrupt or schema-mismatched
// blob falls back to seed data; Load itself never fails the caller.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return
	}

	loaded, err := s.loadLocked()
	if err != nil {
		s.logger.Warn().Err(err).Msg("snapshot unreadable, rebuilding from seed data")
		s.snap = seedSnapshot()
		s.markDirtyLocked()
		return
	}
	s.snap = loaded
	s.dirty = false
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSnapshot(s.snap)
}

// Update applies fn to the snapshot under the store lock and schedules a
// debounced flush.
func (s *Store) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	s.markDirtyLocked()
}

// IsMigrationApplied reports whether the one-shot migration already ran.
func (s *Store) IsMigrationApplied(migrationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.snap.AppliedMigrations {
		if id == migrationID {
			return true
		}
	}
	return false
}

// MarkMigrationApplied records the migration as completed. Marking twice in
// the same session records it once.
func (s *Store) MarkMigrationApplied(migrationID string) {
	migrationID = strings.TrimSpace(migrationID)
	if migrationID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.snap.AppliedMigrations {
		if id == migrationID {
			return
		}
	}
	s.snap.AppliedMigrations = append(s.snap.AppliedMigrations, migrationID)
	s.markDirtyLocked()
}

// RunMigration executes fn exactly once per installation, keyed by
// migrationID. The guard is idempotent within a session as well.
func (s *Store) RunMigration(migrationID string, fn func(*Snapshot)) {
	if s.IsMigrationApplied(migrationID) {
		return
	}
	s.mu.Lock()
	fn(&s.snap)
	s.mu.Unlock()
	s.MarkMigrationApplied(migrationID)
}

// SaveSoon marks the snapshot dirty without mutating it.
func (s *Store) SaveSoon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markDirtyLocked()
}

// Close cancels the pending flush timer and writes any dirty state. It always
// runs to completion before process teardown.
func (s *Store) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	needsSave := s.dirty
	s.mu.Unlock()
	if needsSave {
		s.SaveNow()
	}
}

// SaveNow performs a synchronous flush. Write failures are swallowed and
// logged; the dirty flag is restored so a later flush retries.
func (s *Store) SaveNow() {
	s.mu.Lock()
	if s.path == "" {
		s.mu.Unlock()
		return
	}
	snap := cloneSnapshot(s.snap)
	s.dirty = false
	s.mu.Unlock()

	snap.SchemaVersion = SchemaVersion

	if err := withFileLock(s.lockPath, func() error {
		return writeAtomicJSON(s.path, snap)
	}); err != nil {
		s.logger.Warn().Err(err).Msg("snapshot write failed")
		observability.CaptureErr(err)
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	}
}

func (s *Store) markDirtyLocked() {
	s.dirty = true
	if s.path == "" {
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.SaveNow)
		return
	}
	// Debounce: reschedule the pending flush on every new mutation.
	_ = s.timer.Reset(s.debounce)
}

func (s *Store) loadLocked() (Snapshot, error) {
	var out Snapshot
	err := withFileLock(s.lockPath, func() error {
		payload, err := os.ReadFile(s.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				out = seedSnapshot()
				return nil
			}
			return err
		}
		if len(payload) == 0 {
			out = seedSnapshot()
			return nil
		}

		if err := json.Unmarshal(payload, &out); err != nil {
			return fmt.Errorf("parse snapshot: %w", err)
		}
		if out.SchemaVersion != SchemaVersion {
			// Incompatible shape: drop the cached directory, keep only
			// the session so the user stays logged in. Message history
			// survives in the archive database.
			session := out.Session
			out = seedSnapshot()
			out.Session = session
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	normalizeSnapshot(&out)
	return out, nil
}

func seedSnapshot() Snapshot {
	snap := Snapshot{
		SchemaVersion: SchemaVersion,
		Users:         seed.Users(),
		Chats:         seed.Chats(),
		Topics:        make(map[string][]*models.Topic),
		Timelines:     make(map[string][]*models.Message),
		Notifications: models.DefaultNotificationSettings(),
	}
	return snap
}

func normalizeSnapshot(snap *Snapshot) {
	snap.SchemaVersion = SchemaVersion
	if snap.Topics == nil {
		snap.Topics = make(map[string][]*models.Topic)
	}
	if snap.Timelines == nil {
		snap.Timelines = make(map[string][]*models.Message)
	}
	if snap.Notifications.Overrides == nil && snap.Notifications.Global == (models.ConversationSetting{}) {
		snap.Notifications = models.DefaultNotificationSettings()
	}
	if len(snap.Users) == 0 {
		snap.Users = seed.Users()
	}
	if len(snap.Chats) == 0 {
		snap.Chats = seed.Chats()
	}
}

func cloneSnapshot(snap Snapshot) Snapshot {
	out := snap
	if snap.Users != nil {
		out.Users = make([]*models.User, len(snap.Users))
		for i, user := range snap.Users {
			copied := *user
			copied.AvailableSlots = append([]string(nil), user.AvailableSlots...)
			copied.EducationDocs = append([]string(nil), user.EducationDocs...)
			out.Users[i] = &copied
		}
	}
	if snap.Chats != nil {
		out.Chats = make([]*models.Chat, len(snap.Chats))
		for i, chat := range snap.Chats {
			out.Chats[i] = chat.Clone()
		}
	}
	if snap.Topics != nil {
		out.Topics = make(map[string][]*models.Topic, len(snap.Topics))
		for chatID, topics := range snap.Topics {
			copied := make([]*models.Topic, len(topics))
			for i, topic := range topics {
				copied[i] = topic.Clone()
			}
			out.Topics[chatID] = copied
		}
	}
	if snap.Timelines != nil {
		out.Timelines = make(map[string][]*models.Message, len(snap.Timelines))
		for conversationID, messages := range snap.Timelines {
			copied := make([]*models.Message, len(messages))
			for i, message := range messages {
				copied[i] = message.Clone()
			}
			out.Timelines[conversationID] = copied
		}
	}
	out.Notifications = snap.Notifications.Clone()
	out.AppliedMigrations = append([]string(nil), snap.AppliedMigrations...)
	return out
}

func withFileLock(lockPath string, fn func() error) error {
	if strings.TrimSpace(lockPath) == "" {
		return fn()
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock %s: %w", lockPath, err)
	}
	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}()
	return fn()
}

func writeAtomicJSON(path string, snap Snapshot) error {
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classline/classline/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := New(filepath.Join(t.TempDir(), "state.json"), WithDebounce(time.Hour))
	store.Load()
	t.Cleanup(store.Close)
	return store
}

func TestRunMigrationRunsOnce(t *testing.T) {
	store := newTestStore(t)

	runs := 0
	migrate := func(*Snapshot) { runs++ }

	store.RunMigration("m1", migrate)
	store.RunMigration("m1", migrate)

	require.Equal(t, 1, runs)
	require.True(t, store.IsMigrationApplied("m1"))

	applied := store.Snapshot().AppliedMigrations
	count := 0
	for _, id := range applied {
		if id == "m1" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestLoadCorruptSnapshotFallsBackToSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := New(path, WithDebounce(time.Hour))
	store.Load()
	defer store.Close()

	snap := store.Snapshot()
	require.Equal(t, SchemaVersion, snap.SchemaVersion)
	require.NotEmpty(t, snap.Users)
	require.NotEmpty(t, snap.Chats)
}

func TestSchemaMismatchResetsDirectoryButKeepsSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	stale := Snapshot{
		SchemaVersion: SchemaVersion - 1,
		Session: Session{
			Authenticated: true,
			UserID:        "u-x",
			Name:          "Someone",
			Role:          models.RoleTeacher,
		},
		Users: []*models.User{{ID: "u-stale", Name: "Stale", Role: models.RoleParent}},
	}
	payload, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	store := New(path, WithDebounce(time.Hour))
	store.Load()
	defer store.Close()

	snap := store.Snapshot()
	require.True(t, snap.Session.Authenticated)
	require.Equal(t, "u-x", snap.Session.UserID)
	for _, user := range snap.Users {
		require.NotEqual(t, "u-stale", user.ID)
	}
}

func TestCloseFlushesPendingWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := New(path, WithDebounce(time.Hour))
	store.Load()

	store.Update(func(snap *Snapshot) {
		snap.LastOpenConversation = "chat-1"
	})
	store.Close()

	payload, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk Snapshot
	require.NoError(t, json.Unmarshal(payload, &onDisk))
	require.Equal(t, "chat-1", onDisk.LastOpenConversation)
	require.Equal(t, SchemaVersion, onDisk.SchemaVersion)
}

func TestSnapshotReturnsDeepCopy(t *testing.T) {
	store := newTestStore(t)

	first := store.Snapshot()
	require.NotEmpty(t, first.Users)
	first.Users[0].Name = "Mutated"

	second := store.Snapshot()
	require.NotEqual(t, "Mutated", second.Users[0].Name)
}

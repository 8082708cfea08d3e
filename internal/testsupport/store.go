package testsupport

import (
	"context"
	"testing"

	"mps/internal/backlog"
	"mps/internal/config"
	"mps/internal/settings"
)

// MustOpenStore opens a backlog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *backlog.Store {
	t.Helper()

	store, err := backlog.Open(cfg)
	if err != nil {
		t.Fatalf("backlog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenSettings opens the threshold settings store for tests.
func MustOpenSettings(t testing.TB, cfg *config.Config) *settings.Store {
	t.Helper()

	store, err := settings.Open(cfg.SettingsPath())
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	return store
}

// Enqueue inserts a backlog entry for tests using the provided store.
func Enqueue(t testing.TB, store *backlog.Store, itemID, title string) *backlog.Entry {
	t.Helper()

	entry, err := store.Enqueue(context.Background(), itemID, title, `{"item_id":"`+itemID+`","title":"`+title+`"}`, "network_transient")
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return entry
}

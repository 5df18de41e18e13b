package prefs

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "prefs.db")
	store, err := OpenWithConfig(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDefaultsWhenUnset(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	limit, err := store.NodeLimit(ctx, "s1")
	if err != nil {
		t.Fatalf("node limit: %v", err)
	}
	if limit != DefaultNodeLimit {
		t.Fatalf("expected default node limit %d, got %d", DefaultNodeLimit, limit)
	}
	depth, err := store.UMLDepth(ctx, "s1")
	if err != nil {
		t.Fatalf("uml depth: %v", err)
	}
	if depth != DefaultUMLDepth {
		t.Fatalf("expected default uml depth %d, got %d", DefaultUMLDepth, depth)
	}
	key, err := store.APIKey(ctx, "s1")
	if err != nil || key != "" {
		t.Fatalf("expected empty api key, got %q err %v", key, err)
	}
}

func TestSetAndReadBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.SetNodeLimit(ctx, "s1", 150); err != nil {
		t.Fatalf("set node limit: %v", err)
	}
	if err := store.SetUMLDepth(ctx, "s1", 5); err != nil {
		t.Fatalf("set uml depth: %v", err)
	}
	if err := store.SetActiveTab(ctx, "s1", "conversion"); err != nil {
		t.Fatalf("set tab: %v", err)
	}
	limit, _ := store.NodeLimit(ctx, "s1")
	depth, _ := store.UMLDepth(ctx, "s1")
	tab, _ := store.ActiveTab(ctx, "s1")
	if limit != 150 || depth != 5 || tab != "conversion" {
		t.Fatalf("unexpected values: limit=%d depth=%d tab=%q", limit, depth, tab)
	}
}

func TestLastWriteWins(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Set(ctx, "s1", KeyAPIKey, "sk-first"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "s1", KeyAPIKey, "sk-second"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := store.Get(ctx, "s1", KeyAPIKey)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if value != "sk-second" {
		t.Fatalf("expected later write to win, got %q", value)
	}
}

func TestSessionScopeIsolation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.SetNodeLimit(ctx, "s1", 50); err != nil {
		t.Fatalf("set: %v", err)
	}
	limit, err := store.NodeLimit(ctx, "s2")
	if err != nil {
		t.Fatalf("node limit: %v", err)
	}
	if limit != DefaultNodeLimit {
		t.Fatalf("sessions must not share preferences, got %d", limit)
	}
}

func TestSessionIDPersistence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "prefs.db")
	store, err := OpenWithConfig(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	if id, err := store.SessionID(ctx); err != nil || id != "" {
		t.Fatalf("expected no session id yet, got %q err %v", id, err)
	}
	if err := store.SetSessionID(ctx, "0f6c"); err != nil {
		t.Fatalf("set session id: %v", err)
	}
	store.Close()

	reopened, err := OpenWithConfig(cfg)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	id, err := reopened.SessionID(ctx)
	if err != nil {
		t.Fatalf("session id: %v", err)
	}
	if id != "0f6c" {
		t.Fatalf("expected persisted session id, got %q", id)
	}
}

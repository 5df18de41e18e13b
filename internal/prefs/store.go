// Package prefs persists the handful of display preferences the browser UI
// kept in localStorage: node limit, UML depth, API key, session id, active
// tab. Values are plain strings with no versioned schema; concurrent writers
// race last-write-wins, exactly like the origin storage.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Well-known preference keys.
const (
	KeyNodeLimit = "nodeLimit"
	KeyUMLDepth  = "umlDepth"
	KeyAPIKey    = "apiKey"
	KeySessionID = "sessionId"
	KeyActiveTab = "activeTab"
)

// Display defaults applied when a key has never been written.
const (
	DefaultNodeLimit = 300
	DefaultUMLDepth  = 3
)

// consoleScope holds preferences that belong to the console itself rather
// than to one remote session, such as the persisted session id.
const consoleScope = "console"

// Store wraps a pooled sqlx.DB connection to the preference database.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store at the configured path, migrating the schema on
// first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("prefs path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve prefs path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open prefs db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping prefs db: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var schemaStatements = []string{
	`PRAGMA journal_mode = WAL;`,
	`CREATE TABLE IF NOT EXISTS preferences (
                scope TEXT NOT NULL,
                key TEXT NOT NULL,
                value TEXT NOT NULL,
                updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
                PRIMARY KEY (scope, key)
        );`,
}

func (s *Store) migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("prefs store not initialised")
	}
	for i, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// Get returns the raw value for a session-scoped key; ok is false when the
// key was never written.
func (s *Store) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	return s.get(ctx, sessionID, key)
}

// Set writes a session-scoped key, overwriting any prior value.
func (s *Store) Set(ctx context.Context, sessionID, key, value string) error {
	return s.set(ctx, sessionID, key, value)
}

func (s *Store) get(ctx context.Context, scope, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("prefs store not initialised")
	}
	var value string
	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM preferences WHERE scope = ? AND key = ?`, scope, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read preference %s/%s: %w", scope, key, err)
	}
	return value, true, nil
}

func (s *Store) set(ctx context.Context, scope, key, value string) error {
	if s == nil || s.db == nil {
		return errors.New("prefs store not initialised")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (scope, key, value, updated_at)
                 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
                 ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope, key, value)
	if err != nil {
		return fmt.Errorf("write preference %s/%s: %w", scope, key, err)
	}
	return nil
}

// NodeLimit returns the graph node display cap for a session.
func (s *Store) NodeLimit(ctx context.Context, sessionID string) (int, error) {
	value, ok, err := s.get(ctx, sessionID, KeyNodeLimit)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultNodeLimit, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return DefaultNodeLimit, nil
	}
	return parsed, nil
}

func (s *Store) SetNodeLimit(ctx context.Context, sessionID string, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("node limit must be positive")
	}
	return s.set(ctx, sessionID, KeyNodeLimit, strconv.Itoa(limit))
}

// UMLDepth returns the class diagram traversal depth for a session.
func (s *Store) UMLDepth(ctx context.Context, sessionID string) (int, error) {
	value, ok, err := s.get(ctx, sessionID, KeyUMLDepth)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultUMLDepth, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return DefaultUMLDepth, nil
	}
	return parsed, nil
}

func (s *Store) SetUMLDepth(ctx context.Context, sessionID string, depth int) error {
	if depth <= 0 {
		return fmt.Errorf("uml depth must be positive")
	}
	return s.set(ctx, sessionID, KeyUMLDepth, strconv.Itoa(depth))
}

// APIKey returns the stored OpenAI API key for a session, empty when unset.
func (s *Store) APIKey(ctx context.Context, sessionID string) (string, error) {
	value, _, err := s.get(ctx, sessionID, KeyAPIKey)
	return value, err
}

func (s *Store) SetAPIKey(ctx context.Context, sessionID, key string) error {
	return s.set(ctx, sessionID, KeyAPIKey, key)
}

// ActiveTab returns the last tab the user had open.
func (s *Store) ActiveTab(ctx context.Context, sessionID string) (string, error) {
	value, _, err := s.get(ctx, sessionID, KeyActiveTab)
	return value, err
}

func (s *Store) SetActiveTab(ctx context.Context, sessionID, tab string) error {
	return s.set(ctx, sessionID, KeyActiveTab, tab)
}

// SessionID returns the persisted console session id, empty when none has
// been minted yet.
func (s *Store) SessionID(ctx context.Context) (string, error) {
	value, _, err := s.get(ctx, consoleScope, KeySessionID)
	return value, err
}

// SetSessionID persists the console session id across restarts.
func (s *Store) SetSessionID(ctx context.Context, id string) error {
	return s.set(ctx, consoleScope, KeySessionID, id)
}

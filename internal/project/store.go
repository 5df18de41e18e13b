package project

import (
	"errors"
	"sync"
)

// ErrDraftNotFound is returned when no draft exists for a session.
var ErrDraftNotFound = errors.New("draft not found")

// Store keeps at most one draft per session, guarded for concurrent handler
// access. Drafts are in-memory only.
type Store struct {
	mu     sync.RWMutex
	drafts map[string]*Draft
}

func NewStore() *Store {
	return &Store{drafts: make(map[string]*Draft)}
}

// Put installs the draft for a session, replacing any previous one.
func (s *Store) Put(sessionID string, draft *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[sessionID] = draft
}

// Get returns a deep copy of the session's draft. Callers encode and inspect
// the copy freely; mutations go through Update so concurrent edits never
// race a reader.
func (s *Store) Get(sessionID string) (*Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[sessionID]
	if !ok {
		return nil, ErrDraftNotFound
	}
	return draft.Clone(), nil
}

// Update applies fn to the session's draft under the store lock.
func (s *Store) Update(sessionID string, fn func(*Draft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[sessionID]
	if !ok {
		return ErrDraftNotFound
	}
	return fn(draft)
}

// Delete discards the session's draft, if any.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, sessionID)
}

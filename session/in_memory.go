package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ekartashov/knowsync/core"
)

// InMemoryStore is a volatile core.SessionStore keeping sessions in a
// process local map. It is safe for concurrent access. Returned sessions
// are cloned to prevent external mutation of internal state; Update applies
// its mutation under the store lock, giving per-session atomicity.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.SyncSession
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.SyncSession)}
}

// Create stores the session, failing with core.ErrAlreadyExists when the id
// is taken.
func (s *InMemoryStore) Create(_ context.Context, session *core.SyncSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("%w: session %q", core.ErrAlreadyExists, session.ID)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Get returns a clone of the session or core.ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*core.SyncSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %q", core.ErrNotFound, sessionID)
	}
	return session.Clone(), nil
}

// Update applies fn to the stored session under the store lock. When fn
// returns an error the session is left untouched; otherwise the mutated
// session is kept and a clone returned.
func (s *InMemoryStore) Update(_ context.Context, sessionID string, fn func(*core.SyncSession) error) (*core.SyncSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %q", core.ErrNotFound, sessionID)
	}
	scratch := session.Clone()
	if err := fn(scratch); err != nil {
		return nil, err
	}
	s.sessions[sessionID] = scratch
	return scratch.Clone(), nil
}

// List returns clones of all sessions ordered by creation time then id.
func (s *InMemoryStore) List(_ context.Context) ([]*core.SyncSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*core.SyncSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session.Clone())
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

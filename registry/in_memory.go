package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ekartashov/knowsync/core"
)

// InMemoryStore is a volatile core.AgentStore keeping agents in a process
// local map. It is safe for concurrent access and best suited for tests or
// single-process deployments. Agents are cloned on save and retrieval to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu     sync.RWMutex
	agents map[string]*core.Agent
}

// NewInMemoryStore constructs an empty in-memory agent store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{agents: make(map[string]*core.Agent)}
}

// Save stores (or overwrites) a clone of the agent.
func (s *InMemoryStore) Save(_ context.Context, agent *core.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent.Clone()
	return nil
}

// Get returns a clone of the stored agent or core.ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, agentID string) (*core.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("%w", core.ErrNotFound)
	}
	return agent.Clone(), nil
}

// Delete removes the agent if present or returns core.ErrNotFound.
func (s *InMemoryStore) Delete(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agentID]; !ok {
		return fmt.Errorf("%w", core.ErrNotFound)
	}
	delete(s.agents, agentID)
	return nil
}

// List returns clones of all stored agents ordered by id for deterministic
// iteration.
func (s *InMemoryStore) List(_ context.Context) ([]*core.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agents := make([]*core.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a.Clone())
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}

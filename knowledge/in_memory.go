package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ekartashov/knowsync/core"
)

// InMemoryStore is an in-process core.KnowledgeStore implementation useful
// for tests, examples and single-process deployments. It keeps all artifacts
// in a nested map guarded by an RWMutex. Artifacts are cloned on save and
// retrieval to avoid accidental external mutation of internal state.
//
// Layout: agentID -> (type,id) -> artifact
//
// A Store against an existing key overwrites in place, so (type,id) stays
// unique within one agent's store. Per-key atomicity follows from the store
// level lock.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[core.ArtifactKey]*core.Artifact
}

// NewInMemoryStore returns an empty in-memory knowledge store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[core.ArtifactKey]*core.Artifact)}
}

// Store upserts the artifact under the composite (agentID, type, id) key,
// stamping owner and StoredAt. The returned artifact is the stored copy.
func (s *InMemoryStore) Store(_ context.Context, agentID string, artifact *core.Artifact) (*core.Artifact, error) {
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[agentID]; !ok {
		s.artifacts[agentID] = make(map[core.ArtifactKey]*core.Artifact)
	}
	stored := artifact.Clone()
	stored.AgentID = agentID
	stored.StoredAt = time.Now().UTC()
	s.artifacts[agentID][stored.Key()] = stored
	return stored.Clone(), nil
}

// Get returns a clone of the stored artifact or core.ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, agentID string, artifactType core.ArtifactType, artifactID string) (*core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.artifacts[agentID]
	if !ok {
		return nil, fmt.Errorf("%w", core.ErrNotFound)
	}
	a, ok := m[core.ArtifactKey{Type: artifactType, ID: artifactID}]
	if !ok {
		return nil, fmt.Errorf("%w", core.ErrNotFound)
	}
	return a.Clone(), nil
}

// List returns clones of the agent's artifacts matching every filter
// criterion, ordered by (type, id) for deterministic iteration.
func (s *InMemoryStore) List(_ context.Context, agentID string, filter core.ListFilter) ([]*core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.artifacts[agentID]
	if !ok {
		return []*core.Artifact{}, nil
	}
	artifacts := make([]*core.Artifact, 0, len(m))
	for _, a := range m {
		if filter.Match(a) {
			artifacts = append(artifacts, a.Clone())
		}
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].Type != artifacts[j].Type {
			return artifacts[i].Type < artifacts[j].Type
		}
		return artifacts[i].ID < artifacts[j].ID
	})
	return artifacts, nil
}

// Delete removes the artifact if present or returns core.ErrNotFound.
func (s *InMemoryStore) Delete(_ context.Context, agentID string, artifactType core.ArtifactType, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.artifacts[agentID]
	if !ok {
		return fmt.Errorf("%w", core.ErrNotFound)
	}
	key := core.ArtifactKey{Type: artifactType, ID: artifactID}
	if _, ok := m[key]; !ok {
		return fmt.Errorf("%w", core.ErrNotFound)
	}
	delete(m, key)
	return nil
}

// Has reports whether the artifact exists.
func (s *InMemoryStore) Has(_ context.Context, agentID string, artifactType core.ArtifactType, artifactID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.artifacts[agentID]
	if !ok {
		return false, nil
	}
	_, ok = m[core.ArtifactKey{Type: artifactType, ID: artifactID}]
	return ok, nil
}

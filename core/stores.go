package core

import "context"

// AgentStore persists the agent registry. Implementations must be
// thread-safe and return defensive copies; business rules (duplicate checks,
// protected fields, history capping) live in the registry component, not
// here. Get and Delete return ErrNotFound for unknown ids.
type AgentStore interface {
	Save(ctx context.Context, agent *Agent) error
	Get(ctx context.Context, agentID string) (*Agent, error)
	Delete(ctx context.Context, agentID string) error
	List(ctx context.Context) ([]*Agent, error)
}

// KnowledgeStore persists artifacts keyed by (agentID, type, id).
// Implementations must be thread-safe; a Store against an existing key
// overwrites in place, and every mutation must be atomic per key. Get
// returns ErrNotFound rather than a nil artifact. There is deliberately no
// cross-agent query here; cross-agent comparison is the conflict detector's
// job.
type KnowledgeStore interface {
	Store(ctx context.Context, agentID string, artifact *Artifact) (*Artifact, error)
	Get(ctx context.Context, agentID string, artifactType ArtifactType, artifactID string) (*Artifact, error)
	List(ctx context.Context, agentID string, filter ListFilter) ([]*Artifact, error)
	Delete(ctx context.Context, agentID string, artifactType ArtifactType, artifactID string) error
	Has(ctx context.Context, agentID string, artifactType ArtifactType, artifactID string) (bool, error)
}

// SessionStore persists synchronization sessions. Update applies fn to the
// stored session atomically with respect to the session id, so concurrent
// status transitions and conflict mutations cannot interleave. Get returns a
// clone; mutating it does not affect the stored session.
type SessionStore interface {
	Create(ctx context.Context, session *SyncSession) error
	Get(ctx context.Context, sessionID string) (*SyncSession, error)
	Update(ctx context.Context, sessionID string, fn func(*SyncSession) error) (*SyncSession, error)
	List(ctx context.Context) ([]*SyncSession, error)
}

// ActivityLog receives the same event stream recorded into agents' sync
// histories, for external audit/analytics sinks. Implementations must not
// block indefinitely; failures are the sink's concern and never abort the
// recording operation.
type ActivityLog interface {
	Record(ctx context.Context, agentID string, event SyncEvent) error
}

// SimilarityScorer is the collaborator behind the semantic detection
// algorithm. Score returns a similarity in [0,1] between the two artifacts'
// content plus the concepts that changed between them.
type SimilarityScorer interface {
	Score(ctx context.Context, source, target *Artifact) (similarity float64, changedConcepts []string, err error)
}

// Checksummer computes a content checksum for artifacts that do not carry a
// producer-supplied one, used by the checksum detection algorithm.
type Checksummer interface {
	Checksum(artifact *Artifact) (string, error)
}

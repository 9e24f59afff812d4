package core

import (
	"fmt"
	"time"

	"github.com/ekartashov/knowsync/internal/util"
)

// ArtifactType categorizes a knowledge artifact. The known kinds map to the
// durable collaborator channels an artifact can be hydrated from / persisted
// to; ArtifactGeneric covers everything else as an opaque key/value payload.
type ArtifactType string

const (
	// ArtifactDecision is a recorded decision with rationale.
	ArtifactDecision ArtifactType = "decision"
	// ArtifactPattern is a reusable system pattern.
	ArtifactPattern ArtifactType = "pattern"
	// ArtifactProgress is a progress / status entry.
	ArtifactProgress ArtifactType = "progress"
	// ArtifactGeneric is an uncategorized key/value artifact.
	ArtifactGeneric ArtifactType = "generic"
)

// Valid reports whether t is one of the known artifact kinds.
func (t ArtifactType) Valid() bool {
	switch t {
	case ArtifactDecision, ArtifactPattern, ArtifactProgress, ArtifactGeneric:
		return true
	}
	return false
}

// ArtifactKey is the identity of an artifact across agents. Within one
// agent's store the key is unique; comparing two agents' copies of the same
// key is how conflicts are detected.
type ArtifactKey struct {
	Type ArtifactType `json:"type"`
	ID   string       `json:"id"`
}

// String renders the key in "type:id" form, matching event payloads.
func (k ArtifactKey) String() string { return fmt.Sprintf("%s:%s", k.Type, k.ID) }

// SyncInfo records provenance stamped onto an artifact when it is transferred
// between agents by a synchronization session.
type SyncInfo struct {
	SyncedFrom string    `json:"synced_from"`
	SyncedAt   time.Time `json:"synced_at"`
	SessionID  string    `json:"session_id"`
}

// ResolutionInfo annotates an artifact produced by conflict resolution.
type ResolutionInfo struct {
	Strategy   Resolution `json:"strategy"`
	ConflictID string     `json:"conflict_id"`
	ResolvedAt time.Time  `json:"resolved_at"`
}

// Artifact is a single typed, identified, timestamped unit of knowledge.
// Content is a JSON-object payload whose shape is owned by the producer;
// the engine treats it field-generically (diff, merge, dotted-path filters).
// Timestamp is the logical version marker used for conflict detection and
// incremental transfer ordering. AgentID and StoredAt are storage metadata
// stamped by the knowledge store on save.
type Artifact struct {
	ID        string         `json:"id"`
	Type      ArtifactType   `json:"type"`
	Content   map[string]any `json:"content"`
	Timestamp time.Time      `json:"timestamp"`

	// Checksum optionally carries a producer-supplied content checksum used
	// by the checksum detection algorithm. Empty means not supplied.
	Checksum string `json:"checksum,omitempty"`

	AgentID    string          `json:"agent_id,omitempty"`
	StoredAt   time.Time       `json:"stored_at,omitempty"`
	SyncInfo   *SyncInfo       `json:"sync_info,omitempty"`
	Resolution *ResolutionInfo `json:"resolution,omitempty"`
}

// Key returns the cross-agent identity of the artifact.
func (a *Artifact) Key() ArtifactKey { return ArtifactKey{Type: a.Type, ID: a.ID} }

// Clone returns a deep copy of the artifact safe for independent mutation.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Content = util.CloneMap(a.Content)
	if a.SyncInfo != nil {
		si := *a.SyncInfo
		cp.SyncInfo = &si
	}
	if a.Resolution != nil {
		ri := *a.Resolution
		cp.Resolution = &ri
	}
	return &cp
}

// Validate checks the minimal shape required before an artifact may be
// stored: a non-empty id, a known type and a non-zero version timestamp.
func (a *Artifact) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil artifact", ErrInvalidInput)
	}
	if a.ID == "" {
		return fmt.Errorf("%w: artifact id is required", ErrInvalidInput)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown artifact type %q", ErrInvalidInput, a.Type)
	}
	if a.Timestamp.IsZero() {
		return fmt.Errorf("%w: artifact timestamp is required", ErrInvalidInput)
	}
	return nil
}

// ListFilter narrows a per-agent artifact listing. All supplied predicates
// must match (conjunction). A zero ListFilter matches everything.
type ListFilter struct {
	// Types restricts results to the given artifact kinds. Empty means all.
	Types []ArtifactType
	// Since keeps only artifacts whose version timestamp is strictly after
	// the given instant.
	Since *time.Time
	// Predicates are content-level checks evaluated against each artifact's
	// payload (dotted-path equality/existence or a custom function).
	Predicates []Predicate
}

// Match reports whether the artifact satisfies every filter criterion.
func (f ListFilter) Match(a *Artifact) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if a.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && !a.Timestamp.After(*f.Since) {
		return false
	}
	for _, p := range f.Predicates {
		if !p.Matches(a.Content) {
			return false
		}
	}
	return true
}

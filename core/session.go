package core

import (
	"sync"
	"time"

	"github.com/ekartashov/knowsync/internal/util"
)

// SessionStatus is a state of the session state machine.
//
// Legal transitions: created -> running -> completed; running <->
// conflict_detected (informational substate, still "active"); created,
// running and conflict_detected may transition to cancelled. completed and
// cancelled are terminal.
type SessionStatus string

const (
	// SessionCreated is the initial status.
	SessionCreated SessionStatus = "created"
	// SessionRunning marks an active session.
	SessionRunning SessionStatus = "running"
	// SessionConflictDetected marks an active session with unresolved
	// conflicts. It is reported alongside running, not a true exit: the
	// session returns to running once every conflict is resolved.
	SessionConflictDetected SessionStatus = "conflict_detected"
	// SessionCompleted is the terminal success status.
	SessionCompleted SessionStatus = "completed"
	// SessionCancelled is the terminal abort status.
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further status mutation is permitted.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// Active reports whether the session is running (including the informational
// conflict_detected substate).
func (s SessionStatus) Active() bool {
	return s == SessionRunning || s == SessionConflictDetected
}

// SyncMode is the direction of a synchronization session.
type SyncMode string

const (
	// SyncBidirectional moves artifacts both ways.
	SyncBidirectional SyncMode = "bidirectional"
	// SyncPush moves artifacts source -> target.
	SyncPush SyncMode = "push"
	// SyncPull moves artifacts target <- source, initiated by the receiver.
	SyncPull SyncMode = "pull"
)

// Valid reports whether m is a known sync mode.
func (m SyncMode) Valid() bool {
	return m == SyncBidirectional || m == SyncPush || m == SyncPull
}

// TransferMode selects how artifacts move during push/pull.
type TransferMode string

const (
	// TransferIncremental skips artifacts the target already holds a
	// newer-or-equal version of.
	TransferIncremental TransferMode = "incremental"
	// TransferFull unconditionally overwrites the target's artifact.
	TransferFull TransferMode = "full"
)

// SessionProgress accumulates counters as a session advances.
type SessionProgress struct {
	ArtifactsCompared int `json:"artifacts_compared"`
	ConflictsDetected int `json:"conflicts_detected"`
	ConflictsResolved int `json:"conflicts_resolved"`
}

// SyncSession is a bounded, stateful unit of synchronization work between two
// or more agents. It is safe for concurrent access; sessions are retained for
// audit and never physically deleted.
//
// Contract:
//   - AgentIDs is fixed at creation (at least two participants)
//   - Status mutations stamp Updated; terminal statuses reject further change
//   - Conflicts is ordered by detection; accessors return defensive copies
//   - Clone performs deep copies of maps/slices for safe divergence.
type SyncSession struct {
	ID            string           `json:"id"`
	AgentIDs      []string         `json:"agent_ids"`
	Mode          SyncMode         `json:"mode"`
	ArtifactTypes []ArtifactType   `json:"artifact_types,omitempty"`
	Rules         []Predicate      `json:"-"`
	Status        SessionStatus    `json:"status"`
	Conflicts     []*Conflict      `json:"conflicts,omitempty"`
	Progress      SessionProgress  `json:"progress"`
	Results       map[string]any   `json:"results,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
	CancelReason  string           `json:"cancel_reason,omitempty"`

	mu sync.RWMutex
}

// NewSyncSession creates a session in the created status. The id may be
// empty, in which case a fresh one is generated.
func NewSyncSession(id string, agentIDs []string, mode SyncMode) *SyncSession {
	if id == "" {
		id = NewID()
	}
	now := time.Now().UTC()
	ids := make([]string, len(agentIDs))
	copy(ids, agentIDs)
	return &SyncSession{
		ID:        id,
		AgentIDs:  ids,
		Mode:      mode,
		Status:    SessionCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasParticipant reports whether the agent is one of the session's
// participants.
func (s *SyncSession) HasParticipant(agentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.AgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// AddConflicts appends detected conflicts and updates progress counters.
func (s *SyncSession) AddConflicts(conflicts ...*Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conflicts = append(s.Conflicts, conflicts...)
	s.Progress.ConflictsDetected += len(conflicts)
	s.UpdatedAt = time.Now().UTC()
}

// FindConflict returns the conflict with the given id, or nil.
func (s *SyncSession) FindConflict(conflictID string) *Conflict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.Conflicts {
		if c.ID == conflictID {
			return c
		}
	}
	return nil
}

// UnresolvedConflicts counts conflicts not yet resolved.
func (s *SyncSession) UnresolvedConflicts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.Conflicts {
		if !c.IsResolved() {
			n++
		}
	}
	return n
}

// SetStatus stamps a new status and its transition timestamp. Transition
// legality is the session manager's responsibility; SetStatus only records.
func (s *SyncSession) SetStatus(status SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.Status = status
	s.UpdatedAt = now
	switch status {
	case SessionRunning:
		if s.StartedAt == nil {
			s.StartedAt = &now
		}
	case SessionCompleted:
		s.CompletedAt = &now
	case SessionCancelled:
		s.CancelledAt = &now
	}
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *SyncSession) Clone() *SyncSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &SyncSession{
		ID:           s.ID,
		Mode:         s.Mode,
		Status:       s.Status,
		Progress:     s.Progress,
		Results:      util.CloneMap(s.Results),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		CancelReason: s.CancelReason,
	}
	clone.AgentIDs = make([]string, len(s.AgentIDs))
	copy(clone.AgentIDs, s.AgentIDs)
	clone.ArtifactTypes = make([]ArtifactType, len(s.ArtifactTypes))
	copy(clone.ArtifactTypes, s.ArtifactTypes)
	clone.Rules = make([]Predicate, len(s.Rules))
	copy(clone.Rules, s.Rules)
	clone.Conflicts = make([]*Conflict, len(s.Conflicts))
	for i, c := range s.Conflicts {
		clone.Conflicts[i] = c.Clone()
	}
	for _, t := range []struct {
		src *time.Time
		dst **time.Time
	}{
		{s.StartedAt, &clone.StartedAt},
		{s.CompletedAt, &clone.CompletedAt},
		{s.CancelledAt, &clone.CancelledAt},
	} {
		if t.src != nil {
			v := *t.src
			*t.dst = &v
		}
	}
	return clone
}

package core

import (
	"time"

	"github.com/google/uuid"
)

// SyncEventType names a recorded synchronization activity.
type SyncEventType string

const (
	// EventSessionCreated marks a session creation for a participant.
	EventSessionCreated SyncEventType = "session_created"
	// EventSessionStarted marks a session transition to running.
	EventSessionStarted SyncEventType = "session_started"
	// EventConflictsDetected marks a detection pass that found conflicts.
	EventConflictsDetected SyncEventType = "conflicts_detected"
	// EventConflictResolved marks a single conflict resolution.
	EventConflictResolved SyncEventType = "conflict_resolved"
	// EventSessionCompleted marks a session completion with final counts.
	EventSessionCompleted SyncEventType = "session_completed"
	// EventSessionCancelled marks a session cancellation.
	EventSessionCancelled SyncEventType = "session_cancelled"
	// EventKnowledgeCompared marks a read-only comparison between agents.
	EventKnowledgeCompared SyncEventType = "knowledge_compared"
)

// SyncEvent is one entry of an agent's synchronization history. After
// emission it should be treated as immutable. PeerAgentID identifies the
// counterpart of the activity where one exists (the other side of a
// detection, comparison or resolution); Details carries event-specific
// counts and identifiers.
type SyncEvent struct {
	ID          string         `json:"id"`
	Type        SyncEventType  `json:"type"`
	SessionID   string         `json:"session_id,omitempty"`
	PeerAgentID string         `json:"peer_agent_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Details     map[string]any `json:"details,omitempty"`
}

// NewSyncEvent creates an event of the given type bound to a session (which
// may be empty for session-less activities such as comparisons). The
// timestamp defaults to the current UTC time.
func NewSyncEvent(eventType SyncEventType, sessionID string) SyncEvent {
	return SyncEvent{
		ID:        NewID(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}

// WithPeer returns a copy of the event attributed to a counterpart agent.
func (e SyncEvent) WithPeer(agentID string) SyncEvent {
	e.PeerAgentID = agentID
	return e
}

// WithDetails returns a copy of the event carrying the given payload.
func (e SyncEvent) WithDetails(details map[string]any) SyncEvent {
	e.Details = details
	return e
}

// NewID generates a new unique identifier for events, conflicts and
// sessions. Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }

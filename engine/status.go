package engine

import (
	"context"
	"time"

	"github.com/ekartashov/knowsync/core"
)

// StatusInput scopes a status snapshot. AgentID and SessionID are both
// optional; with neither set the snapshot carries engine-wide totals only.
type StatusInput struct {
	AgentID   string
	SessionID string
}

// AgentStatus is the synchronization view of one agent.
type AgentStatus struct {
	AgentID       string           `json:"agent_id"`
	LastSync      *time.Time       `json:"last_sync,omitempty"`
	ArtifactCount int              `json:"artifact_count"`
	SyncHistory   []core.SyncEvent `json:"sync_history"`
}

// SessionStatus is the synchronization view of one session.
type SessionStatus struct {
	SessionID         string               `json:"session_id"`
	Status            core.SessionStatus   `json:"status"`
	Mode              core.SyncMode        `json:"mode"`
	AgentIDs          []string             `json:"agent_ids"`
	Progress          core.SessionProgress `json:"progress"`
	ConflictsPending  int                  `json:"conflicts_pending"`
	ConflictsResolved int                  `json:"conflicts_resolved"`
}

// Status is a point-in-time snapshot of synchronization state. Agent and
// Session are populated only when the corresponding id was requested.
type Status struct {
	Agent   *AgentStatus   `json:"agent,omitempty"`
	Session *SessionStatus `json:"session,omitempty"`

	RegisteredAgents int                        `json:"registered_agents"`
	TotalSessions    int                        `json:"total_sessions"`
	SessionsByStatus map[core.SessionStatus]int `json:"sessions_by_status"`
}

// Status reports the current synchronization state. Unknown agent or
// session ids return core.ErrNotFound.
func (s *Synchronizer) Status(ctx context.Context, in StatusInput) (*Status, error) {
	status := &Status{SessionsByStatus: make(map[core.SessionStatus]int)}

	summaries, err := s.registry.List(ctx, core.AgentFilter{})
	if err != nil {
		return nil, err
	}
	status.RegisteredAgents = len(summaries)

	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	status.TotalSessions = len(sessions)
	for _, sess := range sessions {
		status.SessionsByStatus[sess.Status]++
	}

	if in.AgentID != "" {
		agent, err := s.registry.Get(ctx, in.AgentID)
		if err != nil {
			return nil, err
		}
		artifacts, err := s.knowledge.List(ctx, in.AgentID, core.ListFilter{})
		if err != nil {
			return nil, err
		}
		status.Agent = &AgentStatus{
			AgentID:       agent.ID,
			LastSync:      agent.LastSync,
			ArtifactCount: len(artifacts),
			SyncHistory:   agent.SyncHistory,
		}
	}

	if in.SessionID != "" {
		sess, err := s.sessions.Get(ctx, in.SessionID)
		if err != nil {
			return nil, err
		}
		pending := 0
		resolved := 0
		for _, c := range sess.Conflicts {
			if c.IsResolved() {
				resolved++
			} else {
				pending++
			}
		}
		status.Session = &SessionStatus{
			SessionID:         sess.ID,
			Status:            sess.Status,
			Mode:              sess.Mode,
			AgentIDs:          sess.AgentIDs,
			Progress:          sess.Progress,
			ConflictsPending:  pending,
			ConflictsResolved: resolved,
		}
	}
	return status, nil
}

package session

import (
	"context"
	"fmt"

	"github.com/ekartashov/knowsync/conflict"
	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/logging"
	"github.com/ekartashov/knowsync/registry"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Store is the backing session store. Defaults to the in-memory store.
	Store core.SessionStore
	// Registry validates participants and records their sync events.
	Registry *registry.Registry
	// Knowledge provides the artifact sets detection runs over.
	Knowledge core.KnowledgeStore
	// Detector defaults to a detector with default collaborators.
	Detector *conflict.Detector
	// Resolver defaults to a plain resolver.
	Resolver *conflict.Resolver
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Manager composes the registry, knowledge store, detector and resolver
// into stateful synchronization sessions. All session mutations flow
// through the store's atomic Update, so concurrent operations against the
// same session serialize; sessions for disjoint agent pairs run fully in
// parallel.
type Manager struct {
	store     core.SessionStore
	registry  *registry.Registry
	knowledge core.KnowledgeStore
	detector  *conflict.Detector
	resolver  *conflict.Resolver
	logger    logging.Logger
}

// NewManager constructs a Manager with optional overrides. Registry and
// Knowledge have no useful defaults and must be supplied.
func NewManager(optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		Store:    NewInMemoryStore(),
		Detector: conflict.NewDetector(),
		Resolver: conflict.NewResolver(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		store:     opts.Store,
		registry:  opts.Registry,
		knowledge: opts.Knowledge,
		detector:  opts.Detector,
		resolver:  opts.Resolver,
		logger:    opts.Logger,
	}
}

// CreateInput describes a new session. ID may be empty for a generated one;
// AgentIDs needs at least two registered participants.
type CreateInput struct {
	ID            string
	AgentIDs      []string
	Mode          core.SyncMode
	ArtifactTypes []core.ArtifactType
	Rules         []core.Predicate
}

// Create builds a session in the created status and notifies every
// participant.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*core.SyncSession, error) {
	if len(in.AgentIDs) < 2 {
		return nil, fmt.Errorf("%w: a session needs at least two agents", core.ErrInvalidInput)
	}
	if in.Mode == "" {
		in.Mode = core.SyncBidirectional
	}
	if !in.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown sync mode %q", core.ErrInvalidInput, in.Mode)
	}
	for _, agentID := range in.AgentIDs {
		if !m.registry.Has(ctx, agentID) {
			return nil, fmt.Errorf("%w: unknown agent %q", core.ErrNotFound, agentID)
		}
	}

	session := core.NewSyncSession(in.ID, in.AgentIDs, in.Mode)
	session.ArtifactTypes = in.ArtifactTypes
	session.Rules = in.Rules
	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}

	m.notifyAll(ctx, session.AgentIDs, core.NewSyncEvent(core.EventSessionCreated, session.ID).WithDetails(map[string]any{
		"mode":         string(session.Mode),
		"participants": session.AgentIDs,
	}))
	m.logger.Info("session created", "session_id", session.ID, "mode", string(session.Mode), "participants", len(session.AgentIDs))
	return session, nil
}

// Start transitions a created session to running.
func (m *Manager) Start(ctx context.Context, sessionID string) (*core.SyncSession, error) {
	session, err := m.store.Update(ctx, sessionID, func(s *core.SyncSession) error {
		if s.Status != core.SessionCreated {
			return fmt.Errorf("%w: cannot start session in status %q", core.ErrInvalidTransition, s.Status)
		}
		s.SetStatus(core.SessionRunning)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.notifyAll(ctx, session.AgentIDs, core.NewSyncEvent(core.EventSessionStarted, session.ID))
	return session, nil
}

// DetectConflicts lists both agents' artifacts filtered by the session's
// artifact types and rules, runs the detector, tags the resulting conflicts
// with session and agent identity, appends them to the session and notifies
// both agents. A detection that finds conflicts moves an active session into
// the informational conflict_detected substate.
func (m *Manager) DetectConflicts(ctx context.Context, sessionID, sourceAgentID, targetAgentID string, algorithm core.DetectionAlgorithm) ([]*core.Conflict, error) {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot detect conflicts in status %q", core.ErrInvalidTransition, session.Status)
	}
	for _, agentID := range []string{sourceAgentID, targetAgentID} {
		if !session.HasParticipant(agentID) {
			return nil, fmt.Errorf("%w: %q in session %q", core.ErrNotParticipant, agentID, sessionID)
		}
	}

	filter := core.ListFilter{Types: session.ArtifactTypes, Predicates: session.Rules}
	sourceArtifacts, err := m.knowledge.List(ctx, sourceAgentID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts for %q: %w", sourceAgentID, err)
	}
	targetArtifacts, err := m.knowledge.List(ctx, targetAgentID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts for %q: %w", targetAgentID, err)
	}

	conflicts, err := m.detector.Detect(ctx, sourceArtifacts, targetArtifacts, algorithm)
	if err != nil {
		return nil, err
	}
	for _, c := range conflicts {
		c.SessionID = sessionID
		c.SourceAgentID = sourceAgentID
		c.TargetAgentID = targetAgentID
	}

	if _, err := m.store.Update(ctx, sessionID, func(s *core.SyncSession) error {
		s.AddConflicts(conflicts...)
		s.Progress.ArtifactsCompared += len(sourceArtifacts)
		if s.UnresolvedConflicts() > 0 && s.Status == core.SessionRunning {
			s.SetStatus(core.SessionConflictDetected)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	event := core.NewSyncEvent(core.EventConflictsDetected, sessionID).WithDetails(map[string]any{
		"conflicts_detected": len(conflicts),
		"algorithm":          string(algorithm),
	})
	m.notify(ctx, sourceAgentID, event.WithPeer(targetAgentID))
	m.notify(ctx, targetAgentID, event.WithPeer(sourceAgentID))
	return conflicts, nil
}

// ResolveConflict resolves one detected conflict exactly once, marking it in
// place and notifying both involved agents. A session whose last conflict is
// resolved leaves the conflict_detected substate.
func (m *Manager) ResolveConflict(ctx context.Context, sessionID, conflictID string, resolution core.Resolution, custom *core.CustomResolution) (*core.Conflict, error) {
	var resolved *core.Conflict
	_, err := m.store.Update(ctx, sessionID, func(s *core.SyncSession) error {
		c := s.FindConflict(conflictID)
		if c == nil {
			return fmt.Errorf("%w: conflict %q in session %q", core.ErrNotFound, conflictID, sessionID)
		}
		if c.IsResolved() {
			return fmt.Errorf("%w: conflict %q", core.ErrAlreadyResolved, conflictID)
		}
		artifact, err := m.resolver.Resolve(c, resolution, custom)
		if err != nil {
			return err
		}
		now := artifact.Resolution.ResolvedAt
		c.Status = core.ConflictResolved
		c.Resolution = resolution
		c.ResolvedAt = &now
		c.Resolved = artifact
		s.Progress.ConflictsResolved++
		if s.UnresolvedConflicts() == 0 && s.Status == core.SessionConflictDetected {
			s.SetStatus(core.SessionRunning)
		}
		resolved = c.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := core.NewSyncEvent(core.EventConflictResolved, sessionID).WithDetails(map[string]any{
		"conflict_id": conflictID,
		"resolution":  string(resolution),
	})
	m.notify(ctx, resolved.SourceAgentID, event.WithPeer(resolved.TargetAgentID))
	m.notify(ctx, resolved.TargetAgentID, event.WithPeer(resolved.SourceAgentID))
	return resolved, nil
}

// Complete transitions an active session to the terminal completed status,
// storing the final results and notifying every participant with aggregate
// counts.
func (m *Manager) Complete(ctx context.Context, sessionID string, results map[string]any) (*core.SyncSession, error) {
	session, err := m.store.Update(ctx, sessionID, func(s *core.SyncSession) error {
		if !s.Status.Active() {
			return fmt.Errorf("%w: cannot complete session in status %q", core.ErrInvalidTransition, s.Status)
		}
		s.SetStatus(core.SessionCompleted)
		s.Results = results
		return nil
	})
	if err != nil {
		return nil, err
	}

	details := map[string]any{
		"conflicts_resolved": session.Progress.ConflictsResolved,
		"conflicts_pending":  session.UnresolvedConflicts(),
	}
	for k, v := range results {
		details[k] = v
	}
	m.notifyAll(ctx, session.AgentIDs, core.NewSyncEvent(core.EventSessionCompleted, sessionID).WithDetails(details))
	m.logger.Info("session completed", "session_id", sessionID)
	return session, nil
}

// Cancel transitions any non-terminal session to the terminal cancelled
// status, recording the reason.
func (m *Manager) Cancel(ctx context.Context, sessionID, reason string) (*core.SyncSession, error) {
	session, err := m.store.Update(ctx, sessionID, func(s *core.SyncSession) error {
		if s.Status.Terminal() {
			return fmt.Errorf("%w: cannot cancel session in status %q", core.ErrInvalidTransition, s.Status)
		}
		s.SetStatus(core.SessionCancelled)
		s.CancelReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.notifyAll(ctx, session.AgentIDs, core.NewSyncEvent(core.EventSessionCancelled, sessionID).WithDetails(map[string]any{
		"reason": reason,
	}))
	m.logger.Info("session cancelled", "session_id", sessionID, "reason", reason)
	return session, nil
}

// Get returns a clone of the session or core.ErrNotFound.
func (m *Manager) Get(ctx context.Context, sessionID string) (*core.SyncSession, error) {
	return m.store.Get(ctx, sessionID)
}

// List returns clones of all sessions.
func (m *Manager) List(ctx context.Context) ([]*core.SyncSession, error) {
	return m.store.List(ctx)
}

// notify records an event into one agent's history. Recording failures are
// logged, never propagated: event delivery must not fail the session
// operation that triggered it.
func (m *Manager) notify(ctx context.Context, agentID string, event core.SyncEvent) {
	if err := m.registry.RecordSyncEvent(ctx, agentID, event); err != nil {
		m.logger.Warn("failed to record sync event", "agent_id", agentID, "event_type", string(event.Type), "error", err)
	}
}

func (m *Manager) notifyAll(ctx context.Context, agentIDs []string, event core.SyncEvent) {
	for _, agentID := range agentIDs {
		m.notify(ctx, agentID, event)
	}
}

package engine

import (
	"context"
	"fmt"

	"github.com/ekartashov/knowsync/core"
)

// PullInput describes a pull of artifacts into a target agent, initiated by
// that receiver.
type PullInput struct {
	// TargetAgentID is the pulling (receiving) agent. Required.
	TargetAgentID string
	// SourceAgentID is the agent pulled from. Empty pulls independently
	// from every other registered agent.
	SourceAgentID string
	// ArtifactTypes narrows the pulled artifact kinds.
	ArtifactTypes []core.ArtifactType
	// Transfer selects incremental or full semantics. Empty uses the
	// synchronizer default.
	Transfer core.TransferMode
	// Strategy auto-resolves detected conflicts. Empty falls back to the
	// pulling agent's preferred strategy; if the agent has none, conflicts
	// are left unresolved and their artifacts excluded from transfer.
	Strategy core.ConflictStrategy
	// Predicates narrows pulled artifacts by content.
	Predicates []core.Predicate
	// Algorithm selects the conflict detection algorithm.
	Algorithm core.DetectionAlgorithm
}

// PullSourceResult is the outcome of a pull from one counterpart agent.
type PullSourceResult struct {
	SourceAgentID     string `json:"source_agent_id"`
	SessionID         string `json:"session_id,omitempty"`
	Transferred       int    `json:"transferred"`
	Skipped           int    `json:"skipped"`
	ConflictsDetected int    `json:"conflicts_detected"`
	ConflictsResolved int    `json:"conflicts_resolved"`
	Err               error  `json:"-"`
}

// PullResult aggregates the per-source outcomes.
type PullResult struct {
	Success bool               `json:"success"`
	Sources []PullSourceResult `json:"sources"`
}

// Pull moves artifacts from the named source agent (or from every other
// registered agent) into the pulling agent. Conflict detection always runs,
// oriented with the pulling agent as the conflict source side; a supplied
// strategy auto-resolves each conflict and the resolved artifact is
// persisted into the pulling agent's store. Artifacts whose conflicts stay
// unresolved are excluded from the plain transfer pass.
func (s *Synchronizer) Pull(ctx context.Context, in PullInput) (*PullResult, error) {
	if in.TargetAgentID == "" {
		return nil, fmt.Errorf("%w: target agent id is required", core.ErrInvalidInput)
	}
	if err := validStrategy(in.Strategy); err != nil {
		return nil, err
	}
	puller, err := s.registry.Get(ctx, in.TargetAgentID)
	if err != nil {
		return nil, err
	}
	if in.Strategy == "" {
		in.Strategy = puller.Preferences.ConflictResolution
	}

	var sources []string
	if in.SourceAgentID != "" {
		if _, err := s.registry.Get(ctx, in.SourceAgentID); err != nil {
			return nil, err
		}
		sources = []string{in.SourceAgentID}
	} else {
		sources, err = s.otherAgents(ctx, in.TargetAgentID)
		if err != nil {
			return nil, err
		}
	}

	result := &PullResult{Success: true, Sources: make([]PullSourceResult, len(sources))}
	fanOut(ctx, sources, func(ctx context.Context, i int, sourceID string) {
		sctx, cancel := s.counterpartCtx(ctx)
		defer cancel()
		result.Sources[i] = s.pullFromSource(sctx, in, sourceID)
	})
	for _, r := range result.Sources {
		if r.Err != nil {
			result.Success = false
		}
	}
	return result, nil
}

func (s *Synchronizer) pullFromSource(ctx context.Context, in PullInput, sourceID string) PullSourceResult {
	result := PullSourceResult{SourceAgentID: sourceID}

	sess, err := s.sessions.Create(ctx, sessionInput(in.TargetAgentID, sourceID, core.SyncPull, in.ArtifactTypes, in.Predicates))
	if err != nil {
		result.Err = err
		return result
	}
	result.SessionID = sess.ID
	if _, err := s.sessions.Start(ctx, sess.ID); err != nil {
		result.Err = err
		return result
	}

	// The pulling agent is the conflict-source side, so a latest_wins pull
	// that keeps the remote version resolves as "target".
	conflicts, err := s.sessions.DetectConflicts(ctx, sess.ID, in.TargetAgentID, sourceID, s.detectionAlgorithm(in.Algorithm))
	if err != nil {
		result.Err = err
		return result
	}
	result.ConflictsDetected = len(conflicts)

	conflicted := make(map[core.ArtifactKey]struct{}, len(conflicts))
	for _, c := range conflicts {
		conflicted[c.Key()] = struct{}{}
	}

	if in.Strategy != "" {
		for _, c := range conflicts {
			if err := s.autoResolve(ctx, sess.ID, c, in, sourceID); err != nil {
				result.Err = err
				return result
			}
			result.ConflictsResolved++
		}
	}

	remote, err := s.knowledge.List(ctx, sourceID, core.ListFilter{Types: in.ArtifactTypes, Predicates: in.Predicates})
	if err != nil {
		result.Err = fmt.Errorf("listing artifacts for %q: %w", sourceID, err)
		return result
	}
	mode := s.transferMode(in.Transfer)
	for _, artifact := range remote {
		if _, ok := conflicted[artifact.Key()]; ok {
			continue
		}
		moved, err := s.transferArtifact(ctx, artifact, in.TargetAgentID, sourceID, sess.ID, mode)
		if err != nil {
			result.Err = err
			return result
		}
		if moved {
			result.Transferred++
		} else {
			result.Skipped++
		}
	}

	if _, err := s.sessions.Complete(ctx, sess.ID, map[string]any{
		"artifacts_transferred": result.Transferred,
		"artifacts_skipped":     result.Skipped,
		"conflicts_detected":    result.ConflictsDetected,
		"conflicts_resolved":    result.ConflictsResolved,
	}); err != nil {
		result.Err = err
		return result
	}
	s.logger.Info("pull completed", "target", in.TargetAgentID, "source", sourceID, "transferred", result.Transferred, "conflicts", result.ConflictsDetected)
	return result
}

// autoResolve applies the pull strategy to one conflict and persists the
// winning artifact into the pulling agent's store. Strategy names refer to
// the pull's agents: source_wins keeps the version of the agent pulled
// from, target_wins keeps the pulling agent's own version. preserve_both
// stores the remote copy under a synthesized distinct id, so both versions
// survive, and leaves the local copy standing.
func (s *Synchronizer) autoResolve(ctx context.Context, sessionID string, c *core.Conflict, in PullInput, sourceID string) error {
	var resolution core.Resolution
	switch in.Strategy {
	case core.StrategyLatestWins:
		if c.Source.Timestamp.After(c.Target.Timestamp) {
			resolution = core.ResolutionSource
		} else {
			resolution = core.ResolutionTarget
		}
	case core.StrategySourceWins:
		resolution = core.ResolutionTarget
	case core.StrategyTargetWins:
		resolution = core.ResolutionSource
	case core.StrategyMerge:
		resolution = core.ResolutionMerge
	case core.StrategyPreserveBoth:
		preserved := c.Target.Clone()
		preserved.ID = fmt.Sprintf("%s__from_%s", preserved.ID, sourceID)
		preserved.SyncInfo = &core.SyncInfo{SyncedFrom: sourceID, SyncedAt: c.DetectedAt, SessionID: sessionID}
		if _, err := s.knowledge.Store(ctx, in.TargetAgentID, preserved); err != nil {
			return fmt.Errorf("preserving %s: %w", preserved.Key(), err)
		}
		resolution = core.ResolutionSource
	default:
		return fmt.Errorf("%w: unknown conflict strategy %q", core.ErrInvalidInput, in.Strategy)
	}

	resolved, err := s.sessions.ResolveConflict(ctx, sessionID, c.ID, resolution, nil)
	if err != nil {
		return err
	}
	if _, err := s.transferResolved(ctx, resolved.Resolved, in.TargetAgentID, sourceID, sessionID); err != nil {
		return err
	}
	return nil
}

// transferResolved persists a resolution result into the pulling agent's
// store unconditionally; the resolution already decided which version wins.
func (s *Synchronizer) transferResolved(ctx context.Context, artifact *core.Artifact, toAgentID, fromAgentID, sessionID string) (bool, error) {
	return s.transferArtifact(ctx, artifact, toAgentID, fromAgentID, sessionID, core.TransferFull)
}

func validStrategy(strategy core.ConflictStrategy) error {
	switch strategy {
	case "", core.StrategyLatestWins, core.StrategySourceWins, core.StrategyTargetWins, core.StrategyMerge, core.StrategyPreserveBoth:
		return nil
	}
	return fmt.Errorf("%w: unknown conflict strategy %q", core.ErrInvalidInput, strategy)
}

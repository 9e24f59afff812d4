package engine

import (
	"context"
	"fmt"

	"github.com/ekartashov/knowsync/core"
)

// PushInput describes a push of artifacts from a source agent.
type PushInput struct {
	// SourceAgentID is the agent the artifacts originate from. Required.
	SourceAgentID string
	// TargetAgentID is the receiving agent. Empty fans out to every other
	// registered agent independently.
	TargetAgentID string
	// Artifacts are the artifacts to push. Required.
	Artifacts []*core.Artifact
	// Transfer selects incremental or full semantics. Empty uses the
	// synchronizer default.
	Transfer core.TransferMode
	// Force transfers even when the push would otherwise be declined
	// because of unresolved conflicts.
	Force bool
	// Algorithm selects the conflict detection algorithm.
	Algorithm core.DetectionAlgorithm
}

// PushTargetResult is the outcome of a push against one target agent.
type PushTargetResult struct {
	TargetAgentID string           `json:"target_agent_id"`
	SessionID     string           `json:"session_id,omitempty"`
	Transferred   int              `json:"transferred"`
	Skipped       int              `json:"skipped"`
	Conflicts     []*core.Conflict `json:"conflicts,omitempty"`
	Err           error            `json:"-"`
}

// PushResult aggregates the per-target outcomes. Success means every target
// transferred without error; individual failures are reported per target.
type PushResult struct {
	Success bool               `json:"success"`
	Targets []PushTargetResult `json:"targets"`
}

// Push stores the artifacts under the source agent so they are tracked,
// then moves them to the target (or to every other registered agent when no
// target is named). For each target a push session is opened; unless forced,
// conflict detection runs first and a conflicted push is declined, returning
// the conflicts with zero transferred artifacts and the session left in the
// conflict_detected substate.
func (s *Synchronizer) Push(ctx context.Context, in PushInput) (*PushResult, error) {
	if in.SourceAgentID == "" {
		return nil, fmt.Errorf("%w: source agent id is required", core.ErrInvalidInput)
	}
	if len(in.Artifacts) == 0 {
		return nil, fmt.Errorf("%w: at least one artifact is required", core.ErrInvalidInput)
	}
	if _, err := s.registry.Get(ctx, in.SourceAgentID); err != nil {
		return nil, err
	}

	for _, artifact := range in.Artifacts {
		if _, err := s.knowledge.Store(ctx, in.SourceAgentID, artifact); err != nil {
			return nil, fmt.Errorf("tracking artifact %s under source: %w", artifact.Key(), err)
		}
	}

	var targets []string
	if in.TargetAgentID != "" {
		if _, err := s.registry.Get(ctx, in.TargetAgentID); err != nil {
			return nil, err
		}
		targets = []string{in.TargetAgentID}
	} else {
		var err error
		targets, err = s.otherAgents(ctx, in.SourceAgentID)
		if err != nil {
			return nil, err
		}
	}

	result := &PushResult{Success: true, Targets: make([]PushTargetResult, len(targets))}
	fanOut(ctx, targets, func(ctx context.Context, i int, targetID string) {
		tctx, cancel := s.counterpartCtx(ctx)
		defer cancel()
		result.Targets[i] = s.pushToTarget(tctx, in, targetID)
	})
	for _, t := range result.Targets {
		if t.Err != nil {
			result.Success = false
		}
	}
	return result, nil
}

func (s *Synchronizer) pushToTarget(ctx context.Context, in PushInput, targetID string) PushTargetResult {
	result := PushTargetResult{TargetAgentID: targetID}

	sess, err := s.sessions.Create(ctx, sessionInput(in.SourceAgentID, targetID, core.SyncPush, artifactTypesOf(in.Artifacts), nil))
	if err != nil {
		result.Err = err
		return result
	}
	result.SessionID = sess.ID
	if _, err := s.sessions.Start(ctx, sess.ID); err != nil {
		result.Err = err
		return result
	}

	if !in.Force {
		conflicts, err := s.sessions.DetectConflicts(ctx, sess.ID, in.SourceAgentID, targetID, s.detectionAlgorithm(in.Algorithm))
		if err != nil {
			result.Err = err
			return result
		}
		if len(conflicts) > 0 {
			result.Conflicts = conflicts
			result.Err = fmt.Errorf("%w: %d unresolved conflicts with %q", core.ErrConflictsPending, len(conflicts), targetID)
			return result
		}
	}

	mode := s.transferMode(in.Transfer)
	for _, artifact := range in.Artifacts {
		moved, err := s.transferArtifact(ctx, artifact, targetID, in.SourceAgentID, sess.ID, mode)
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
	}); err != nil {
		result.Err = err
		return result
	}
	s.logger.Info("push completed", "source", in.SourceAgentID, "target", targetID, "transferred", result.Transferred, "skipped", result.Skipped)
	return result
}

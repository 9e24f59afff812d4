package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/ekartashov/knowsync/core"
)

// CompareInput describes a read-only comparison of two agents' knowledge.
type CompareInput struct {
	SourceAgentID string
	TargetAgentID string
	// ArtifactTypes narrows the compared artifact kinds.
	ArtifactTypes []core.ArtifactType
	// Predicates narrows compared artifacts by content.
	Predicates []core.Predicate
	// Algorithm selects the conflict detection algorithm. Empty uses the
	// synchronizer default.
	Algorithm core.DetectionAlgorithm
}

// TypeStats counts comparison outcomes for a single artifact type.
type TypeStats struct {
	Total          int `json:"total"`
	Identical      int `json:"identical"`
	Conflicting    int `json:"conflicting"`
	UniqueToSource int `json:"unique_to_source"`
	UniqueToTarget int `json:"unique_to_target"`
}

// CompareResult partitions the two agents' artifacts by identity and by
// content agreement. Identical holds keys both sides share with no detected
// conflict; Conflicts holds the detector's findings for shared keys whose
// content diverged. Nothing in the result has been written back to either
// store.
type CompareResult struct {
	SourceAgentID  string                           `json:"source_agent_id"`
	TargetAgentID  string                           `json:"target_agent_id"`
	Identical      []core.ArtifactKey               `json:"identical"`
	Conflicts      []*core.Conflict                 `json:"conflicts"`
	UniqueToSource []core.ArtifactKey               `json:"unique_to_source"`
	UniqueToTarget []core.ArtifactKey               `json:"unique_to_target"`
	ByType         map[core.ArtifactType]*TypeStats `json:"by_type"`
}

// Compare inspects two agents' knowledge without creating a session and
// without modifying either store. Both agents must be registered; each
// receives a knowledge_compared history event with the summary counts.
func (s *Synchronizer) Compare(ctx context.Context, in CompareInput) (*CompareResult, error) {
	if in.SourceAgentID == "" || in.TargetAgentID == "" {
		return nil, fmt.Errorf("%w: source and target agent ids are required", core.ErrInvalidInput)
	}
	for _, agentID := range []string{in.SourceAgentID, in.TargetAgentID} {
		if !s.registry.Has(ctx, agentID) {
			return nil, fmt.Errorf("%w: unknown agent %q", core.ErrNotFound, agentID)
		}
	}

	filter := core.ListFilter{Types: in.ArtifactTypes, Predicates: in.Predicates}
	source, err := s.knowledge.List(ctx, in.SourceAgentID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts for %q: %w", in.SourceAgentID, err)
	}
	target, err := s.knowledge.List(ctx, in.TargetAgentID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts for %q: %w", in.TargetAgentID, err)
	}

	conflicts, err := s.detector.Detect(ctx, source, target, s.detectionAlgorithm(in.Algorithm))
	if err != nil {
		return nil, err
	}
	for _, c := range conflicts {
		c.SourceAgentID = in.SourceAgentID
		c.TargetAgentID = in.TargetAgentID
	}

	result := &CompareResult{
		SourceAgentID: in.SourceAgentID,
		TargetAgentID: in.TargetAgentID,
		Conflicts:     conflicts,
		ByType:        make(map[core.ArtifactType]*TypeStats),
	}
	conflicted := make(map[core.ArtifactKey]struct{}, len(conflicts))
	for _, c := range conflicts {
		conflicted[c.Key()] = struct{}{}
	}
	targetKeys := make(map[core.ArtifactKey]struct{}, len(target))
	for _, artifact := range target {
		targetKeys[artifact.Key()] = struct{}{}
	}
	sourceKeys := make(map[core.ArtifactKey]struct{}, len(source))
	for _, artifact := range source {
		key := artifact.Key()
		sourceKeys[key] = struct{}{}
		stats := result.statsFor(key.Type)
		stats.Total++
		if _, shared := targetKeys[key]; !shared {
			stats.UniqueToSource++
			result.UniqueToSource = append(result.UniqueToSource, key)
			continue
		}
		if _, ok := conflicted[key]; ok {
			stats.Conflicting++
			continue
		}
		stats.Identical++
		result.Identical = append(result.Identical, key)
	}
	for _, artifact := range target {
		key := artifact.Key()
		if _, shared := sourceKeys[key]; shared {
			continue
		}
		stats := result.statsFor(key.Type)
		stats.Total++
		stats.UniqueToTarget++
		result.UniqueToTarget = append(result.UniqueToTarget, key)
	}
	sortKeys(result.Identical)
	sortKeys(result.UniqueToSource)
	sortKeys(result.UniqueToTarget)

	details := map[string]any{
		"identical":        len(result.Identical),
		"conflicting":      len(conflicts),
		"unique_to_source": len(result.UniqueToSource),
		"unique_to_target": len(result.UniqueToTarget),
	}
	event := core.NewSyncEvent(core.EventKnowledgeCompared, "").WithDetails(details)
	for agentID, peerID := range map[string]string{
		in.SourceAgentID: in.TargetAgentID,
		in.TargetAgentID: in.SourceAgentID,
	} {
		if err := s.registry.RecordSyncEvent(ctx, agentID, event.WithPeer(peerID)); err != nil {
			s.logger.Warn("failed to record comparison event", "agent", agentID, "error", err)
		}
	}
	s.logger.Info("comparison completed", "source", in.SourceAgentID, "target", in.TargetAgentID, "conflicting", len(conflicts))
	return result, nil
}

func (r *CompareResult) statsFor(artifactType core.ArtifactType) *TypeStats {
	stats, ok := r.ByType[artifactType]
	if !ok {
		stats = &TypeStats{}
		r.ByType[artifactType] = stats
	}
	return stats
}

func sortKeys(keys []core.ArtifactKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].ID < keys[j].ID
	})
}

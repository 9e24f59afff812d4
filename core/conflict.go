package core

import (
	"time"

	"github.com/ekartashov/knowsync/internal/util"
)

// ConflictType classifies the disagreement a detection algorithm found
// between two agents' copies of the same artifact identity.
type ConflictType string

const (
	// ConflictTimestampMismatch reports diverging content with different
	// version timestamps (default algorithm).
	ConflictTimestampMismatch ConflictType = "timestamp_mismatch"
	// ConflictChecksumMismatch reports diverging content checksums.
	ConflictChecksumMismatch ConflictType = "checksum_mismatch"
	// ConflictSemanticDifference reports content similarity below threshold.
	ConflictSemanticDifference ConflictType = "semantic_difference"
	// ConflictStructuralDifference reports a field-level shape difference.
	ConflictStructuralDifference ConflictType = "structural_difference"
)

// ConflictStatus tracks the lifecycle of a detected conflict.
type ConflictStatus string

const (
	// ConflictDetected is the initial status of every conflict.
	ConflictDetected ConflictStatus = "detected"
	// ConflictResolved marks a conflict whose resolution fields are set.
	ConflictResolved ConflictStatus = "resolved"
)

// DetectionAlgorithm selects the per-pair comparison the detector applies.
type DetectionAlgorithm string

const (
	// AlgorithmDefault flags pairs whose serialized content differs.
	AlgorithmDefault DetectionAlgorithm = "default"
	// AlgorithmChecksum compares content checksums.
	AlgorithmChecksum DetectionAlgorithm = "checksum"
	// AlgorithmSemantic delegates to a similarity scorer.
	AlgorithmSemantic DetectionAlgorithm = "semantic"
	// AlgorithmStructural performs a field-by-field content diff.
	AlgorithmStructural DetectionAlgorithm = "structural"
)

// Resolution is a directive telling the resolver how to produce a single
// artifact from a conflict.
type Resolution string

const (
	// ResolutionSource keeps the source-side artifact.
	ResolutionSource Resolution = "source"
	// ResolutionTarget keeps the target-side artifact.
	ResolutionTarget Resolution = "target"
	// ResolutionMerge combines both sides, source winning on overlap.
	ResolutionMerge Resolution = "merge"
	// ResolutionCustom substitutes a caller-supplied payload.
	ResolutionCustom Resolution = "custom"
	// ResolutionPreserveBoth records that the remote copy was stored under a
	// synthesized id so both versions survive. It is applied by the
	// synchronizer's pull path, never by the resolver directly.
	ResolutionPreserveBoth Resolution = "preserve_both"
)

// ConflictStrategy is an automatic resolution policy applied during a pull.
type ConflictStrategy string

const (
	// StrategyLatestWins keeps whichever side has the greater timestamp.
	StrategyLatestWins ConflictStrategy = "latest_wins"
	// StrategySourceWins always keeps the conflict's source side.
	StrategySourceWins ConflictStrategy = "source_wins"
	// StrategyTargetWins always keeps the conflict's target side.
	StrategyTargetWins ConflictStrategy = "target_wins"
	// StrategyMerge combines both sides via the resolver's merge rules.
	StrategyMerge ConflictStrategy = "merge"
	// StrategyPreserveBoth stores the incoming copy under a synthesized
	// distinct id so both versions survive.
	StrategyPreserveBoth ConflictStrategy = "preserve_both"
)

// CustomResolution carries the caller-supplied payload for a custom
// resolution. Content is required; Metadata is merged into the resolved
// artifact's content-free annotations by callers that want it.
type CustomResolution struct {
	Content  map[string]any `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Conflict is a detected disagreement between two agents' versions of the
// same artifact identity. It is immutable once created except for its
// resolution fields, which the session manager sets exactly once.
type Conflict struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"session_id,omitempty"`
	SourceAgentID string         `json:"source_agent_id,omitempty"`
	TargetAgentID string         `json:"target_agent_id,omitempty"`
	Source        *Artifact      `json:"source"`
	Target        *Artifact      `json:"target"`
	Type          ConflictType   `json:"type"`
	Details       map[string]any `json:"details,omitempty"`
	DetectedAt    time.Time      `json:"detected_at"`

	Status     ConflictStatus `json:"status"`
	Resolution Resolution     `json:"resolution,omitempty"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	Resolved   *Artifact      `json:"resolved_artifact,omitempty"`
}

// Key returns the artifact identity both sides of the conflict share.
func (c *Conflict) Key() ArtifactKey { return c.Source.Key() }

// IsResolved reports whether the resolution fields have been set.
func (c *Conflict) IsResolved() bool { return c.Status == ConflictResolved }

// Clone returns a deep copy of the conflict safe for independent mutation.
func (c *Conflict) Clone() *Conflict {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Source = c.Source.Clone()
	cp.Target = c.Target.Clone()
	cp.Resolved = c.Resolved.Clone()
	cp.Details = util.CloneMap(c.Details)
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

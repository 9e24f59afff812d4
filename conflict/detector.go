package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/logging"
)

// DefaultSimilarityThreshold is the semantic similarity below which a pair
// is reported as conflicting.
const DefaultSimilarityThreshold = 0.8

// DetectorOptions configures a Detector.
type DetectorOptions struct {
	// Scorer backs the semantic algorithm. Defaults to TokenOverlapScorer.
	Scorer core.SimilarityScorer
	// Checksummer backs the checksum algorithm for artifacts without a
	// producer-supplied checksum. Defaults to SHA256Checksummer.
	Checksummer core.Checksummer
	// SimilarityThreshold defaults to DefaultSimilarityThreshold.
	SimilarityThreshold float64
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Detector finds disagreements between two artifact sets. It is stateless
// apart from its collaborators and safe for concurrent use.
type Detector struct {
	scorer      core.SimilarityScorer
	checksummer core.Checksummer
	threshold   float64
	logger      logging.Logger
}

// NewDetector constructs a Detector with optional overrides.
func NewDetector(optFns ...func(o *DetectorOptions)) *Detector {
	opts := DetectorOptions{
		Scorer:              TokenOverlapScorer{},
		Checksummer:         SHA256Checksummer{},
		SimilarityThreshold: DefaultSimilarityThreshold,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Detector{
		scorer:      opts.Scorer,
		checksummer: opts.Checksummer,
		threshold:   opts.SimilarityThreshold,
		logger:      opts.Logger,
	}
}

// Detect indexes target artifacts by (type,id) and compares every source
// artifact that has a same-keyed target counterpart under the selected
// algorithm. Each detected conflict gets a fresh id and detection timestamp;
// given the same two artifact sets and algorithm, the same pairs are
// reported. An empty algorithm selects the default.
func (d *Detector) Detect(ctx context.Context, source, target []*core.Artifact, algorithm core.DetectionAlgorithm) ([]*core.Conflict, error) {
	if algorithm == "" {
		algorithm = core.AlgorithmDefault
	}
	switch algorithm {
	case core.AlgorithmDefault, core.AlgorithmChecksum, core.AlgorithmSemantic, core.AlgorithmStructural:
	default:
		return nil, fmt.Errorf("%w: unknown detection algorithm %q", core.ErrInvalidInput, algorithm)
	}

	index := make(map[core.ArtifactKey]*core.Artifact, len(target))
	for _, t := range target {
		index[t.Key()] = t
	}

	var conflicts []*core.Conflict
	for _, src := range source {
		tgt, ok := index[src.Key()]
		if !ok {
			continue
		}
		conflict, err := d.comparePair(ctx, src, tgt, algorithm)
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			conflicts = append(conflicts, conflict)
		}
	}
	d.logger.Debug("detection pass finished", "algorithm", string(algorithm), "pairs", len(index), "conflicts", len(conflicts))
	return conflicts, nil
}

// comparePair applies the per-pair comparison. Identical version timestamps
// are never conflicting regardless of content.
func (d *Detector) comparePair(ctx context.Context, src, tgt *core.Artifact, algorithm core.DetectionAlgorithm) (*core.Conflict, error) {
	if src.Timestamp.Equal(tgt.Timestamp) {
		return nil, nil
	}
	switch algorithm {
	case core.AlgorithmDefault:
		return d.compareDefault(src, tgt)
	case core.AlgorithmChecksum:
		return d.compareChecksum(src, tgt)
	case core.AlgorithmSemantic:
		return d.compareSemantic(ctx, src, tgt)
	case core.AlgorithmStructural:
		return d.compareStructural(src, tgt)
	}
	return nil, fmt.Errorf("%w: unknown detection algorithm %q", core.ErrInvalidInput, algorithm)
}

func (d *Detector) compareDefault(src, tgt *core.Artifact) (*core.Conflict, error) {
	srcJSON, err := canonicalContent(src)
	if err != nil {
		return nil, err
	}
	tgtJSON, err := canonicalContent(tgt)
	if err != nil {
		return nil, err
	}
	if srcJSON == tgtJSON {
		return nil, nil
	}
	return newConflict(src, tgt, core.ConflictTimestampMismatch, map[string]any{
		"time_delta_ms":   src.Timestamp.Sub(tgt.Timestamp).Abs().Milliseconds(),
		"source_is_newer": src.Timestamp.After(tgt.Timestamp),
	}), nil
}

func (d *Detector) compareChecksum(src, tgt *core.Artifact) (*core.Conflict, error) {
	srcSum, err := d.checksumOf(src)
	if err != nil {
		return nil, err
	}
	tgtSum, err := d.checksumOf(tgt)
	if err != nil {
		return nil, err
	}
	if srcSum == tgtSum {
		return nil, nil
	}
	return newConflict(src, tgt, core.ConflictChecksumMismatch, map[string]any{
		"source_checksum": srcSum,
		"target_checksum": tgtSum,
	}), nil
}

// checksumOf prefers a producer-supplied checksum and falls back to the
// configured checksummer.
func (d *Detector) checksumOf(a *core.Artifact) (string, error) {
	if a.Checksum != "" {
		return a.Checksum, nil
	}
	sum, err := d.checksummer.Checksum(a)
	if err != nil {
		return "", fmt.Errorf("computing checksum for %s: %w", a.Key(), err)
	}
	return sum, nil
}

func (d *Detector) compareSemantic(ctx context.Context, src, tgt *core.Artifact) (*core.Conflict, error) {
	similarity, changed, err := d.scorer.Score(ctx, src, tgt)
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", src.Key(), err)
	}
	if similarity >= d.threshold {
		return nil, nil
	}
	return newConflict(src, tgt, core.ConflictSemanticDifference, map[string]any{
		"similarity":       similarity,
		"threshold":        d.threshold,
		"changed_concepts": changed,
	}), nil
}

func (d *Detector) compareStructural(src, tgt *core.Artifact) (*core.Conflict, error) {
	added, removed, changed := DiffFields(src.Content, tgt.Content)
	if len(added) == 0 && len(removed) == 0 && len(changed) == 0 {
		return nil, nil
	}
	return newConflict(src, tgt, core.ConflictStructuralDifference, map[string]any{
		"added_fields":   added,
		"removed_fields": removed,
		"changed_fields": changed,
	}), nil
}

func newConflict(src, tgt *core.Artifact, conflictType core.ConflictType, details map[string]any) *core.Conflict {
	return &core.Conflict{
		ID:         core.NewID(),
		Source:     src.Clone(),
		Target:     tgt.Clone(),
		Type:       conflictType,
		Details:    details,
		DetectedAt: time.Now().UTC(),
		Status:     core.ConflictDetected,
	}
}

// DiffFields classifies the top-level content fields of two payloads:
// added (present in source, absent in target), removed (present in target,
// absent in source) and changed (present in both with different values).
// Results are sorted for determinism.
func DiffFields(source, target map[string]any) (added, removed, changed []string) {
	for k, sv := range source {
		tv, ok := target[k]
		if !ok {
			added = append(added, k)
			continue
		}
		if !valuesEqual(sv, tv) {
			changed = append(changed, k)
		}
	}
	for k := range target {
		if _, ok := source[k]; !ok {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)
	return added, removed, changed
}

// valuesEqual compares via canonical JSON so that equivalent nested maps
// compare equal regardless of Go value ordering.
func valuesEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

// canonicalContent serializes artifact content deterministically
// (encoding/json sorts map keys).
func canonicalContent(a *core.Artifact) (string, error) {
	data, err := json.Marshal(a.Content)
	if err != nil {
		return "", fmt.Errorf("serializing content of %s: %w", a.Key(), err)
	}
	return string(data), nil
}

package conflict

import (
	"fmt"
	"time"

	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/internal/util"
	"github.com/ekartashov/knowsync/logging"
)

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Resolver produces a single well-defined artifact from a detected conflict
// and a resolution directive. Resolve is pure: it never touches any store;
// callers decide whether and where to persist the result.
type Resolver struct {
	logger logging.Logger
}

// NewResolver constructs a Resolver with optional overrides.
func NewResolver(optFns ...func(o *ResolverOptions)) *Resolver {
	opts := ResolverOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Resolver{logger: opts.Logger}
}

// Resolve applies the resolution directive:
//
//   - source / target: a copy of the corresponding artifact annotated with
//     resolution metadata, no merging
//   - merge: for structural conflicts, target content plus the added and
//     changed fields taken from source; for all other conflict types, a
//     shallow target-then-source merge. Source wins on overlap either way
//     and the result gets a fresh version timestamp
//   - custom: the caller-supplied payload becomes the resolved content
//
// Any other directive fails with core.ErrUnknownResolution.
func (r *Resolver) Resolve(conflict *core.Conflict, resolution core.Resolution, custom *core.CustomResolution) (*core.Artifact, error) {
	if conflict == nil || conflict.Source == nil || conflict.Target == nil {
		return nil, fmt.Errorf("%w: conflict with both artifacts is required", core.ErrInvalidInput)
	}

	var resolved *core.Artifact
	switch resolution {
	case core.ResolutionSource:
		resolved = conflict.Source.Clone()
	case core.ResolutionTarget:
		resolved = conflict.Target.Clone()
	case core.ResolutionMerge:
		resolved = r.merge(conflict)
	case core.ResolutionCustom:
		if custom == nil || custom.Content == nil {
			return nil, fmt.Errorf("%w: custom resolution requires content", core.ErrMissingCustomResolution)
		}
		resolved = conflict.Target.Clone()
		resolved.Content = util.CloneMap(custom.Content)
		resolved.Timestamp = time.Now().UTC()
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownResolution, resolution)
	}

	resolved.Checksum = ""
	resolved.Resolution = &core.ResolutionInfo{
		Strategy:   resolution,
		ConflictID: conflict.ID,
		ResolvedAt: time.Now().UTC(),
	}
	r.logger.Debug("conflict resolved", "conflict_id", conflict.ID, "resolution", string(resolution))
	return resolved, nil
}

// merge combines both sides with source winning on overlap. Structural
// conflicts merge field-by-field using the detector's diff; everything else
// gets a shallow target-then-source merge. The result carries a fresh
// timestamp so it supersedes both inputs.
func (r *Resolver) merge(conflict *core.Conflict) *core.Artifact {
	merged := conflict.Target.Clone()
	content := util.CloneMap(conflict.Target.Content)
	if content == nil {
		content = map[string]any{}
	}

	if conflict.Type == core.ConflictStructuralDifference {
		added, _, changed := DiffFields(conflict.Source.Content, conflict.Target.Content)
		for _, field := range added {
			content[field] = conflict.Source.Content[field]
		}
		for _, field := range changed {
			content[field] = conflict.Source.Content[field]
		}
	} else {
		for k, v := range conflict.Source.Content {
			content[k] = v
		}
	}

	merged.Content = content
	merged.Timestamp = time.Now().UTC()
	return merged
}

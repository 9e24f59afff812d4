package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekartashov/knowsync/conflict"
	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/logging"
	"github.com/ekartashov/knowsync/registry"
	"github.com/ekartashov/knowsync/session"
)

// Options configures a Synchronizer.
type Options struct {
	// Registry resolves agents and records their sync events.
	Registry *registry.Registry
	// Knowledge is the artifact store shared by all agents.
	Knowledge core.KnowledgeStore
	// Sessions manages the per-operation sync sessions.
	Sessions *session.Manager
	// Detector runs the sessionless Compare operation. Defaults to a
	// detector with default collaborators.
	Detector *conflict.Detector
	// Logger defaults to a no-op logger.
	Logger logging.Logger
	// Transfer is the default transfer mode. Defaults to incremental.
	Transfer core.TransferMode
	// Algorithm is the default detection algorithm.
	Algorithm core.DetectionAlgorithm
	// Timeout bounds the work against a single counterpart agent during
	// fan-out. Zero means no bound beyond the caller's context.
	Timeout time.Duration
}

// Synchronizer is the top-level synchronization API. All operations take the
// caller's context; fan-out operations derive a per-counterpart context so
// one slow or failing counterpart cannot stall or abort the others.
type Synchronizer struct {
	registry  *registry.Registry
	knowledge core.KnowledgeStore
	sessions  *session.Manager
	detector  *conflict.Detector
	logger    logging.Logger
	transfer  core.TransferMode
	algorithm core.DetectionAlgorithm
	timeout   time.Duration
}

// New constructs a Synchronizer with optional overrides. Registry, Knowledge
// and Sessions have no useful defaults and must be supplied.
func New(optFns ...func(o *Options)) *Synchronizer {
	opts := Options{
		Detector:  conflict.NewDetector(),
		Logger:    logging.NoOpLogger{},
		Transfer:  core.TransferIncremental,
		Algorithm: core.AlgorithmDefault,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Synchronizer{
		registry:  opts.Registry,
		knowledge: opts.Knowledge,
		sessions:  opts.Sessions,
		detector:  opts.Detector,
		logger:    opts.Logger,
		transfer:  opts.Transfer,
		algorithm: opts.Algorithm,
		timeout:   opts.Timeout,
	}
}

// counterpartCtx derives the per-counterpart context for fan-out work.
func (s *Synchronizer) counterpartCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// otherAgents snapshots the registry at call time and returns every
// registered agent id except the given one. Agents registered after the
// snapshot are not part of the fan-out.
func (s *Synchronizer) otherAgents(ctx context.Context, exceptID string) ([]string, error) {
	summaries, err := s.registry.List(ctx, core.AgentFilter{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(summaries))
	for _, a := range summaries {
		if a.ID != exceptID {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (s *Synchronizer) transferMode(mode core.TransferMode) core.TransferMode {
	if mode == "" {
		return s.transfer
	}
	return mode
}

func (s *Synchronizer) detectionAlgorithm(algorithm core.DetectionAlgorithm) core.DetectionAlgorithm {
	if algorithm == "" {
		return s.algorithm
	}
	return algorithm
}

// transferArtifact moves one artifact to an agent under the transfer mode
// rule. Incremental mode never regresses the receiver: an existing artifact
// with a newer-or-equal timestamp is left untouched.
func (s *Synchronizer) transferArtifact(ctx context.Context, artifact *core.Artifact, toAgentID, fromAgentID, sessionID string, mode core.TransferMode) (bool, error) {
	if mode == core.TransferIncremental {
		existing, err := s.knowledge.Get(ctx, toAgentID, artifact.Type, artifact.ID)
		if err == nil && !artifact.Timestamp.After(existing.Timestamp) {
			return false, nil
		}
	}
	transferred := artifact.Clone()
	transferred.SyncInfo = &core.SyncInfo{
		SyncedFrom: fromAgentID,
		SyncedAt:   time.Now().UTC(),
		SessionID:  sessionID,
	}
	if _, err := s.knowledge.Store(ctx, toAgentID, transferred); err != nil {
		return false, fmt.Errorf("storing %s for agent %s: %w", artifact.Key(), toAgentID, err)
	}
	return true, nil
}

// sessionInput builds the two-participant session input for one push/pull
// leg. The initiator is listed first and is the conflict-source side of any
// detection run within the session.
func sessionInput(initiatorID, counterpartID string, mode core.SyncMode, types []core.ArtifactType, rules []core.Predicate) session.CreateInput {
	return session.CreateInput{
		AgentIDs:      []string{initiatorID, counterpartID},
		Mode:          mode,
		ArtifactTypes: types,
		Rules:         rules,
	}
}

func artifactTypesOf(artifacts []*core.Artifact) []core.ArtifactType {
	seen := make(map[core.ArtifactType]struct{})
	var types []core.ArtifactType
	for _, a := range artifacts {
		if _, ok := seen[a.Type]; !ok {
			seen[a.Type] = struct{}{}
			types = append(types, a.Type)
		}
	}
	return types
}

// fanOut runs fn once per counterpart, one goroutine each, and waits for all
// of them. fn failures are captured in the per-counterpart result, never
// returned to the group, so siblings always run to completion.
func fanOut(ctx context.Context, counterparts []string, fn func(ctx context.Context, i int, agentID string)) {
	g, gctx := errgroup.WithContext(ctx)
	for i, agentID := range counterparts {
		i, agentID := i, agentID
		g.Go(func() error {
			fn(gctx, i, agentID)
			return nil
		})
	}
	_ = g.Wait()
}

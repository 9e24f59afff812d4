// Package knowsync provides a high-level façade over the synchronization
// engine and its services (agent registry, knowledge store, conflict
// detection/resolution, sync sessions). Most applications interact with
// this package by:
//  1. Creating a KnowSync via New() (optionally overriding default in-memory stores)
//  2. Registering two or more agents and storing their knowledge artifacts
//  3. Running Push / Pull / Compare operations between agents
//
// The façade delegates to engine.Synchronizer and session.Manager while
// keeping setup ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply durable
// store implementations (sqlite, redis) and a structured logger.
package knowsync

import (
	"context"
	"fmt"
	"time"

	"github.com/ekartashov/knowsync/activity"
	"github.com/ekartashov/knowsync/config"
	"github.com/ekartashov/knowsync/conflict"
	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/engine"
	"github.com/ekartashov/knowsync/knowledge"
	redisstore "github.com/ekartashov/knowsync/knowledge/redis"
	"github.com/ekartashov/knowsync/logging"
	"github.com/ekartashov/knowsync/registry"
	"github.com/ekartashov/knowsync/session"
	"github.com/ekartashov/knowsync/sqlite"
)

// Options configures the KnowSync instance.
type Options struct {
	// Stores (defaults to in-memory implementations if not provided)
	AgentStore     core.AgentStore
	KnowledgeStore core.KnowledgeStore
	SessionStore   core.SessionStore

	// ActivityLog receives every recorded sync event. Defaults to a no-op
	// sink.
	ActivityLog core.ActivityLog

	// Detection collaborators (defaults mirror the conflict package)
	Scorer              core.SimilarityScorer
	Checksummer         core.Checksummer
	SimilarityThreshold float64

	// Synchronization defaults
	Transfer  core.TransferMode
	Algorithm core.DetectionAlgorithm
	// Timeout bounds the work against one counterpart during fan-out.
	Timeout time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// KnowSync is the high-level façade aggregating the registry, knowledge
// store, session manager and synchronizer.
type KnowSync struct {
	opts      Options
	registry  *registry.Registry
	knowledge core.KnowledgeStore
	sessions  *session.Manager
	engine    *engine.Synchronizer
}

// New creates a KnowSync instance with optional overrides. Any unset store
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *KnowSync {
	opts := Options{
		AgentStore:     registry.NewInMemoryStore(),
		KnowledgeStore: knowledge.NewInMemoryStore(),
		SessionStore:   session.NewInMemoryStore(),
		ActivityLog:    activity.NopLog{},
		Transfer:       core.TransferIncremental,
		Algorithm:      core.AlgorithmDefault,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	reg := registry.New(func(o *registry.Options) {
		o.Store = opts.AgentStore
		o.Activity = opts.ActivityLog
		o.Logger = opts.Logger
	})
	detector := conflict.NewDetector(func(o *conflict.DetectorOptions) {
		if opts.Scorer != nil {
			o.Scorer = opts.Scorer
		}
		if opts.Checksummer != nil {
			o.Checksummer = opts.Checksummer
		}
		if opts.SimilarityThreshold > 0 {
			o.SimilarityThreshold = opts.SimilarityThreshold
		}
		o.Logger = opts.Logger
	})
	sessions := session.NewManager(func(o *session.ManagerOptions) {
		o.Store = opts.SessionStore
		o.Registry = reg
		o.Knowledge = opts.KnowledgeStore
		o.Detector = detector
		o.Logger = opts.Logger
	})
	sync := engine.New(func(o *engine.Options) {
		o.Registry = reg
		o.Knowledge = opts.KnowledgeStore
		o.Sessions = sessions
		o.Detector = detector
		o.Logger = opts.Logger
		o.Transfer = opts.Transfer
		o.Algorithm = opts.Algorithm
		o.Timeout = opts.Timeout
	})

	return &KnowSync{
		opts:      opts,
		registry:  reg,
		knowledge: opts.KnowledgeStore,
		sessions:  sessions,
		engine:    sync,
	}
}

// NewFromConfig builds a KnowSync whose stores, logger and synchronization
// defaults come from the configuration. The returned cleanup closes any
// durable backend and is safe to call exactly once.
func NewFromConfig(cfg *config.Config, optFns ...func(o *Options)) (*KnowSync, func() error, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, false)

	var agents core.AgentStore
	var artifacts core.KnowledgeStore
	cleanup := func() error { return nil }
	switch cfg.Storage.Backend {
	case "memory":
		agents = registry.NewInMemoryStore()
		artifacts = knowledge.NewInMemoryStore()
	case "sqlite":
		db, err := sqlite.Open(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		agents = db.Agents()
		artifacts = db.Knowledge()
		cleanup = db.Close
	case "redis":
		store, err := redisstore.New(redisstore.Config{
			Addr:      cfg.Storage.Redis.Addr,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			PoolSize:  cfg.Storage.Redis.PoolSize,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		agents = registry.NewInMemoryStore()
		artifacts = store
		cleanup = store.Close
	default:
		return nil, nil, fmt.Errorf("%w: unknown storage backend %q", core.ErrInvalidInput, cfg.Storage.Backend)
	}

	ks := New(func(o *Options) {
		o.AgentStore = agents
		o.KnowledgeStore = artifacts
		o.SimilarityThreshold = cfg.Sync.SimilarityThreshold
		o.Transfer = core.TransferMode(cfg.Sync.Transfer)
		o.Algorithm = core.DetectionAlgorithm(cfg.Sync.Algorithm)
		o.Timeout = cfg.Sync.CounterpartTimeout
		o.Logger = logger
		for _, fn := range optFns {
			fn(o)
		}
	})
	return ks, cleanup, nil
}

// RegisterAgent adds an agent to the registry.
func (k *KnowSync) RegisterAgent(ctx context.Context, agent *core.Agent) (*core.Agent, error) {
	return k.registry.Register(ctx, agent)
}

// UpdateAgent applies a partial update to a registered agent. Identity
// fields are protected and rejected.
func (k *KnowSync) UpdateAgent(ctx context.Context, agentID string, patch core.AgentPatch) (*core.Agent, error) {
	return k.registry.Update(ctx, agentID, patch)
}

// RemoveAgent unregisters an agent. Its stored artifacts are untouched.
func (k *KnowSync) RemoveAgent(ctx context.Context, agentID string) error {
	return k.registry.Remove(ctx, agentID)
}

// GetAgent returns a registered agent.
func (k *KnowSync) GetAgent(ctx context.Context, agentID string) (*core.Agent, error) {
	return k.registry.Get(ctx, agentID)
}

// ListAgents returns summaries of registered agents, optionally filtered.
func (k *KnowSync) ListAgents(ctx context.Context, filter core.AgentFilter) ([]core.AgentSummary, error) {
	return k.registry.List(ctx, filter)
}

// StoreArtifact stores or replaces a knowledge artifact for an agent.
func (k *KnowSync) StoreArtifact(ctx context.Context, agentID string, artifact *core.Artifact) (*core.Artifact, error) {
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return k.knowledge.Store(ctx, agentID, artifact)
}

// GetArtifact returns one of an agent's artifacts.
func (k *KnowSync) GetArtifact(ctx context.Context, agentID string, artifactType core.ArtifactType, id string) (*core.Artifact, error) {
	return k.knowledge.Get(ctx, agentID, artifactType, id)
}

// ListArtifacts returns an agent's artifacts matching the filter.
func (k *KnowSync) ListArtifacts(ctx context.Context, agentID string, filter core.ListFilter) ([]*core.Artifact, error) {
	return k.knowledge.List(ctx, agentID, filter)
}

// DeleteArtifact removes one of an agent's artifacts.
func (k *KnowSync) DeleteArtifact(ctx context.Context, agentID string, artifactType core.ArtifactType, id string) error {
	return k.knowledge.Delete(ctx, agentID, artifactType, id)
}

// Push transfers artifacts from one agent to one or all other agents.
func (k *KnowSync) Push(ctx context.Context, in engine.PushInput) (*engine.PushResult, error) {
	return k.engine.Push(ctx, in)
}

// Pull transfers artifacts into an agent from one or all other agents,
// auto-resolving conflicts per the chosen strategy.
func (k *KnowSync) Pull(ctx context.Context, in engine.PullInput) (*engine.PullResult, error) {
	return k.engine.Pull(ctx, in)
}

// Compare inspects two agents' knowledge without modifying either store.
func (k *KnowSync) Compare(ctx context.Context, in engine.CompareInput) (*engine.CompareResult, error) {
	return k.engine.Compare(ctx, in)
}

// Status reports a point-in-time snapshot of synchronization state.
func (k *KnowSync) Status(ctx context.Context, in engine.StatusInput) (*engine.Status, error) {
	return k.engine.Status(ctx, in)
}

// CreateSession builds a sync session between two or more agents.
func (k *KnowSync) CreateSession(ctx context.Context, in session.CreateInput) (*core.SyncSession, error) {
	return k.sessions.Create(ctx, in)
}

// StartSession moves a created session into the running status.
func (k *KnowSync) StartSession(ctx context.Context, sessionID string) (*core.SyncSession, error) {
	return k.sessions.Start(ctx, sessionID)
}

// GetSession returns a session snapshot.
func (k *KnowSync) GetSession(ctx context.Context, sessionID string) (*core.SyncSession, error) {
	return k.sessions.Get(ctx, sessionID)
}

// ListSessions returns every session ordered by creation time.
func (k *KnowSync) ListSessions(ctx context.Context) ([]*core.SyncSession, error) {
	return k.sessions.List(ctx)
}

// DetectConflicts runs conflict detection between two session participants.
func (k *KnowSync) DetectConflicts(ctx context.Context, sessionID, sourceAgentID, targetAgentID string, algorithm core.DetectionAlgorithm) ([]*core.Conflict, error) {
	return k.sessions.DetectConflicts(ctx, sessionID, sourceAgentID, targetAgentID, algorithm)
}

// ResolveConflict applies a resolution to one of a session's conflicts.
func (k *KnowSync) ResolveConflict(ctx context.Context, sessionID, conflictID string, resolution core.Resolution, custom *core.CustomResolution) (*core.Conflict, error) {
	return k.sessions.ResolveConflict(ctx, sessionID, conflictID, resolution, custom)
}

// CompleteSession finishes an active session, recording its results.
func (k *KnowSync) CompleteSession(ctx context.Context, sessionID string, results map[string]any) (*core.SyncSession, error) {
	return k.sessions.Complete(ctx, sessionID, results)
}

// CancelSession aborts a non-terminal session.
func (k *KnowSync) CancelSession(ctx context.Context, sessionID, reason string) (*core.SyncSession, error) {
	return k.sessions.Cancel(ctx, sessionID, reason)
}

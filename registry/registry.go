package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/logging"
)

// Options configures a Registry.
type Options struct {
	// Store is the backing agent store. Defaults to the in-memory store.
	Store core.AgentStore
	// Activity receives every recorded sync event in addition to the
	// agent's own history. Defaults to a no-op sink.
	Activity core.ActivityLog
	// Logger defaults to a no-op logger.
	Logger logging.Logger
	// HistoryLimit caps per-agent sync history. Defaults to
	// core.SyncHistoryLimit.
	HistoryLimit int
}

// Registry tracks registered agents, their capabilities and preferences, and
// a bounded sync-event history per agent. It is safe for concurrent use.
type Registry struct {
	store        core.AgentStore
	activity     core.ActivityLog
	logger       logging.Logger
	historyLimit int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Registry with optional overrides.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Store:        NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
		HistoryLimit: core.SyncHistoryLimit,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		store:        opts.Store,
		activity:     opts.Activity,
		logger:       opts.Logger,
		historyLimit: opts.HistoryLimit,
		locks:        make(map[string]*sync.Mutex),
	}
}

// agentLock returns the mutex serializing compound operations for one agent.
func (r *Registry) agentLock(agentID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[agentID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[agentID] = l
	}
	return l
}

// Register stores a new agent. The id must be unused; RegisteredAt is
// stamped by the registry and history starts empty.
func (r *Registry) Register(ctx context.Context, agent *core.Agent) (*core.Agent, error) {
	if err := agent.Validate(); err != nil {
		return nil, err
	}
	lock := r.agentLock(agent.ID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := r.store.Get(ctx, agent.ID); err == nil {
		return nil, fmt.Errorf("%w: agent %q", core.ErrAlreadyExists, agent.ID)
	}

	now := time.Now().UTC()
	stored := agent.Clone()
	stored.RegisteredAt = now
	stored.UpdatedAt = now
	stored.LastSync = nil
	stored.SyncHistory = nil
	if err := r.store.Save(ctx, stored); err != nil {
		return nil, err
	}
	r.logger.Info("agent registered", "agent_id", stored.ID, "agent_type", stored.Type)
	return stored.Clone(), nil
}

// Update merges a partial patch into an existing agent. Patches touching the
// agent id or registration timestamp are rejected before any mutation.
func (r *Registry) Update(ctx context.Context, agentID string, patch core.AgentPatch) (*core.Agent, error) {
	if patch.ID != nil {
		return nil, fmt.Errorf("%w: agent id is immutable", core.ErrProtectedField)
	}
	if patch.RegisteredAt != nil {
		return nil, fmt.Errorf("%w: registration timestamp is immutable", core.ErrProtectedField)
	}
	lock := r.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := r.store.Get(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", agentID, err)
	}
	if patch.Type != nil {
		agent.Type = *patch.Type
	}
	if patch.DisplayName != nil {
		agent.DisplayName = *patch.DisplayName
	}
	if patch.Capabilities != nil {
		agent.Capabilities = patch.Capabilities
	}
	if patch.Preferences != nil {
		agent.Preferences = *patch.Preferences
	}
	if patch.Metadata != nil {
		agent.Metadata = patch.Metadata
	}
	agent.UpdatedAt = time.Now().UTC()
	if err := r.store.Save(ctx, agent); err != nil {
		return nil, err
	}
	return agent.Clone(), nil
}

// Get returns the agent or core.ErrNotFound.
func (r *Registry) Get(ctx context.Context, agentID string) (*core.Agent, error) {
	agent, err := r.store.Get(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", agentID, err)
	}
	return agent, nil
}

// Has reports whether the agent id is registered.
func (r *Registry) Has(ctx context.Context, agentID string) bool {
	_, err := r.store.Get(ctx, agentID)
	return err == nil
}

// List returns summaries of registered agents matching the filter, ordered
// as the backing store yields them.
func (r *Registry) List(ctx context.Context, filter core.AgentFilter) ([]core.AgentSummary, error) {
	agents, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]core.AgentSummary, 0, len(agents))
	for _, a := range agents {
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		s := core.AgentSummary{
			ID:           a.ID,
			Type:         a.Type,
			DisplayName:  a.DisplayName,
			RegisteredAt: a.RegisteredAt,
			LastSync:     a.LastSync,
		}
		if filter.IncludeCapabilities {
			s.Capabilities = a.Capabilities
		}
		if filter.IncludeHistory {
			s.SyncHistory = a.SyncHistory
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// RecordSyncEvent prepends the event to the agent's history (stamping the
// timestamp if absent), truncates to the configured limit and updates
// LastSync. The event is forwarded to the activity log sink when one is
// configured; a sink failure is logged but never fails the recording.
func (r *Registry) RecordSyncEvent(ctx context.Context, agentID string, event core.SyncEvent) error {
	lock := r.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := r.store.Get(ctx, agentID)
	if err != nil {
		return fmt.Errorf("agent %q: %w", agentID, err)
	}
	if event.ID == "" {
		event.ID = core.NewID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	history := make([]core.SyncEvent, 0, len(agent.SyncHistory)+1)
	history = append(history, event)
	history = append(history, agent.SyncHistory...)
	if len(history) > r.historyLimit {
		history = history[:r.historyLimit]
	}
	agent.SyncHistory = history
	ts := event.Timestamp
	agent.LastSync = &ts
	agent.UpdatedAt = time.Now().UTC()
	if err := r.store.Save(ctx, agent); err != nil {
		return err
	}
	if r.activity != nil {
		if err := r.activity.Record(ctx, agentID, event); err != nil {
			r.logger.Warn("activity sink rejected event", "agent_id", agentID, "event_type", string(event.Type), "error", err)
		}
	}
	return nil
}

// Remove deletes the agent entry. The removal is unconditional: it performs
// no cascading cleanup of the agent's artifacts.
func (r *Registry) Remove(ctx context.Context, agentID string) error {
	lock := r.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()
	if err := r.store.Delete(ctx, agentID); err != nil {
		return fmt.Errorf("agent %q: %w", agentID, err)
	}
	r.logger.Info("agent removed", "agent_id", agentID)
	return nil
}

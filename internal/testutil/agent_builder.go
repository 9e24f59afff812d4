package testutil

import (
	"github.com/ekartashov/knowsync/core"
)

// AgentBuilder provides a fluent helper for constructing agents in tests.
// Example:
//
//	a := NewAgentBuilder("agent-a").Type("planner").Strategy(core.StrategyLatestWins).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type AgentBuilder struct {
	agent core.Agent
}

// NewAgentBuilder creates a builder with default type "worker".
func NewAgentBuilder(id string) *AgentBuilder {
	return &AgentBuilder{agent: core.Agent{ID: id, Type: "worker"}}
}

// Type sets the agent type (chainable).
func (b *AgentBuilder) Type(t string) *AgentBuilder { b.agent.Type = t; return b }

// DisplayName sets the human-readable name (chainable).
func (b *AgentBuilder) DisplayName(n string) *AgentBuilder { b.agent.DisplayName = n; return b }

// Capability sets one capability flag (chainable).
func (b *AgentBuilder) Capability(key string, value any) *AgentBuilder {
	if b.agent.Capabilities == nil {
		b.agent.Capabilities = make(map[string]any)
	}
	b.agent.Capabilities[key] = value
	return b
}

// Strategy sets the agent's preferred conflict resolution strategy (chainable).
func (b *AgentBuilder) Strategy(s core.ConflictStrategy) *AgentBuilder {
	b.agent.Preferences.ConflictResolution = s
	return b
}

// Metadata sets one metadata entry (chainable).
func (b *AgentBuilder) Metadata(key string, value any) *AgentBuilder {
	if b.agent.Metadata == nil {
		b.agent.Metadata = make(map[string]any)
	}
	b.agent.Metadata[key] = value
	return b
}

// Build returns the constructed agent.
func (b *AgentBuilder) Build() *core.Agent { return b.agent.Clone() }

package core

import (
	"fmt"
	"time"

	"github.com/ekartashov/knowsync/internal/util"
)

// SyncHistoryLimit caps the number of sync events retained per agent,
// newest first.
const SyncHistoryLimit = 50

// SyncPreferences captures an agent's default synchronization behavior.
type SyncPreferences struct {
	// SyncFrequency is an opaque scheduling hint (e.g. "manual", "hourly")
	// interpreted by orchestration layers outside this engine.
	SyncFrequency string `json:"sync_frequency,omitempty" yaml:"sync_frequency"`
	// ConflictResolution is the default strategy applied when a pull on
	// behalf of this agent does not specify one.
	ConflictResolution ConflictStrategy `json:"conflict_resolution,omitempty" yaml:"conflict_resolution"`
}

// Agent is an independent holder of a knowledge copy that can push, pull and
// compare artifacts with other agents. ID and RegisteredAt are immutable
// after registration. SyncHistory is ordered newest first and capped at
// SyncHistoryLimit entries; LastSync tracks the most recent recorded event.
type Agent struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	DisplayName  string          `json:"display_name,omitempty"`
	Capabilities map[string]any  `json:"capabilities,omitempty"`
	Preferences  SyncPreferences `json:"preferences"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	RegisteredAt time.Time       `json:"registered_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	LastSync     *time.Time      `json:"last_sync,omitempty"`
	SyncHistory  []SyncEvent     `json:"sync_history,omitempty"`
}

// Clone returns a deep copy of the agent safe for independent mutation.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Capabilities = util.CloneMap(a.Capabilities)
	cp.Metadata = util.CloneMap(a.Metadata)
	if a.LastSync != nil {
		t := *a.LastSync
		cp.LastSync = &t
	}
	cp.SyncHistory = make([]SyncEvent, len(a.SyncHistory))
	copy(cp.SyncHistory, a.SyncHistory)
	return &cp
}

// Validate checks the minimal shape required before registration.
func (a *Agent) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil agent", ErrInvalidInput)
	}
	if a.ID == "" {
		return fmt.Errorf("%w: agent id is required", ErrInvalidInput)
	}
	if a.Type == "" {
		return fmt.Errorf("%w: agent type is required", ErrInvalidInput)
	}
	return nil
}

// AgentPatch describes a partial agent update. Nil fields are left
// untouched; map fields replace the previous value wholesale. ID and
// RegisteredAt are present only so an attempt to change them can be rejected
// as a protected-field error instead of being silently dropped.
type AgentPatch struct {
	ID           *string
	RegisteredAt *time.Time
	Type         *string
	DisplayName  *string
	Capabilities map[string]any
	Preferences  *SyncPreferences
	Metadata     map[string]any
}

// AgentFilter narrows an agent listing.
type AgentFilter struct {
	// Type keeps only agents of the given agent type. Empty means all.
	Type string
	// IncludeCapabilities copies each agent's capability map into the summary.
	IncludeCapabilities bool
	// IncludeHistory copies each agent's sync history into the summary.
	IncludeHistory bool
}

// AgentSummary is the listing projection of an agent. Capabilities and
// SyncHistory are populated only when requested by the filter.
type AgentSummary struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	DisplayName  string         `json:"display_name,omitempty"`
	RegisteredAt time.Time      `json:"registered_at"`
	LastSync     *time.Time     `json:"last_sync,omitempty"`
	Capabilities map[string]any `json:"capabilities,omitempty"`
	SyncHistory  []SyncEvent    `json:"sync_history,omitempty"`
}

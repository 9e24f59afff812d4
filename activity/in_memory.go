package activity

import (
	"context"
	"sync"

	"github.com/ekartashov/knowsync/core"
)

// Entry is one recorded activity: the event together with the agent whose
// history it was written to.
type Entry struct {
	AgentID string
	Event   core.SyncEvent
}

// Query filters recorded entries. Zero values match everything.
type Query struct {
	AgentID   string
	SessionID string
	Type      core.SyncEventType
	// Limit caps the number of returned entries, newest first. Zero means
	// no cap.
	Limit int
}

// InMemoryLog is a process-local ActivityLog that keeps every recorded
// event for later inspection. It is append-only; entries are never evicted,
// so it is meant for tests and short-lived processes rather than long-running
// deployments.
//
// Concurrency: protected by RWMutex.
type InMemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemoryLog creates an empty in-memory activity log.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{}
}

// Record appends the event. It never fails.
func (l *InMemoryLog) Record(_ context.Context, agentID string, event core.SyncEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{AgentID: agentID, Event: event})
	return nil
}

// Find returns the recorded entries matching the query, newest first.
func (l *InMemoryLog) Find(q Query) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	results := make([]Entry, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		entry := l.entries[i]
		if q.AgentID != "" && entry.AgentID != q.AgentID {
			continue
		}
		if q.SessionID != "" && entry.Event.SessionID != q.SessionID {
			continue
		}
		if q.Type != "" && entry.Event.Type != q.Type {
			continue
		}
		results = append(results, entry)
		if q.Limit > 0 && len(results) == q.Limit {
			break
		}
	}
	return results
}

// Len returns the number of recorded entries.
func (l *InMemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

var _ core.ActivityLog = (*InMemoryLog)(nil)

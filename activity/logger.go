package activity

import (
	"context"

	"github.com/ekartashov/knowsync/core"
	"github.com/ekartashov/knowsync/logging"
)

// LoggerLog forwards every recorded event to a structured logger.
type LoggerLog struct {
	logger logging.Logger
}

// NewLoggerLog creates an ActivityLog backed by the given logger.
func NewLoggerLog(logger logging.Logger) *LoggerLog {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggerLog{logger: logger}
}

// Record emits one structured log line per event. It never fails.
func (l *LoggerLog) Record(_ context.Context, agentID string, event core.SyncEvent) error {
	args := []any{
		"agent_id", agentID,
		"event_id", event.ID,
		"event_type", string(event.Type),
		"timestamp", event.Timestamp,
	}
	if event.SessionID != "" {
		args = append(args, "session_id", event.SessionID)
	}
	if event.PeerAgentID != "" {
		args = append(args, "peer_agent_id", event.PeerAgentID)
	}
	for k, v := range event.Details {
		args = append(args, k, v)
	}
	l.logger.Info("sync activity", args...)
	return nil
}

// NopLog discards every recorded event.
type NopLog struct{}

// Record does nothing.
func (NopLog) Record(context.Context, string, core.SyncEvent) error { return nil }

var (
	_ core.ActivityLog = (*LoggerLog)(nil)
	_ core.ActivityLog = NopLog{}
)

// Package logging provides a minimal logging interface and adapters for KnowSync.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the synchronizer and stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - KnowSyncLogger with sync-domain helpers and contextual fields
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	sync := engine.New(func(o *engine.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging

// Package registry implements the agent registry: registration, partial
// updates with protected-field enforcement, filtered listings, removal and
// per-agent sync-event history capped at core.SyncHistoryLimit entries.
//
// The registry is business logic over an injected core.AgentStore; the
// default backend is the in-memory store in this package, durable backends
// live in their own packages (e.g. sqlite). Compound read-modify-write
// operations are serialized per agent id so concurrent sessions recording
// events against the same agent cannot interleave partial writes.
package registry

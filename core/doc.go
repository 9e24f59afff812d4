// Package core provides the foundational domain types, interfaces and error
// taxonomy used by KnowSync. It defines the core abstractions for:
//
//   - Agents (independent holders of a knowledge copy, with sync history)
//   - Artifacts (typed, identified, timestamped units of knowledge)
//   - Conflicts (detected disagreements over a shared artifact identity)
//   - SyncSessions (bounded, stateful units of synchronization work)
//   - SyncEvents (immutable per-agent activity records)
//   - Pluggable stores for agents, artifacts, sessions and activity logs
//
// The package intentionally keeps implementation concerns (persistence,
// detection algorithms, synchronization orchestration) out of scope, exposing
// small interfaces to enable custom backends and extensions. All exported
// identifiers include concise documentation to aid discoverability and
// external consumption.
package core

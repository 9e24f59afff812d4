// Package engine implements the knowledge synchronizer, the top-level API
// of the engine: push, pull and compare operations built on the session
// manager, with incremental versus full transfer semantics and
// strategy-driven automatic conflict resolution.
//
// When the counterpart agent is unspecified, push and pull scatter/gather
// over a snapshot of the registry taken at call start, one goroutine per
// counterpart, joined before the aggregate result returns. Failures are
// isolated per counterpart: a failing target never cancels its siblings and
// is reported in that target's slot of the aggregate result.
package engine

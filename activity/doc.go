// Package activity provides sinks for the synchronization event stream.
//
// Every event that lands in an agent's sync history is forwarded to the
// configured core.ActivityLog. The in-memory sink keeps a queryable record
// for audit and tests; the logger sink turns events into structured log
// lines; NopLog discards everything.
package activity

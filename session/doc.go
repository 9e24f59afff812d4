// Package session implements the sync session manager and houses the
// in-memory core.SessionStore. The Session struct and the store interface
// live in the core package to centralize domain contracts; keeping only the
// manager and implementations here prevents higher level packages from
// depending on concrete storage.
//
// The manager owns every session mutation: creation, the state machine
// transitions (start, complete, cancel), in-session conflict detection and
// single-shot conflict resolution. Each mutation is applied through the
// store's atomic Update so concurrent sessions cannot interleave partial
// writes, and every transition emits a sync event to all participants.
package session

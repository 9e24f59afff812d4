package core

import "errors"

// Sentinel errors forming the engine-wide failure taxonomy. Callers match
// them with errors.Is; components wrap them with fmt.Errorf("...: %w", ...)
// to add identifying context without losing the category.
var (
	// ErrInvalidInput reports malformed call arguments. It is always raised
	// before any state mutation takes place.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound reports an unknown agent, session, conflict or artifact.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists reports a duplicate identifier on a create operation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrProtectedField reports an attempt to mutate an immutable agent field
	// (the agent id or its registration timestamp).
	ErrProtectedField = errors.New("protected field")

	// ErrAlreadyResolved reports a second resolution attempt against a
	// conflict whose resolution fields have already been set.
	ErrAlreadyResolved = errors.New("conflict already resolved")

	// ErrUnknownResolution reports an unrecognized resolution directive.
	ErrUnknownResolution = errors.New("unknown resolution")

	// ErrMissingCustomResolution reports a custom resolution request without
	// a resolution payload.
	ErrMissingCustomResolution = errors.New("missing custom resolution")

	// ErrConflictsPending reports that a transfer was declined because
	// unresolved conflicts exist and force was not requested.
	ErrConflictsPending = errors.New("conflicts pending")

	// ErrInvalidTransition reports a session status change that the session
	// state machine does not permit.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrNotParticipant reports an agent referenced by a session operation
	// that is not among the session's participants.
	ErrNotParticipant = errors.New("agent is not a session participant")
)

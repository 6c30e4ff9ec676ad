package recorder

import "errors"

var (
	// ErrAuthRequired is returned when an operation needing an
	// authenticated actor was called without one.
	ErrAuthRequired = errors.New("recorder: authentication required")

	// ErrNoActiveSession is returned by operations that need an active
	// session for the actor.
	ErrNoActiveSession = errors.New("recorder: no active session")

	// ErrSessionActive is returned when starting or loading a session
	// would silently discard an unsaved active session. The caller must
	// end the current session first.
	ErrSessionActive = errors.New("recorder: an unsaved session is already active")

	// ErrNotOwner is returned when the actor does not own the session.
	ErrNotOwner = errors.New("recorder: session does not belong to actor")

	// ErrLoadIncomplete is returned when any child-collection fetch of a
	// load fails; no partial session is ever armed.
	ErrLoadIncomplete = errors.New("recorder: session load incomplete")

	// ErrArchived is returned when a mutation targets an archived session.
	ErrArchived = errors.New("recorder: session is archived")
)

package session

import "errors"

// Sentinel errors for session operations.
var (
	// ErrTooManySessions indicates the configured session limit is reached.
	ErrTooManySessions = errors.New("session: too many live sessions")

	// ErrNoFactory indicates the coordinator was built without an agent factory.
	ErrNoFactory = errors.New("session: no agent factory configured")
)

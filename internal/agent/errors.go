package agent

import "errors"

// Sentinel errors for agent operations.
var (
	// ErrUnknownBackend indicates a backend name outside Backends().
	ErrUnknownBackend = errors.New("agent: unknown backend")

	// ErrNotConfigured indicates no command template exists for a backend.
	ErrNotConfigured = errors.New("agent: backend not configured")

	// ErrUnsupported indicates the backend has no template for the operation.
	ErrUnsupported = errors.New("agent: operation not supported by backend")

	// ErrClosed indicates the agent was closed.
	ErrClosed = errors.New("agent: closed")

	// ErrAborted indicates the running prompt was cancelled by Abort.
	ErrAborted = errors.New("agent: prompt aborted")
)

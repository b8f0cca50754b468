package channel

import "errors"

// Sentinel errors for channel operations.
var (
	// ErrEmptyMessage indicates there was nothing to send.
	ErrEmptyMessage = errors.New("channel: empty message")

	// ErrNotConnected indicates the transport has no live platform session.
	ErrNotConnected = errors.New("channel: not connected")
)

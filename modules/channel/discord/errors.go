package discord

import "errors"

// ErrNotConnected is returned by Send before Start or after Stop.
var ErrNotConnected = errors.New("discord: not connected")

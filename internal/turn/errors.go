package turn

import "errors"

// ErrStopped indicates the runner no longer accepts turns.
var ErrStopped = errors.New("turn: runner stopped")

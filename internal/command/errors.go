package command

import "errors"

// Sentinel errors for command registration and parsing.
var (
	ErrEmptyName        = errors.New("command: empty name")
	ErrDuplicateCommand = errors.New("command: duplicate command")
	ErrUnknownCommand   = errors.New("command: unknown command")
	ErrNotACommand      = errors.New("command: text is not a command")
)

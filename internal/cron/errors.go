package cron

import (
	"errors"
	"fmt"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/google/uuid"
)

var (
	// ErrInvalidSchedule is wrapped by RegistrationError when the cron
	// expression cannot be parsed.
	ErrInvalidSchedule = errors.New("cron: invalid schedule")

	// ErrDuplicateJob is returned when AddJob receives an id already in use.
	ErrDuplicateJob = errors.New("cron: duplicate job id")

	// ErrMissingChannel is returned when a job has no target channel.
	ErrMissingChannel = errors.New("cron: channel id is required")

	// ErrEmptyPrompt is returned when a job has nothing to send.
	ErrEmptyPrompt = errors.New("cron: prompt is required")

	// ErrStoreNotEmpty is returned by LoadFromDisk once jobs exist in memory.
	ErrStoreNotEmpty = errors.New("cron: load requires an empty store")

	// ErrCorruptSnapshot is wrapped when the persisted file cannot be decoded.
	ErrCorruptSnapshot = errors.New("cron: corrupt job snapshot")

	// ErrDuplicateTask is returned by AddTask for a name already registered.
	ErrDuplicateTask = errors.New("cron: duplicate task name")

	// ErrContextUnavailable is the root of every fire-time context failure.
	ErrContextUnavailable = errors.New("cron: application context unavailable")

	// ErrNotInitialized means a job fired before Init.
	ErrNotInitialized = fmt.Errorf("%w: init has not been called", ErrContextUnavailable)

	// ErrRuntimeReleased means the application runtime was garbage collected.
	ErrRuntimeReleased = fmt.Errorf("%w: runtime released", ErrContextUnavailable)
)

// PersistenceError reports a failure reading or writing the job snapshot.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("cron: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RegistrationError reports that the engine rejected a job.
type RegistrationError struct {
	Expr string
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("cron: registering %q: %v", e.Expr, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// RecoveryError reports a persisted job that could not be re-registered.
type RecoveryError struct {
	JobID uuid.UUID
	Err   error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("cron: recovering job %s: %v", e.JobID, e.Err)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

// SessionError reports that no session could be obtained for a fire.
type SessionError struct {
	ChannelID uint64
	Backend   agent.Backend
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("cron: session for channel %d (%s): %v", e.ChannelID, e.Backend, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

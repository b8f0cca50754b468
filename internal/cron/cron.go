// Package cron schedules recurring prompts for chat channels. Job definitions
// are kept in memory, flushed to a JSON snapshot on every mutation, and
// re-registered with the timer engine at startup. A fired job reaches the
// application through a weak pointer so the scheduler never keeps the
// application alive.
package cron

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is the durable definition of a recurring prompt.
//
// SchedulerID is the volatile engine handle. It is non-nil exactly while the
// job is registered with the engine and is never trusted across a restart.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	SchedulerID *uuid.UUID `json:"internal_scheduler_id"`
	ChannelID   uint64     `json:"channel_id"`
	CronExpr    string     `json:"cron_expr"`
	Prompt      string     `json:"prompt"`
	CreatorID   uint64     `json:"creator_id"`
	Description string     `json:"description"`
}

// Registered reports whether the job currently holds an engine handle.
func (j Job) Registered() bool {
	return j.SchedulerID != nil
}

// Engine is a recurring timer. Register returns a handle that is only
// meaningful to the engine instance that issued it.
type Engine interface {
	Register(spec string, fire func()) (uuid.UUID, error)

	// Deregister removes a registration. Unknown handles are ignored.
	Deregister(handle uuid.UUID)

	Start()
	Stop(ctx context.Context) error
}

// NextRunner is implemented by engines that can report upcoming fire times.
type NextRunner interface {
	Next(handle uuid.UUID) (time.Time, bool)
}

// Task is an internal maintenance routine run on the job engine. Tasks are
// not persisted and are registered fresh on every start.
type Task interface {
	// Name returns a unique identifier used for logging and dedup.
	Name() string

	// Schedule returns a cron expression, seconds field optional.
	Schedule() string

	// Run executes one tick. Implementations should honor ctx cancellation.
	Run(ctx context.Context) error
}

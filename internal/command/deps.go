package command

import (
	"context"
	"time"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/cron"
	"github.com/google/uuid"
)

// Sessions is the part of the session coordinator commands use.
type Sessions interface {
	Get(channelID uint64) (agent.Agent, bool)
	GetOrCreate(ctx context.Context, channelID uint64, backend agent.Backend) (agent.Agent, bool, error)
	Remove(ctx context.Context, channelID uint64) (bool, error)
}

// Channels is the per-channel settings store.
type Channels interface {
	Backend(ctx context.Context, channelID uint64) (agent.Backend, error)
	SetBackend(ctx context.Context, channelID uint64, b agent.Backend) error
	AssistantName(ctx context.Context, channelID uint64) (string, error)
	SetAssistantName(ctx context.Context, channelID uint64, name string) error
	MentionOnly(ctx context.Context, channelID uint64) (bool, error)
	SetMentionOnly(ctx context.Context, channelID uint64, on bool) error
	ClearSessionID(ctx context.Context, channelID uint64) error
}

// Jobs is the cron manager surface used by the cron command.
type Jobs interface {
	AddJob(job cron.Job) (uuid.UUID, error)
	RemoveJob(id uuid.UUID) error
	JobsForChannel(channelID uint64) []cron.Job
	NextRun(id uuid.UUID) (time.Time, bool)
}

// Package turn runs agent turns: it sends a prompt to a channel's agent and
// delivers the reply through the channel transport, one turn per channel at
// a time and without blocking the caller.
package turn

import (
	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/channel"
)

// Source tells where a turn came from.
type Source string

// Turn sources.
const (
	SourceCron    Source = "cron"
	SourceMessage Source = "message"
	SourceCommand Source = "command"
)

// Request describes one turn.
type Request struct {
	Agent     agent.Agent
	Transport channel.Transport
	ChannelID uint64

	// Prompt is the text to send. Empty means the turn only greets a new
	// session and is skipped for an existing one.
	Prompt string

	// IsNew marks the first turn of a freshly created session.
	IsNew bool

	Source Source
}

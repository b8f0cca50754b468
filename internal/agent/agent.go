// Package agent defines the conversational agent capability used by cron
// jobs and chat commands, plus an implementation that drives external agent
// CLIs.
package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Backend names an agent implementation a channel can be bound to.
type Backend string

// Supported backends.
const (
	BackendKilo     Backend = "kilo"
	BackendCopilot  Backend = "copilot"
	BackendPi       Backend = "pi"
	BackendOpencode Backend = "opencode"
)

// DefaultBackend is used for channels without an explicit choice.
const DefaultBackend = BackendKilo

// Backends lists every supported backend in display order.
func Backends() []Backend {
	return []Backend{BackendKilo, BackendCopilot, BackendPi, BackendOpencode}
}

// ParseBackend converts a user-supplied name to a Backend.
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Backends(), b) {
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
	return b, nil
}

// Agent is a stateful conversation bound to one channel.
// Implementations must be safe for concurrent use; Abort in particular is
// called while Prompt is running.
type Agent interface {
	// Backend reports which implementation serves this agent.
	Backend() Backend

	// Prompt sends text and returns the agent's reply.
	Prompt(ctx context.Context, text string) (string, error)

	// Abort cancels the prompt in progress, if any.
	Abort(ctx context.Context) error

	// Clear forgets the conversation history.
	Clear(ctx context.Context) error

	// LoadSkill makes a named skill available to later prompts.
	LoadSkill(ctx context.Context, name string) error

	// Close releases the agent. Further calls return ErrClosed.
	Close() error
}

// Factory creates agents.
type Factory interface {
	New(ctx context.Context, channelID uint64, backend Backend) (Agent, error)
}

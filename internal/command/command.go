// Package command implements the chat commands users send to the bot:
// abort, clear, config, skill and cron. Commands are transport agnostic;
// the Discord module maps slash commands to Request values and posts the
// Response text back.
package command

import (
	"context"
	"strconv"
)

// Option is one named argument of a command.
type Option struct {
	Name     string
	DescKey  string // i18n key
	Required bool

	// Rest marks the last option as taking all remaining words when a
	// command is parsed from text.
	Rest bool

	// Choices restricts the accepted values.
	Choices []string
}

// Definition describes a command or subcommand for registration with a chat
// platform.
type Definition struct {
	Name    string
	DescKey string
	Options []Option
	Subs    []Definition
}

// Request is one invocation.
type Request struct {
	ChannelID uint64
	UserID    uint64
	Name      string
	Sub       string
	Options   map[string]string
}

// Opt returns the named option or "".
func (r Request) Opt(name string) string {
	return r.Options[name]
}

func (r Request) channelKey() string {
	return strconv.FormatUint(r.ChannelID, 10)
}

// Response is the text shown to the invoking user.
type Response struct {
	Text string

	// Ephemeral asks the transport to show the reply only to the invoker.
	Ephemeral bool
}

// Command is a single chat command.
type Command interface {
	Definition() Definition
	Run(ctx context.Context, req Request) Response
}

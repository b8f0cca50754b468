package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/i18n"
	"github.com/flemzord/cronclaw/internal/security"
)

// Deps are the services the built-in commands act on.
type Deps struct {
	Sessions Sessions
	Channels Channels
	Jobs     Jobs

	Text    *i18n.Active
	Audit   *security.AuditLogger
	Limiter *security.RateLimiter
	Logger  *slog.Logger

	// SessionDirs maps a backend to the directory where its CLI keeps
	// session transcripts. clear deletes the channel's transcript there.
	SessionDirs map[agent.Backend]string

	// Location formats next-run times. Defaults to time.Local.
	Location *time.Location
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Text == nil {
		d.Text = i18n.NewActive(i18n.MustLoad(i18n.DefaultLanguage))
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	return d
}

// Builtins returns the standard command set.
func Builtins(d Deps) []Command {
	d = d.withDefaults()
	return []Command{
		&abortCommand{d},
		&clearCommand{d},
		&configCommand{d},
		&skillCommand{d},
		&cronCommand{d},
	}
}

func reply(text string) Response { return Response{Text: text, Ephemeral: true} }

// backendFor returns the channel's backend, falling back to the default on
// lookup errors.
func (d Deps) backendFor(ctx context.Context, channelID uint64) agent.Backend {
	b, err := d.Channels.Backend(ctx, channelID)
	if err != nil {
		d.Logger.Warn("command: backend lookup failed", "channel", channelID, "error", err)
		if b == "" {
			b = agent.DefaultBackend
		}
	}
	return b
}

type abortCommand struct{ Deps }

func (c *abortCommand) Definition() Definition {
	return Definition{Name: "abort", DescKey: "cmd_abort_desc"}
}

func (c *abortCommand) Run(ctx context.Context, req Request) Response {
	sess, ok := c.Sessions.Get(req.ChannelID)
	if !ok {
		return reply(c.Text.Get("abort_none"))
	}
	if err := sess.Abort(ctx); err != nil {
		return reply(c.Text.Format("error_generic", err))
	}
	return reply(c.Text.Get("abort_success"))
}

type clearCommand struct{ Deps }

func (c *clearCommand) Definition() Definition {
	return Definition{Name: "clear", DescKey: "cmd_clear_desc"}
}

// Run forgets the backend history, drops the live session, deletes the
// transcript file and the stored session id.
func (c *clearCommand) Run(ctx context.Context, req Request) Response {
	backend := c.backendFor(ctx, req.ChannelID)
	if sess, ok := c.Sessions.Get(req.ChannelID); ok {
		backend = sess.Backend()
		_ = sess.Abort(ctx)
		if err := sess.Clear(ctx); err != nil && !errors.Is(err, agent.ErrClosed) {
			c.Logger.Warn("command: clearing backend session failed", "channel", req.ChannelID, "error", err)
		}
	}
	if _, err := c.Sessions.Remove(ctx, req.ChannelID); err != nil {
		c.Logger.Warn("command: closing session failed", "channel", req.ChannelID, "error", err)
	}

	if dir := c.SessionDirs[backend]; dir != "" {
		path := filepath.Join(dir, agent.SessionName(req.ChannelID)+".jsonl")
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.Logger.Warn("command: removing session file failed", "path", path, "error", err)
		}
	}

	if err := c.Channels.ClearSessionID(ctx, req.ChannelID); err != nil {
		c.Logger.Warn("command: clearing session id failed", "channel", req.ChannelID, "error", err)
	}

	c.Audit.Log(security.AuditEvent{
		Type:      security.EventSessionClear,
		Source:    security.SourceChat,
		ChannelID: req.channelKey(),
		UserID:    fmt.Sprint(req.UserID),
	})
	return reply(c.Text.Get("clear_success"))
}

type skillCommand struct{ Deps }

func (c *skillCommand) Definition() Definition {
	return Definition{
		Name:    "skill",
		DescKey: "cmd_skill_desc",
		Options: []Option{{Name: "name", DescKey: "cmd_skill_opt_name", Required: true, Rest: true}},
	}
}

func (c *skillCommand) Run(ctx context.Context, req Request) Response {
	name := strings.TrimSpace(req.Opt("name"))
	if name == "" {
		return reply(c.Text.Get("skill_missing"))
	}
	sess, _, err := c.Sessions.GetOrCreate(ctx, req.ChannelID, c.backendFor(ctx, req.ChannelID))
	if err != nil {
		return reply(c.Text.Format("skill_failed", err))
	}
	if err := sess.LoadSkill(ctx, name); err != nil {
		return reply(c.Text.Format("skill_failed", err))
	}
	return reply(c.Text.Format("skill_loading", name))
}

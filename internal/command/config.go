package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/security"
)

type configCommand struct{ Deps }

func (c *configCommand) Definition() Definition {
	backends := make([]string, 0, 4)
	for _, b := range agent.Backends() {
		backends = append(backends, string(b))
	}
	return Definition{
		Name:    "config",
		DescKey: "cmd_config_desc",
		Subs: []Definition{
			{Name: "show", DescKey: "cmd_config_show_desc"},
			{Name: "backend", DescKey: "cmd_config_backend_desc", Options: []Option{
				{Name: "value", DescKey: "cmd_opt_value", Required: true, Choices: backends},
			}},
			{Name: "assistant", DescKey: "cmd_config_assistant_desc", Options: []Option{
				{Name: "value", DescKey: "cmd_opt_value", Required: true, Rest: true},
			}},
			{Name: "mention", DescKey: "cmd_config_mention_desc", Options: []Option{
				{Name: "value", DescKey: "cmd_opt_value", Required: true, Choices: []string{"on", "off"}},
			}},
		},
	}
}

func (c *configCommand) Run(ctx context.Context, req Request) Response {
	switch req.Sub {
	case "", "show":
		return c.show(ctx, req)
	case "backend":
		return c.setBackend(ctx, req)
	case "assistant":
		return c.setAssistant(ctx, req)
	case "mention":
		return c.setMention(ctx, req)
	default:
		return reply(c.Text.Format("config_unknown", req.Sub))
	}
}

func (c *configCommand) show(ctx context.Context, req Request) Response {
	backend := c.backendFor(ctx, req.ChannelID)
	name, _ := c.Channels.AssistantName(ctx, req.ChannelID)
	mention, _ := c.Channels.MentionOnly(ctx, req.ChannelID)
	state := c.Text.Get("config_mention_off")
	if mention {
		state = c.Text.Get("config_mention_on")
	}
	return reply(c.Text.Format("config_current", backend, state, name))
}

// setBackend swaps the live session for one on the new backend and only
// persists the choice once that session starts.
func (c *configCommand) setBackend(ctx context.Context, req Request) Response {
	selected, err := agent.ParseBackend(req.Opt("value"))
	if err != nil {
		names := make([]string, 0, 4)
		for _, b := range agent.Backends() {
			names = append(names, string(b))
		}
		return reply(c.Text.Format("backend_unknown", req.Opt("value"), strings.Join(names, ", ")))
	}
	if current := c.backendFor(ctx, req.ChannelID); current == selected {
		return reply(c.Text.Format("agent_already", selected))
	}

	if _, err := c.Sessions.Remove(ctx, req.ChannelID); err != nil {
		c.Logger.Warn("command: closing session failed", "channel", req.ChannelID, "error", err)
	}
	if _, _, err := c.Sessions.GetOrCreate(ctx, req.ChannelID, selected); err != nil {
		return reply(c.Text.Format("backend_error", selected, err))
	}
	if err := c.Channels.SetBackend(ctx, req.ChannelID, selected); err != nil {
		return reply(c.Text.Format("error_generic", err))
	}

	c.auditChange(req, "backend="+string(selected))
	return reply(c.Text.Format("config_backend_set", selected))
}

func (c *configCommand) setAssistant(ctx context.Context, req Request) Response {
	value := strings.TrimSpace(req.Opt("value"))
	stored := value
	if strings.EqualFold(value, "default") {
		stored = ""
	}
	if err := c.Channels.SetAssistantName(ctx, req.ChannelID, stored); err != nil {
		return reply(c.Text.Format("error_generic", err))
	}
	name, _ := c.Channels.AssistantName(ctx, req.ChannelID)
	c.auditChange(req, "assistant="+name)
	return reply(c.Text.Format("config_assistant_set", name))
}

func (c *configCommand) setMention(ctx context.Context, req Request) Response {
	var on bool
	switch strings.ToLower(strings.TrimSpace(req.Opt("value"))) {
	case "on", "true", "yes":
		on = true
	case "off", "false", "no":
	default:
		return reply(c.Text.Format("config_unknown", req.Opt("value")))
	}
	if err := c.Channels.SetMentionOnly(ctx, req.ChannelID, on); err != nil {
		return reply(c.Text.Format("error_generic", err))
	}
	c.auditChange(req, fmt.Sprintf("mention_only=%t", on))
	if on {
		return reply(c.Text.Get("mention_on"))
	}
	return reply(c.Text.Get("mention_off"))
}

func (c *configCommand) auditChange(req Request, detail string) {
	c.Audit.Log(security.AuditEvent{
		Type:      security.EventConfigChange,
		Source:    security.SourceChat,
		ChannelID: req.channelKey(),
		UserID:    fmt.Sprint(req.UserID),
		Detail:    detail,
	})
}

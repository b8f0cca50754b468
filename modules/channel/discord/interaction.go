package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/flemzord/cronclaw/internal/command"
)

func (d *Discord) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	d.handleInteraction(d.ctx, i.Interaction, deferAfter)
}

// handleInteraction runs a slash command. A command finishing within wait
// is answered directly; a slower one gets a deferred ephemeral reply that is
// edited when it completes.
func (d *Discord) handleInteraction(ctx context.Context, i *discordgo.Interaction, wait time.Duration) {
	c := d.conn()
	if c == nil {
		return
	}

	req, userID, err := requestFromInteraction(i)
	if err != nil {
		d.logger.Warn("discord: malformed interaction", "error", err)
		return
	}
	if !d.isAllowed(userID) {
		d.respond(ctx, c, i, command.Response{Text: d.text().Format("error_generic", "not allowed"), Ephemeral: true})
		return
	}

	done := make(chan command.Response, 1)
	go func() { done <- d.router.Handle(ctx, req) }()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case resp := <-done:
		d.respond(ctx, c, i, resp)
		return
	case <-timer.C:
	}

	err = c.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		d.logger.Warn("discord: deferring interaction failed", "command", req.Name, "error", err)
		return
	}

	resp := <-done
	content := truncate(resp.Text, d.config.MaxMessageLength)
	if _, err := c.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx)); err != nil {
		d.logger.Warn("discord: editing interaction reply failed", "command", req.Name, "error", err)
	}
}

func (d *Discord) respond(ctx context.Context, c api, i *discordgo.Interaction, resp command.Response) {
	data := &discordgo.InteractionResponseData{Content: truncate(resp.Text, d.config.MaxMessageLength)}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := c.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil {
		d.logger.Warn("discord: interaction reply failed", "error", err)
	}
}

// requestFromInteraction maps slash command data to a command.Request and
// returns the invoking user's id.
func requestFromInteraction(i *discordgo.Interaction) (command.Request, string, error) {
	channelID, err := strconv.ParseUint(i.ChannelID, 10, 64)
	if err != nil {
		return command.Request{}, "", fmt.Errorf("discord: channel id %q: %w", i.ChannelID, err)
	}

	var user *discordgo.User
	switch {
	case i.Member != nil && i.Member.User != nil:
		user = i.Member.User
	case i.User != nil:
		user = i.User
	default:
		return command.Request{}, "", errors.New("discord: interaction has no user")
	}
	userID, _ := strconv.ParseUint(user.ID, 10, 64)

	data := i.ApplicationCommandData()
	req := command.Request{
		ChannelID: channelID,
		UserID:    userID,
		Name:      data.Name,
		Options:   map[string]string{},
	}
	opts := data.Options
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		req.Sub = opts[0].Name
		opts = opts[0].Options
	}
	for _, o := range opts {
		req.Options[o.Name] = fmt.Sprint(o.Value)
	}
	return req, user.ID, nil
}

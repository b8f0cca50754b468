package discord

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/channel"
	"github.com/flemzord/cronclaw/internal/command"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/flemzord/cronclaw/internal/turn"
)

// incoming is a chat message reduced to what the module acts on.
type incoming struct {
	ChannelID uint64
	UserID    uint64
	GuildID   string // empty for direct messages
	Content   string
	Mentioned bool
}

func (d *Discord) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	in, ok := d.convertMessage(m.Message)
	if !ok {
		return
	}
	d.handleMessage(d.ctx, in)
}

// convertMessage filters out bots and disallowed users and parses ids.
func (d *Discord) convertMessage(m *discordgo.Message) (incoming, bool) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return incoming{}, false
	}
	if !d.isAllowed(m.Author.ID) {
		d.logger.Debug("discord: message from disallowed user", "user", m.Author.ID)
		return incoming{}, false
	}
	channelID, err := strconv.ParseUint(m.ChannelID, 10, 64)
	if err != nil {
		d.logger.Warn("discord: invalid channel id", "channel", m.ChannelID)
		return incoming{}, false
	}
	userID, _ := strconv.ParseUint(m.Author.ID, 10, 64)

	botID := d.botUserID()
	mentioned := false
	for _, u := range m.Mentions {
		if u != nil && u.ID == botID {
			mentioned = true
			break
		}
	}
	return incoming{
		ChannelID: channelID,
		UserID:    userID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Mentioned: mentioned,
	}, true
}

// handleMessage runs a text command or starts an agent turn. In guild
// channels with mention-only on, messages that do not mention the bot are
// ignored. Direct messages are always answered.
func (d *Discord) handleMessage(ctx context.Context, in incoming) {
	text := strings.TrimSpace(stripMention(in.Content, d.botUserID()))
	if text == "" {
		return
	}
	if prefix := d.commandPrefix(); strings.HasPrefix(text, prefix) {
		d.handleTextCommand(ctx, in, prefix, text)
		return
	}

	if in.GuildID != "" && !in.Mentioned {
		mentionOnly, err := d.settings.MentionOnly(ctx, in.ChannelID)
		if err != nil {
			d.logger.Warn("discord: mention setting lookup failed", "channel", in.ChannelID, "error", err)
			mentionOnly = true
		}
		if mentionOnly {
			return
		}
	}

	key := strconv.FormatUint(in.ChannelID, 10)
	if d.limiter != nil {
		if err := d.limiter.Allow(security.KindMessage, key); err != nil {
			d.audit.Log(security.AuditEvent{
				Type:      security.EventRateLimit,
				Source:    security.SourceChat,
				ChannelID: key,
				UserID:    strconv.FormatUint(in.UserID, 10),
				Detail:    "message",
			})
			d.reply(ctx, in.ChannelID, d.text().Get("rate_limited"))
			return
		}
	}

	backend, err := d.settings.Backend(ctx, in.ChannelID)
	if err != nil {
		d.logger.Warn("discord: backend lookup failed", "channel", in.ChannelID, "error", err)
		if backend == "" {
			backend = agent.DefaultBackend
		}
	}
	sess, isNew, err := d.sessions.GetOrCreate(ctx, in.ChannelID, backend)
	if err != nil {
		d.logger.Error("discord: session unavailable", "channel", in.ChannelID, "backend", backend, "error", err)
		d.reply(ctx, in.ChannelID, d.text().Format("backend_error", backend, err))
		return
	}

	d.typing(in.ChannelID)
	d.turns.StartTurn(turn.Request{
		Agent:     sess,
		Transport: d,
		ChannelID: in.ChannelID,
		Prompt:    text,
		IsNew:     isNew,
		Source:    turn.SourceMessage,
	})
}

func (d *Discord) handleTextCommand(ctx context.Context, in incoming, prefix, text string) {
	req, err := d.router.Parse(prefix, text)
	switch {
	case errors.Is(err, command.ErrNotACommand):
		return
	case errors.Is(err, command.ErrUnknownCommand):
		name, _, _ := strings.Cut(strings.TrimPrefix(text, prefix), " ")
		d.reply(ctx, in.ChannelID, d.text().Format("unknown_command", name))
		return
	case err != nil:
		d.reply(ctx, in.ChannelID, d.text().Format("error_generic", err))
		return
	}

	req.ChannelID = in.ChannelID
	req.UserID = in.UserID
	resp := d.router.Handle(ctx, req)
	d.reply(ctx, in.ChannelID, resp.Text)
}

// reply sends text, split to the message limit. Failures are logged.
func (d *Discord) reply(ctx context.Context, channelID uint64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	err := channel.SendChunked(ctx, d, channelID, text, channel.ChunkConfig{
		MaxLength:      d.config.MaxMessageLength,
		PreserveBlocks: true,
	})
	if err != nil {
		d.logger.Warn("discord: reply failed", "channel", channelID, "error", err)
	}
}

func (d *Discord) typing(channelID uint64) {
	c := d.conn()
	if c == nil {
		return
	}
	if err := c.ChannelTyping(strconv.FormatUint(channelID, 10)); err != nil {
		d.logger.Debug("discord: typing indicator failed", "channel", channelID, "error", err)
	}
}

// stripMention removes the bot's user and nickname mentions from content.
func stripMention(content, botID string) string {
	if botID == "" {
		return content
	}
	content = strings.ReplaceAll(content, "<@"+botID+">", "")
	content = strings.ReplaceAll(content, "<@!"+botID+">", "")
	return content
}

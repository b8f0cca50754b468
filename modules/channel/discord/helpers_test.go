package discord

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/command"
	"github.com/flemzord/cronclaw/internal/cron/crontest"
	"github.com/flemzord/cronclaw/internal/security"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	ChannelID string
	Content   string
}

// fakeAPI records every call made to Discord.
type fakeAPI struct {
	SendErr error

	mu        sync.Mutex
	sent      []sentMessage
	typing    []string
	responses []*discordgo.InteractionResponse
	edits     []string
	overwrite []*discordgo.ApplicationCommand
	appID     string
	guildID   string
}

func (f *fakeAPI) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Content: content})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakeAPI) ChannelTyping(channelID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, channelID)
	return nil
}

func (f *fakeAPI) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeAPI) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, *edit.Content)
	return &discordgo.Message{}, nil
}

func (f *fakeAPI) ApplicationCommandBulkOverwrite(appID, guildID string, cmds []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appID, f.guildID, f.overwrite = appID, guildID, cmds
	return cmds, nil
}

func (f *fakeAPI) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeAPI) Responses() []*discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.InteractionResponse(nil), f.responses...)
}

func (f *fakeAPI) Edits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.edits...)
}

// fakeSettings serves fixed channel settings.
type fakeSettings struct {
	backend     agent.Backend
	mentionOnly bool
	err         error
}

func (s fakeSettings) Backend(context.Context, uint64) (agent.Backend, error) {
	return s.backend, s.err
}

func (s fakeSettings) MentionOnly(context.Context, uint64) (bool, error) {
	return s.mentionOnly, s.err
}

// echoCommand replies with its options, optionally after blocking on gate.
type echoCommand struct {
	gate chan struct{}
}

func (c *echoCommand) Definition() command.Definition {
	return command.Definition{
		Name:    "echo",
		DescKey: "cmd_echo_desc",
		Options: []command.Option{{Name: "text", Required: true, Rest: true}},
	}
}

func (c *echoCommand) Run(_ context.Context, req command.Request) command.Response {
	if c.gate != nil {
		<-c.gate
	}
	return command.Response{Text: "echo: " + req.Opt("text"), Ephemeral: true}
}

type fixture struct {
	d        *Discord
	api      *fakeAPI
	sessions *crontest.Sessions
	turns    *crontest.Turns
	echo     *echoCommand
}

func newFixture(t *testing.T, settings fakeSettings, limiter *security.RateLimiter) *fixture {
	t.Helper()

	echo := &echoCommand{}
	router := command.NewRouter(command.RouterConfig{Logger: discardLogger()})
	if err := router.Register(echo); err != nil {
		t.Fatalf("Register: %v", err)
	}

	f := &fixture{
		api:      &fakeAPI{},
		sessions: &crontest.Sessions{},
		turns:    &crontest.Turns{},
		echo:     echo,
	}
	f.d = &Discord{
		logger:   discardLogger(),
		router:   router,
		sessions: f.sessions,
		settings: settings,
		turns:    f.turns,
		limiter:  limiter,
		client:   f.api,
		botID:    "999",
		ctx:      context.Background(),
	}
	f.d.config.defaults()
	return f
}

package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/channel"
	"github.com/flemzord/cronclaw/internal/command"
	"github.com/flemzord/cronclaw/internal/core"
	"github.com/flemzord/cronclaw/internal/i18n"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/flemzord/cronclaw/internal/turn"
	"gopkg.in/yaml.v3"
)

// deferAfter is how long a slash command may run before the reply is
// deferred. Discord drops interactions not answered within three seconds.
const deferAfter = 2 * time.Second

func init() {
	core.RegisterModule(&Discord{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Discord)(nil)
	_ core.Configurable = (*Discord)(nil)
	_ core.Provisioner  = (*Discord)(nil)
	_ core.Validator    = (*Discord)(nil)
	_ core.Starter      = (*Discord)(nil)
	_ core.Stopper      = (*Discord)(nil)
	_ core.Reloader     = (*Discord)(nil)
	_ channel.Transport = (*Discord)(nil)
	_ channel.Limiter   = (*Discord)(nil)
	_ api               = (*discordgo.Session)(nil)
)

// Sessions returns the agent session bound to a channel.
type Sessions interface {
	GetOrCreate(ctx context.Context, channelID uint64, backend agent.Backend) (agent.Agent, bool, error)
}

// Settings is the per-channel configuration the module reads.
type Settings interface {
	Backend(ctx context.Context, channelID uint64) (agent.Backend, error)
	MentionOnly(ctx context.Context, channelID uint64) (bool, error)
}

// Turns starts agent turns.
type Turns interface {
	StartTurn(req turn.Request)
}

// api is the part of *discordgo.Session used after connecting.
type api interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Discord implements the Discord channel module.
type Discord struct {
	config Config
	appCtx *core.AppContext
	logger *slog.Logger

	router   *command.Router
	sessions Sessions
	settings Settings
	turns    Turns
	limiter  *security.RateLimiter
	audit    *security.AuditLogger

	session *discordgo.Session
	ctx     context.Context
	cancel  context.CancelFunc

	mu       sync.RWMutex
	client   api
	botID    string
	syncOnce sync.Once
}

// ModuleInfo implements core.Module.
func (d *Discord) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.discord",
		New: func() core.Module { return &Discord{} },
	}
}

// Configure implements core.Configurable.
func (d *Discord) Configure(node *yaml.Node) error {
	if err := node.Decode(&d.config); err != nil {
		return err
	}
	d.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (d *Discord) Provision(ctx *core.AppContext) error {
	d.appCtx = ctx
	d.logger = ctx.Logger
	d.config.defaults()
	return nil
}

// Validate implements core.Validator.
func (d *Discord) Validate() error {
	return d.config.validate()
}

// Reload implements core.Reloader. The command prefix and allow list apply
// at once; a new token or guild needs a restart.
func (d *Discord) Reload(ctx *core.AppContext) error {
	node, ok := ctx.ModuleConfig("channel.discord")
	if !ok {
		return nil
	}
	var next Config
	if err := node.Decode(&next); err != nil {
		return err
	}
	next.defaults()
	if err := next.validate(); err != nil {
		return err
	}

	d.mu.Lock()
	restart := next.Token != d.config.Token || next.GuildID != d.config.GuildID
	d.config.CommandPrefix = next.CommandPrefix
	d.config.AllowUsers = next.AllowUsers
	d.mu.Unlock()

	if restart {
		d.logger.Warn("discord: token or guild_id changed, restart to apply")
	}
	d.logger.Info("discord: configuration reloaded", "prefix", next.CommandPrefix, "allow_users", len(next.AllowUsers))
	return nil
}

func (d *Discord) commandPrefix() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config.CommandPrefix
}

func (d *Discord) isAllowed(userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config.allowed(userID)
}

// Start implements core.Starter. It resolves the command router, session
// coordinator, channel settings and turn runner from the service registry,
// then opens the gateway connection.
func (d *Discord) Start() error {
	if err := d.resolveServices(); err != nil {
		return err
	}

	sess, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return fmt.Errorf("discord: create session: %w", err)
	}
	sess.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	d.ctx, d.cancel = context.WithCancel(context.Background())
	sess.AddHandler(d.onReady)
	sess.AddHandler(d.onMessageCreate)
	sess.AddHandler(d.onInteractionCreate)

	if err := sess.Open(); err != nil {
		d.cancel()
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	d.session = sess
	d.mu.Lock()
	d.client = sess
	d.mu.Unlock()
	d.logger.Info("discord: connected")
	return nil
}

// Stop implements core.Stopper.
func (d *Discord) Stop(_ context.Context) error {
	d.mu.Lock()
	d.client = nil
	d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	d.logger.Info("discord: disconnected")
	return err
}

func (d *Discord) resolveServices() error {
	var missing []error
	require := func(name string, ok bool) {
		if !ok {
			missing = append(missing, fmt.Errorf("discord: service %q unavailable", name))
		}
	}

	var ok bool
	d.router, ok = core.Lookup[*command.Router](d.appCtx, "command.router")
	require("command.router", ok)
	d.sessions, ok = core.Lookup[Sessions](d.appCtx, "session.coordinator")
	require("session.coordinator", ok)
	d.settings, ok = core.Lookup[Settings](d.appCtx, "chanconfig.store")
	require("chanconfig.store", ok)
	d.turns, ok = core.Lookup[Turns](d.appCtx, "turn.runner")
	require("turn.runner", ok)

	// Optional.
	d.limiter, _ = core.Lookup[*security.RateLimiter](d.appCtx, "security.ratelimiter")
	d.audit, _ = core.Lookup[*security.AuditLogger](d.appCtx, "security.audit")

	return errors.Join(missing...)
}

// Send implements channel.Transport.
func (d *Discord) Send(ctx context.Context, channelID uint64, text string) error {
	c := d.conn()
	if c == nil {
		return ErrNotConnected
	}
	if _, err := c.ChannelMessageSend(strconv.FormatUint(channelID, 10), text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send to %d: %w", channelID, err)
	}
	return nil
}

// MaxMessageLength implements channel.Limiter.
func (d *Discord) MaxMessageLength() int {
	return d.config.MaxMessageLength
}

func (d *Discord) conn() api {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.client
}

func (d *Discord) botUserID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.botID
}

func (d *Discord) text() *i18n.Active {
	return d.router.Text()
}

// onReady records the bot identity and registers slash commands once per
// process; reconnects deliver Ready again.
func (d *Discord) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	d.mu.Lock()
	d.botID = r.User.ID
	d.mu.Unlock()
	d.logger.Info("discord: ready", "user", r.User.Username, "guilds", len(r.Guilds))

	if !*d.config.SyncCommands {
		return
	}
	d.syncOnce.Do(func() {
		go func() {
			if err := d.syncCommands(d.ctx, r.User.ID); err != nil {
				d.logger.Error("discord: registering slash commands failed", "error", err)
			}
		}()
	})
}

// syncCommands replaces the application's slash commands with the router's
// definitions.
func (d *Discord) syncCommands(ctx context.Context, appID string) error {
	c := d.conn()
	if c == nil {
		return ErrNotConnected
	}
	cmds := applicationCommands(d.router.Definitions(), d.text().Catalog(), localizedCatalogs())
	created, err := c.ApplicationCommandBulkOverwrite(appID, d.config.GuildID, cmds, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: bulk overwrite commands: %w", err)
	}
	d.logger.Info("discord: slash commands registered", "count", len(created), "guild", d.config.GuildID)
	return nil
}

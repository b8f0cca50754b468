package command

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/flemzord/cronclaw/internal/i18n"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/kballard/go-shellquote"
)

// RouterConfig configures a Router. Audit and Limiter are optional.
type RouterConfig struct {
	Text    *i18n.Active
	Audit   *security.AuditLogger
	Limiter *security.RateLimiter
	Logger  *slog.Logger
}

// Router dispatches requests to registered commands.
type Router struct {
	mu       sync.RWMutex
	commands map[string]Command

	text    *i18n.Active
	audit   *security.AuditLogger
	limiter *security.RateLimiter
	logger  *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(cfg RouterConfig) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	text := cfg.Text
	if text == nil {
		text = i18n.NewActive(i18n.MustLoad(i18n.DefaultLanguage))
	}
	return &Router{
		commands: make(map[string]Command),
		text:     text,
		audit:    cfg.Audit,
		limiter:  cfg.Limiter,
		logger:   logger,
	}
}

// Register adds commands. Names must be unique.
func (r *Router) Register(cmds ...Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range cmds {
		name := strings.TrimSpace(c.Definition().Name)
		if name == "" {
			return ErrEmptyName
		}
		if _, exists := r.commands[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
		}
		r.commands[name] = c
	}
	return nil
}

// Definitions returns every command definition sorted by name.
func (r *Router) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.commands))
	for _, c := range r.commands {
		defs = append(defs, c.Definition())
	}
	slices.SortFunc(defs, func(a, b Definition) int { return cmp.Compare(a.Name, b.Name) })
	return defs
}

// Text returns the active message catalog.
func (r *Router) Text() *i18n.Active { return r.text }

// Handle runs req: rate limit, audit, dispatch.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	r.mu.RLock()
	cmd, ok := r.commands[req.Name]
	r.mu.RUnlock()
	if !ok {
		return Response{Text: r.text.Format("unknown_command", req.Name), Ephemeral: true}
	}

	if r.limiter != nil {
		if err := r.limiter.Allow(security.KindCommand, req.channelKey()); err != nil {
			r.audit.Log(security.AuditEvent{
				Type:      security.EventRateLimit,
				Source:    security.SourceChat,
				ChannelID: req.channelKey(),
				UserID:    fmt.Sprint(req.UserID),
				Detail:    "command " + req.Name,
			})
			return Response{Text: r.text.Get("rate_limited"), Ephemeral: true}
		}
	}

	r.audit.Log(security.AuditEvent{
		Type:      security.EventCommand,
		Source:    security.SourceChat,
		ChannelID: req.channelKey(),
		UserID:    fmt.Sprint(req.UserID),
		Detail:    strings.TrimSpace(req.Name + " " + req.Sub),
	})
	r.logger.Debug("command: dispatch", "command", req.Name, "sub", req.Sub, "channel", req.ChannelID)

	return cmd.Run(ctx, req)
}

// Parse turns text such as `cron add "0 9 * * *" standup notes` into a
// Request using the registered definitions. Text must start with prefix.
func (r *Router) Parse(prefix, text string) (Request, error) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Request{}, ErrNotACommand
	}
	words, err := shellquote.Split(strings.TrimPrefix(text, prefix))
	if err != nil {
		return Request{}, fmt.Errorf("command: %w", err)
	}
	if len(words) == 0 {
		return Request{}, ErrNotACommand
	}

	r.mu.RLock()
	cmd, ok := r.commands[words[0]]
	r.mu.RUnlock()
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrUnknownCommand, words[0])
	}

	def := cmd.Definition()
	req := Request{Name: def.Name, Options: map[string]string{}}
	words = words[1:]

	if len(def.Subs) > 0 && len(words) > 0 {
		for _, sub := range def.Subs {
			if sub.Name == words[0] {
				req.Sub = sub.Name
				def = sub
				words = words[1:]
				break
			}
		}
	}

	bindOptions(req.Options, def.Options, words)
	return req, nil
}

// bindOptions assigns positional words to options in order. A Rest option
// swallows the remaining words.
func bindOptions(dst map[string]string, opts []Option, words []string) {
	for i, opt := range opts {
		if i >= len(words) {
			return
		}
		if opt.Rest {
			dst[opt.Name] = strings.Join(words[i:], " ")
			return
		}
		dst[opt.Name] = words[i]
	}
}

// IsUsage reports whether err should be shown as a usage hint.
func IsUsage(err error) bool {
	return errors.Is(err, ErrUnknownCommand) || errors.Is(err, ErrNotACommand)
}

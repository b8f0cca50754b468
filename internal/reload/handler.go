package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flemzord/cronclaw/internal/config"
	"github.com/flemzord/cronclaw/internal/core"
	"github.com/flemzord/cronclaw/internal/i18n"
	"github.com/flemzord/cronclaw/internal/security"
)

// ModuleReloader is the part of core.App the handler drives.
type ModuleReloader interface {
	ReloadModules(ctx *core.AppContext) error
}

// HandlerConfig configures a Handler. Only App, AppContext and ConfigPath
// are required; every other target is skipped when nil.
type HandlerConfig struct {
	App ModuleReloader

	// AppContext is the base context; module configs from the new file
	// are layered onto it so services stay reachable.
	AppContext *core.AppContext
	ConfigPath string

	Level    *slog.LevelVar
	Text     *i18n.Active
	Redactor *security.Redactor
	Audit    *security.AuditLogger
	Logger   *slog.Logger
}

// Handler reloads application configuration: log level, language, redacted
// literals and every module implementing core.Reloader. Reloads are
// serialized.
type Handler struct {
	cfg    HandlerConfig
	logger *slog.Logger
	mu     sync.Mutex
}

// NewHandler creates a reload handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cfg: cfg, logger: logger}
}

// Reload loads the config file, validates it and applies it.
func (h *Handler) Reload(ctx context.Context) error {
	cfg, err := config.Load(h.cfg.ConfigPath)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		h.audit(err)
		return fmt.Errorf("reload: %w", err)
	}
	return h.Apply(ctx, cfg)
}

// Apply applies an already validated config.
func (h *Handler) Apply(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reload: context cancelled before reload: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cfg.Level != nil {
		level, err := config.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		h.cfg.Level.Set(level)
	}
	if h.cfg.Text != nil {
		if err := h.cfg.Text.Set(cfg.Language); err != nil {
			return fmt.Errorf("reload: language: %w", err)
		}
	}
	if h.cfg.Redactor != nil {
		h.cfg.Redactor.SetLiterals(cfg.Secrets()...)
	}

	appCtx := h.cfg.AppContext.WithModuleConfigs(cfg.Modules)
	err := h.cfg.App.ReloadModules(appCtx)
	h.audit(err)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	h.logger.Info("reload: configuration applied",
		"log_level", cfg.LogLevel,
		"language", cfg.Language,
	)
	return nil
}

func (h *Handler) audit(err error) {
	event := security.AuditEvent{
		Type:   security.EventConfigReload,
		Detail: "ok",
		Metadata: map[string]string{
			"path": h.cfg.ConfigPath,
		},
	}
	if err != nil {
		event.Detail = err.Error()
	}
	h.cfg.Audit.Log(event)
}

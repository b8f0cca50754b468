package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/core"
	"github.com/flemzord/cronclaw/internal/cron"
	"golang.org/x/text/language"
)

// Validate checks the structural validity of a Config and reports every
// problem at once. Module-specific settings are validated by the modules
// themselves during provisioning.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.LogLevel != "" {
		if _, err := ParseLevel(cfg.LogLevel); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Language != "" {
		// Well-formed tags without a catalog fall back to English.
		if _, err := language.Parse(cfg.Language); err != nil {
			errs = append(errs, fmt.Errorf("config: language %q: %w", cfg.Language, err))
		}
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}
	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateCron(cfg.Cron)...)
	errs = append(errs, validateSessions(cfg.Sessions)...)
	errs = append(errs, validateAgents(cfg.Agents)...)
	if cfg.Turns.Timeout < 0 {
		errs = append(errs, errors.New("config: turns.timeout must not be negative"))
	}
	if err := cfg.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: tracing: %w", err))
	}

	return errors.Join(errs...)
}

func validateCron(c CronConfig) []error {
	var errs []error
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("config: cron.timezone: %w", err))
		}
	}
	if c.FireTimeout < 0 {
		errs = append(errs, errors.New("config: cron.fire_timeout must not be negative"))
	}
	return errs
}

func validateSessions(s SessionsConfig) []error {
	var errs []error
	if s.IdleTimeout < 0 {
		errs = append(errs, errors.New("config: sessions.idle_timeout must not be negative"))
	}
	if s.MaxSessions < 0 {
		errs = append(errs, errors.New("config: sessions.max_sessions must not be negative"))
	}
	if s.CleanupSchedule != "" {
		if err := cron.ValidateSchedule(s.CleanupSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: sessions.cleanup_schedule: %w", err))
		}
	}
	return errs
}

func validateAgents(a AgentsConfig) []error {
	var errs []error
	if a.Default != "" {
		if _, err := agent.ParseBackend(a.Default); err != nil {
			errs = append(errs, fmt.Errorf("config: agents.default: %w", err))
		}
	}
	for backend := range a.SessionDirs {
		if _, err := agent.ParseBackend(string(backend)); err != nil {
			errs = append(errs, fmt.Errorf("config: agents.session_dirs: %w", err))
		}
	}
	if err := a.Config.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: agents: %w", err))
	}
	return errs
}

// ParseLevel converts a log_level value to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("config: log_level %q: %w", s, err)
	}
	return level, nil
}

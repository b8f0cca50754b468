// Package config handles YAML configuration loading, environment variable
// expansion, defaults and structural validation for cronclaw.
package config

import (
	"time"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/flemzord/cronclaw/internal/tracing"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// LogLevel is one of debug, info, warn, error. Hot-reloadable.
	LogLevel string `yaml:"log_level,omitempty"`

	// Language selects the chat message catalog. Hot-reloadable.
	Language string `yaml:"language,omitempty"`

	// DataDir holds the channel database and the audit log.
	DataDir string `yaml:"data_dir,omitempty"`

	Cron     CronConfig     `yaml:"cron,omitempty"`
	Sessions SessionsConfig `yaml:"sessions,omitempty"`
	Agents   AgentsConfig   `yaml:"agents,omitempty"`
	Turns    TurnsConfig    `yaml:"turns,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Tracing  tracing.Config `yaml:"tracing,omitempty"`
	Security SecurityConfig `yaml:"security,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.discord").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// CronConfig configures the job scheduler.
type CronConfig struct {
	// Dir holds cron_jobs.json. Defaults to the cronclaw config directory.
	Dir string `yaml:"dir,omitempty"`

	// Timezone is an IANA name used to evaluate schedules. Empty means local.
	Timezone string `yaml:"timezone,omitempty"`

	// FireTimeout bounds backend lookup and session creation per fire.
	FireTimeout time.Duration `yaml:"fire_timeout,omitempty"`
}

// SessionsConfig configures agent session lifetime.
type SessionsConfig struct {
	// IdleTimeout closes sessions unused for this long. Zero disables pruning.
	IdleTimeout time.Duration `yaml:"idle_timeout,omitempty"`

	// CleanupSchedule is the cron expression of the idle sweep.
	CleanupSchedule string `yaml:"cleanup_schedule,omitempty"`

	// MaxSessions caps live sessions. Zero means unlimited.
	MaxSessions int `yaml:"max_sessions,omitempty"`
}

// AgentsConfig selects and drives agent backends.
type AgentsConfig struct {
	// Default is the backend of channels without an explicit choice.
	Default string `yaml:"default,omitempty"`

	// AssistantName is the default name substituted into the preamble.
	AssistantName string `yaml:"assistant_name,omitempty"`

	// SessionDirs maps a backend to the directory holding its transcripts.
	SessionDirs map[agent.Backend]string `yaml:"session_dirs,omitempty"`

	agent.Config `yaml:",inline"`
}

// TurnsConfig configures conversational turns.
type TurnsConfig struct {
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Preamble string        `yaml:"preamble,omitempty"`
}

// ChannelsConfig configures the channel settings database.
type ChannelsConfig struct {
	// Database is the SQLite file path. Relative paths resolve under DataDir.
	Database string `yaml:"database,omitempty"`
}

// SecurityConfig holds rate limits, audit and redaction settings.
type SecurityConfig struct {
	RateLimits security.RateLimitConfig `yaml:"rate_limits,omitempty"`

	// AuditLog is the JSONL audit file. Relative paths resolve under
	// DataDir. "-" disables the file.
	AuditLog string `yaml:"audit_log,omitempty"`

	// Redact lists literal secrets scrubbed from logs and audit events.
	Redact []string `yaml:"redact,omitempty"`
}

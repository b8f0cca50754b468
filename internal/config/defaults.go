package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/i18n"
)

// AppName names the config directory and the default file.
const AppName = "cronclaw"

// Default values applied by ApplyDefaults.
const (
	DefaultLogLevel        = "info"
	DefaultIdleTimeout     = 24 * time.Hour
	DefaultCleanupSchedule = "*/5 * * * *"
	DefaultTurnTimeout     = 15 * time.Minute
	DefaultAssistantName   = "Claw"
	DefaultDatabase        = "channels.db"
	DefaultAuditLog        = "audit.jsonl"
)

// ApplyDefaults fills unset fields. Directory defaults come from
// DefaultDir.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Language == "" {
		c.Language = i18n.DefaultLanguage
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(DefaultDir(), "data")
	}
	if c.Cron.Dir == "" {
		c.Cron.Dir = DefaultDir()
	}
	if c.Sessions.IdleTimeout == 0 {
		c.Sessions.IdleTimeout = DefaultIdleTimeout
	}
	if c.Sessions.CleanupSchedule == "" {
		c.Sessions.CleanupSchedule = DefaultCleanupSchedule
	}
	if c.Agents.Default == "" {
		c.Agents.Default = string(agent.DefaultBackend)
	}
	if c.Agents.AssistantName == "" {
		c.Agents.AssistantName = DefaultAssistantName
	}
	if c.Turns.Timeout == 0 {
		c.Turns.Timeout = DefaultTurnTimeout
	}
	if c.Channels.Database == "" {
		c.Channels.Database = DefaultDatabase
	}
	if c.Security.AuditLog == "" {
		c.Security.AuditLog = DefaultAuditLog
	}
}

// DatabasePath returns the channel database path resolved against DataDir.
func (c *Config) DatabasePath() string {
	return c.underDataDir(c.Channels.Database)
}

// AuditLogPath returns the audit file path, or "" when auditing to a file
// is disabled.
func (c *Config) AuditLogPath() string {
	if c.Security.AuditLog == "-" {
		return ""
	}
	return c.underDataDir(c.Security.AuditLog)
}

func (c *Config) underDataDir(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// DefaultDir is the cronclaw configuration directory:
// $XDG_CONFIG_HOME/cronclaw, falling back to ~/.config/cronclaw.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", AppName)
}

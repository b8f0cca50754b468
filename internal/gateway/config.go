package gateway

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Defaults of the gateway.http entry.
const (
	defaultBind            = "127.0.0.1:8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config is the gateway.http module entry.
type Config struct {
	// Bind is the listen address. The job and session API is only mounted
	// when Auth is set, so a public bind without auth exposes /health and
	// /metrics alone.
	Bind string     `yaml:"bind"`
	Auth AuthConfig `yaml:"auth"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MCP mounts the cron tools at /mcp. Defaults to true.
	MCP *bool `yaml:"mcp"`
}

func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = defaultBind
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.MCP == nil {
		on := true
		c.MCP = &on
	}
}

func (c Config) mcpEnabled() bool { return c.MCP == nil || *c.MCP }

func (c Config) validate() error {
	var errs []error
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		errs = append(errs, fmt.Errorf("gateway: invalid bind address %q", c.Bind))
	}
	if err := c.Auth.validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AuthConfig holds the admin credentials. A bearer token and a basic pair
// may both be set; either one is accepted.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// enabled reports whether any credential is usable.
func (a AuthConfig) enabled() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// validate rejects a basic pair with one half missing; it would otherwise
// be silently ignored.
func (a AuthConfig) validate() error {
	if (a.BasicUser == "") != (a.BasicPass == "") {
		return errors.New("gateway: auth.basic_user and auth.basic_pass must be set together")
	}
	return nil
}

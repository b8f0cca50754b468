package discord

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// maxDiscordMessage is the platform's hard limit for message content.
const maxDiscordMessage = 2000

// Config holds the Discord channel configuration.
type Config struct {
	Token            string   `yaml:"token"`
	GuildID          string   `yaml:"guild_id"`
	CommandPrefix    string   `yaml:"command_prefix"`
	MaxMessageLength int      `yaml:"max_message_length"`
	AllowUsers       []string `yaml:"allow_users"`

	// SyncCommands registers slash commands on start. Commands are global
	// unless GuildID is set.
	SyncCommands *bool `yaml:"sync_commands"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.CommandPrefix == "" {
		c.CommandPrefix = "!"
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = maxDiscordMessage
	}
	if c.SyncCommands == nil {
		on := true
		c.SyncCommands = &on
	}
	c.Token = strings.TrimPrefix(strings.TrimSpace(c.Token), "Bot ")
}

// validate checks field constraints. It runs after defaults.
func (c *Config) validate() error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, errors.New("discord: token is required"))
	}
	if c.MaxMessageLength < 1 || c.MaxMessageLength > maxDiscordMessage {
		errs = append(errs, fmt.Errorf("discord: max_message_length must be 1-%d, got %d", maxDiscordMessage, c.MaxMessageLength))
	}
	if strings.ContainsAny(c.CommandPrefix, " \t\n") {
		errs = append(errs, fmt.Errorf("discord: command_prefix must not contain whitespace, got %q", c.CommandPrefix))
	}
	if c.GuildID != "" {
		if _, err := strconv.ParseUint(c.GuildID, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("discord: guild_id must be a snowflake, got %q", c.GuildID))
		}
	}
	for _, u := range c.AllowUsers {
		if _, err := strconv.ParseUint(u, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("discord: allow_users entry must be a user id, got %q", u))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) allowed(userID string) bool {
	if len(c.AllowUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowUsers, userID)
}

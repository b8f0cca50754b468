package agent

import (
	"fmt"
	"os"
	"time"

	"github.com/kballard/go-shellquote"
)

// DefaultTimeout bounds a single prompt when the config leaves it unset.
const DefaultTimeout = 10 * time.Minute

// CommandTemplate describes how to drive one backend CLI. Each field is a
// shell-style command line; placeholders {prompt}, {session}, {channel} and
// {skill} are substituted per argument after splitting, so values never need
// quoting.
type CommandTemplate struct {
	Prompt string `yaml:"prompt"`
	Clear  string `yaml:"clear"`
	Skill  string `yaml:"skill"`
}

// Config configures a CommandFactory.
type Config struct {
	// Commands maps backend name to its command templates.
	Commands map[Backend]CommandTemplate `yaml:"commands"`

	// Workdir is the working directory of spawned processes.
	Workdir string `yaml:"workdir"`

	// Timeout bounds each prompt.
	Timeout time.Duration `yaml:"timeout"`

	// Env is appended to the process environment.
	Env []string `yaml:"env"`

	// Environ returns the base environment of spawned processes.
	// Defaults to os.Environ.
	Environ func() []string `yaml:"-"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Environ == nil {
		c.Environ = os.Environ
	}
	return c
}

// Validate checks every template splits cleanly and names a known backend.
func (c Config) Validate() error {
	for backend, tmpl := range c.Commands {
		if _, err := ParseBackend(string(backend)); err != nil {
			return err
		}
		if tmpl.Prompt == "" {
			return fmt.Errorf("agent: %s: prompt command is required", backend)
		}
		for name, line := range map[string]string{"prompt": tmpl.Prompt, "clear": tmpl.Clear, "skill": tmpl.Skill} {
			if line == "" {
				continue
			}
			if _, err := shellquote.Split(line); err != nil {
				return fmt.Errorf("agent: %s: %s command: %w", backend, name, err)
			}
		}
	}
	return nil
}

package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
)

// maxStderr caps how much process stderr is attached to an error.
const maxStderr = 512

// CommandFactory builds agents that run one CLI process per operation.
type CommandFactory struct {
	config Config
}

// Compile-time interface check.
var _ Factory = (*CommandFactory)(nil)

// NewCommandFactory validates cfg and returns a factory.
func NewCommandFactory(cfg Config) (*CommandFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CommandFactory{config: cfg.withDefaults()}, nil
}

// New implements Factory. The session id starts as a stable per-channel name
// so a CLI with its own session storage resumes across restarts.
func (f *CommandFactory) New(_ context.Context, channelID uint64, backend Backend) (Agent, error) {
	tmpl, ok := f.config.Commands[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, backend)
	}
	return &commandAgent{
		backend:   backend,
		tmpl:      tmpl,
		config:    f.config,
		channelID: channelID,
		session:   SessionName(channelID),
	}, nil
}

// SessionName is the default session identifier for a channel.
func SessionName(channelID uint64) string {
	return "discord-rs-" + strconv.FormatUint(channelID, 10)
}

type commandAgent struct {
	backend   Backend
	tmpl      CommandTemplate
	config    Config
	channelID uint64

	mu      sync.Mutex
	session string
	skills  []string
	cancel  context.CancelFunc
	aborted bool
	closed  bool
}

func (a *commandAgent) Backend() Backend { return a.backend }

func (a *commandAgent) Prompt(ctx context.Context, text string) (string, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return "", ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	a.cancel = cancel
	a.aborted = false
	vars := a.varsLocked()
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.cancel = nil
		a.mu.Unlock()
		cancel()
	}()

	vars["{prompt}"] = withSkills(text, vars["{skills}"])
	out, err := a.run(ctx, a.tmpl.Prompt, vars)
	if err != nil {
		a.mu.Lock()
		aborted := a.aborted
		a.mu.Unlock()
		if aborted {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (a *commandAgent) Abort(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.aborted = true
		a.cancel()
	}
	return nil
}

func (a *commandAgent) Clear(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	vars := a.varsLocked()
	a.skills = nil
	if a.tmpl.Clear == "" {
		// Without a clear command a fresh session name drops the history.
		a.session = SessionName(a.channelID) + "-" + uuid.NewString()[:8]
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	_, err := a.run(ctx, a.tmpl.Clear, vars)
	return err
}

func (a *commandAgent) LoadSkill(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("agent: skill name is required")
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	vars := a.varsLocked()
	a.mu.Unlock()

	if a.tmpl.Skill != "" {
		vars["{skill}"] = name
		if _, err := a.run(ctx, a.tmpl.Skill, vars); err != nil {
			return err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.skills {
		if s == name {
			return nil
		}
	}
	a.skills = append(a.skills, name)
	return nil
}

func (a *commandAgent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
	a.closed = true
	return nil
}

// varsLocked returns the placeholder values. Caller holds a.mu.
func (a *commandAgent) varsLocked() map[string]string {
	skills := ""
	if len(a.skills) > 0 && a.tmpl.Skill == "" {
		skills = strings.Join(a.skills, ",")
	}
	return map[string]string{
		"{session}": a.session,
		"{channel}": strconv.FormatUint(a.channelID, 10),
		"{skills}":  skills,
	}
}

// withSkills prefixes the prompt with loaded skills for CLIs that have no
// dedicated skill command.
func withSkills(text, skills string) string {
	if skills == "" {
		return text
	}
	return "[skills: " + skills + "]\n" + text
}

func (a *commandAgent) run(ctx context.Context, line string, vars map[string]string) (string, error) {
	args, err := expand(line, vars)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = a.config.Workdir
	cmd.Env = append(a.config.Environ(), a.config.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[len(msg)-maxStderr:]
		}
		if msg != "" {
			return "", fmt.Errorf("agent: %s %s: %w: %s", a.backend, args[0], err, msg)
		}
		return "", fmt.Errorf("agent: %s %s: %w", a.backend, args[0], err)
	}
	return stdout.String(), nil
}

// expand splits a command line and substitutes placeholders in each
// argument.
func expand(line string, vars map[string]string) ([]string, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("agent: parsing command %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("agent: empty command")
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	// Single pass: substituted values are never rescanned.
	r := strings.NewReplacer(pairs...)
	for i, arg := range args {
		args[i] = r.Replace(arg)
	}
	return args, nil
}

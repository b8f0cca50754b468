package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestFactory(t *testing.T, tmpl CommandTemplate) *CommandFactory {
	t.Helper()
	f, err := NewCommandFactory(Config{
		Commands: map[Backend]CommandTemplate{BackendPi: tmpl},
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewCommandFactory: %v", err)
	}
	return f
}

func TestCommandAgent_Prompt(t *testing.T) {
	t.Parallel()

	f := newTestFactory(t, CommandTemplate{Prompt: "echo {channel} {session} {prompt}"})
	a, err := f.New(context.Background(), 42, BackendPi)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Backend() != BackendPi {
		t.Errorf("Backend = %q, want pi", a.Backend())
	}

	out, err := a.Prompt(context.Background(), "hello {session}")
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	// The prompt is substituted verbatim, never rescanned for placeholders.
	want := "42 discord-rs-42 hello {session}"
	if out != want {
		t.Errorf("Prompt = %q, want %q", out, want)
	}
}

func TestCommandFactory_UnknownBackend(t *testing.T) {
	t.Parallel()

	f := newTestFactory(t, CommandTemplate{Prompt: "echo {prompt}"})
	_, err := f.New(context.Background(), 1, BackendKilo)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestCommandAgent_PromptFailureIncludesStderr(t *testing.T) {
	t.Parallel()

	f := newTestFactory(t, CommandTemplate{Prompt: "sh -c 'echo boom >&2; exit 3'"})
	a, _ := f.New(context.Background(), 1, BackendPi)

	_, err := a.Prompt(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q should include stderr", err)
	}
}

func TestCommandAgent_Abort(t *testing.T) {
	t.Parallel()

	f := newTestFactory(t, CommandTemplate{Prompt: "sleep 5"})
	a, _ := f.New(context.Background(), 1, BackendPi)

	done := make(chan error, 1)
	go func() {
		_, err := a.Prompt(context.Background(), "x")
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for {
		ca := a.(*commandAgent)
		ca.mu.Lock()
		running := ca.cancel != nil
		ca.mu.Unlock()
		if running {
			break
		}
		select {
		case <-deadline:
			t.Fatal("prompt never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := a.Abort(context.Background()); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrAborted) {
			t.Errorf("err = %v, want ErrAborted", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("prompt did not return after abort")
	}
}

func TestCommandAgent_ClearRotatesSession(t *testing.T) {
	t.Parallel()

	f := newTestFactory(t, CommandTemplate{Prompt: "echo {session}"})
	a, _ := f.New(context.Background(), 7, BackendPi)

	before, _ := a.Prompt(context.Background(), "")
	if err := a.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	after, _ := a.Prompt(context.Background(), "")

	if before == after {
		t.Errorf("session should change after Clear, still %q", after)
	}
	if !strings.HasPrefix(after, "discord-rs-7-") {
		t.Errorf("rotated session = %q", after)
	}
}

func TestCommandAgent_SkillsPrefixPrompt(t *testing.T) {
	t.Parallel()

	f := newTestFactory(t, CommandTemplate{Prompt: "echo {prompt}"})
	a, _ := f.New(context.Background(), 1, BackendPi)

	if err := a.LoadSkill(context.Background(), "review"); err != nil {
		t.Fatalf("LoadSkill: %v", err)
	}
	_ = a.LoadSkill(context.Background(), "review")

	out, err := a.Prompt(context.Background(), "go")
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if out != "[skills: review]\ngo" {
		t.Errorf("Prompt = %q", out)
	}
}

func TestCommandAgent_Closed(t *testing.T) {
	t.Parallel()

	f := newTestFactory(t, CommandTemplate{Prompt: "echo {prompt}"})
	a, _ := f.New(context.Background(), 1, BackendPi)
	_ = a.Close()

	if _, err := a.Prompt(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Prompt after Close: err = %v, want ErrClosed", err)
	}
	if err := a.Clear(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Clear after Close: err = %v, want ErrClosed", err)
	}
}

func TestCommandAgent_Environment(t *testing.T) {
	t.Parallel()

	f, err := NewCommandFactory(Config{
		Commands: map[Backend]CommandTemplate{BackendPi: {Prompt: `sh -c 'echo "$BASE|$EXTRA|$HIDDEN"'`}},
		Timeout:  5 * time.Second,
		Env:      []string{"EXTRA=two"},
		Environ:  func() []string { return []string{"PATH=/usr/bin:/bin", "BASE=one"} },
	})
	if err != nil {
		t.Fatalf("NewCommandFactory: %v", err)
	}
	a, err := f.New(context.Background(), 1, BackendPi)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := a.Prompt(context.Background(), "ignored")
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if out != "one|two|" {
		t.Errorf("environment = %q, want %q", out, "one|two|")
	}
}

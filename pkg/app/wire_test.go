package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/flemzord/cronclaw/internal/core"
	"github.com/flemzord/cronclaw/internal/security"
)

func TestFindTransport(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// channel.fake is registered but not loaded here.
	idle := core.NewApp(core.NewAppContext(logger, t.TempDir()))
	idle.AppendModule("test.inert", inertModule{})
	if _, err := findTransport(idle, logger); err == nil || !strings.Contains(err.Error(), "channel.fake") {
		t.Errorf("findTransport() error = %v, want one listing channel.fake", err)
	}

	app := core.NewApp(core.NewAppContext(logger, t.TempDir()))
	app.AppendModule("test.inert", inertModule{})
	app.AppendModule("channel.fake", fakeTransport{})
	tr, err := findTransport(app, logger)
	if err != nil {
		t.Fatalf("findTransport: %v", err)
	}
	if got := chunkLimit(tr); got != 100 {
		t.Errorf("chunkLimit = %d, want 100", got)
	}
}

func TestLimiterSweepTask(t *testing.T) {
	t.Parallel()
	task := &limiterSweepTask{limiter: security.NewRateLimiter(security.RateLimitConfig{})}
	if task.Name() == "" || task.Schedule() == "" {
		t.Fatal("task must have a name and schedule")
	}
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

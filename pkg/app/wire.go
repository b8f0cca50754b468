package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/cronclaw/internal/channel"
	"github.com/flemzord/cronclaw/internal/core"
	"github.com/flemzord/cronclaw/internal/cron"
	"github.com/flemzord/cronclaw/internal/security"
)

// schedulerModule wraps the cron manager so the scheduler participates in
// the App lifecycle. It is appended after every configured module: jobs
// start firing once the transport is connected and stop before it closes.
type schedulerModule struct {
	manager *cron.Manager
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron.scheduler"}
}

func (m *schedulerModule) Start() error {
	m.manager.Start()
	return nil
}

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.manager.Stop(ctx)
}

// limiterSweepTask drops idle rate-limit windows.
type limiterSweepTask struct {
	limiter *security.RateLimiter
}

func (t *limiterSweepTask) Name() string     { return "ratelimit_sweep" }
func (t *limiterSweepTask) Schedule() string { return "@every 10m" }

func (t *limiterSweepTask) Run(context.Context) error {
	t.limiter.Sweep()
	return nil
}

// findTransport returns the first loaded channel module that can deliver
// messages. Only the "channel" namespace is considered.
func findTransport(app *core.App, logger *slog.Logger) (channel.Transport, error) {
	var known []string
	for _, info := range core.ModulesInNamespace(channel.Namespace) {
		id := string(info.ID)
		known = append(known, id)
		mod, ok := app.Module(id)
		if !ok {
			continue
		}
		if t, ok := mod.(channel.Transport); ok {
			logger.Info("app: transport selected", "module", id)
			return t, nil
		}
	}
	return nil, fmt.Errorf("app: no channel module configured (available: %v)", known)
}

// chunkLimit returns the transport's message size limit, or 0 for the
// runner default.
func chunkLimit(t channel.Transport) int {
	if l, ok := t.(channel.Limiter); ok {
		return l.MaxMessageLength()
	}
	return 0
}

package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AddTask registers a maintenance task on the job engine. A tick is skipped
// while the previous run of the same task is still going.
func (m *Manager) AddTask(task Task) error {
	m.tasksMu.Lock()
	defer m.tasksMu.Unlock()

	name := task.Name()
	if _, exists := m.tasks[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, name)
	}

	var running sync.Mutex
	handle, err := m.engine.Register(task.Schedule(), func() {
		if !running.TryLock() {
			m.logger.Warn("cron: task still running, skipping tick", "task", name)
			return
		}
		defer running.Unlock()

		m.logger.Debug("cron: task started", "task", name)
		if err := task.Run(m.taskCtx); err != nil {
			m.logger.Error("cron: task failed", "task", name, "error", err)
			return
		}
		m.logger.Debug("cron: task completed", "task", name)
	})
	if err != nil {
		return fmt.Errorf("cron: invalid schedule for task %q: %w", name, err)
	}

	m.tasks[name] = handle
	return nil
}

// RemoveTask deregisters a maintenance task. Unknown names are ignored.
func (m *Manager) RemoveTask(name string) {
	m.tasksMu.Lock()
	defer m.tasksMu.Unlock()

	if handle, ok := m.tasks[name]; ok {
		m.engine.Deregister(handle)
		delete(m.tasks, name)
	}
}

// SessionPruner is the part of the session coordinator used by
// SessionCleanupTask.
type SessionPruner interface {
	Prune(ctx context.Context, maxIdle time.Duration) int
}

// SessionCleanupTask closes sessions idle for longer than MaxIdle.
type SessionCleanupTask struct {
	Sessions     SessionPruner
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = "*/5 * * * *"
}

// Compile-time interface check.
var _ Task = (*SessionCleanupTask)(nil)

// Name implements Task.
func (t *SessionCleanupTask) Name() string { return "session_cleanup" }

// Schedule implements Task.
func (t *SessionCleanupTask) Schedule() string {
	if t.ScheduleExpr != "" {
		return t.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run implements Task.
func (t *SessionCleanupTask) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: session cleanup cancelled: %w", err)
	}
	if pruned := t.Sessions.Prune(ctx, t.MaxIdle); pruned > 0 && t.Logger != nil {
		t.Logger.Info("cron: pruned idle sessions", "count", pruned)
	}
	return nil
}

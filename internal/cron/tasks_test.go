package cron

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type funcTask struct {
	name     string
	schedule string
	run      func(ctx context.Context) error
}

func (t funcTask) Name() string                  { return t.name }
func (t funcTask) Schedule() string              { return t.schedule }
func (t funcTask) Run(ctx context.Context) error { return t.run(ctx) }

type fakePruner struct {
	calls   atomic.Int32
	maxIdle time.Duration
	pruned  int
}

func (p *fakePruner) Prune(_ context.Context, maxIdle time.Duration) int {
	p.calls.Add(1)
	p.maxIdle = maxIdle
	return p.pruned
}

func TestManager_AddTask(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, t.TempDir())
	var runs atomic.Int32
	task := funcTask{name: "tick", schedule: "@every 1m", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}

	if err := m.AddTask(task); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if err := m.AddTask(task); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("AddTask() duplicate error = %v", err)
	}
	if err := m.AddTask(funcTask{name: "bad", schedule: "sometimes"}); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("AddTask() bad schedule error = %v", err)
	}

	m.engine.FireAll()
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
	if m.Len() != 0 {
		t.Error("tasks must not be stored as jobs")
	}

	m.RemoveTask("tick")
	m.RemoveTask("tick")
	if m.engine.Len() != 0 {
		t.Errorf("engine registrations = %d after RemoveTask", m.engine.Len())
	}
}

func TestManager_TaskSkipsOverlappingTick(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, t.TempDir())
	release := make(chan struct{})
	entered := make(chan struct{})
	var runs atomic.Int32
	task := funcTask{name: "slow", schedule: "@every 1m", run: func(context.Context) error {
		runs.Add(1)
		close(entered)
		<-release
		return nil
	}}
	if err := m.AddTask(task); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.engine.FireAll()
	}()
	<-entered

	m.engine.FireAll()
	close(release)
	wg.Wait()

	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
}

func TestManager_TaskSeesStopCancellation(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, t.TempDir())
	var sawCancel atomic.Bool
	task := funcTask{name: "ctx", schedule: "@every 1m", run: func(ctx context.Context) error {
		sawCancel.Store(ctx.Err() != nil)
		return ctx.Err()
	}}
	if err := m.AddTask(task); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(t.Context()); err != nil {
		t.Fatal(err)
	}
	m.engine.FireAll()
	if !sawCancel.Load() {
		t.Error("task context not cancelled by Stop")
	}
}

func TestSessionCleanupTask(t *testing.T) {
	t.Parallel()

	p := &fakePruner{pruned: 2}
	task := &SessionCleanupTask{Sessions: p, MaxIdle: time.Hour}

	if task.Name() != "session_cleanup" {
		t.Errorf("Name() = %q", task.Name())
	}
	if task.Schedule() != "*/5 * * * *" {
		t.Errorf("Schedule() = %q", task.Schedule())
	}
	if err := task.Run(t.Context()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p.calls.Load() != 1 || p.maxIdle != time.Hour {
		t.Errorf("Prune calls = %d, maxIdle = %v", p.calls.Load(), p.maxIdle)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := task.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() on cancelled ctx error = %v", err)
	}

	custom := &SessionCleanupTask{Sessions: p, ScheduleExpr: "@every 30s"}
	if custom.Schedule() != "@every 30s" {
		t.Errorf("Schedule() = %q", custom.Schedule())
	}
}

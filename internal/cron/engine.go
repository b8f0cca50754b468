package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Parser accepts five-field expressions, an optional leading seconds field,
// and descriptors such as @hourly or @every 5m.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule parses spec without registering it.
func ValidateSchedule(spec string) error {
	if _, err := Parser.Parse(spec); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	return nil
}

// CronEngine is the Engine backed by robfig/cron. Each fire runs in its own
// goroutine and panics are recovered and logged.
type CronEngine struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[uuid.UUID]cron.EntryID
	running bool
}

// Compile-time interface checks.
var (
	_ Engine     = (*CronEngine)(nil)
	_ NextRunner = (*CronEngine)(nil)
)

// NewCronEngine creates an engine evaluating schedules in loc.
func NewCronEngine(loc *time.Location, logger *slog.Logger) *CronEngine {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	return &CronEngine{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		entries: make(map[uuid.UUID]cron.EntryID),
	}
}

// Register implements Engine.
func (e *CronEngine) Register(spec string, fire func()) (uuid.UUID, error) {
	sched, err := Parser.Parse(spec)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	handle := uuid.New()
	e.entries[handle] = e.cron.Schedule(sched, cron.FuncJob(fire))
	return handle, nil
}

// Deregister implements Engine.
func (e *CronEngine) Deregister(handle uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.entries[handle]
	if !ok {
		return
	}
	delete(e.entries, handle)
	e.cron.Remove(id)
}

// Next implements NextRunner.
func (e *CronEngine) Next(handle uuid.UUID) (time.Time, bool) {
	e.mu.Lock()
	id, ok := e.entries[handle]
	e.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	entry := e.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	if entry.Next.IsZero() {
		// Not started yet: compute from the schedule.
		return entry.Schedule.Next(time.Now()), true
	}
	return entry.Next, true
}

// Len returns the number of live registrations.
func (e *CronEngine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Start implements Engine.
func (e *CronEngine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.cron.Start()
}

// Stop implements Engine. It waits for in-flight fires or ctx, whichever
// comes first.
func (e *CronEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	done := e.cron.Stop()
	e.mu.Unlock()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: waiting for running jobs: %w", ctx.Err())
	}
}

// cronLogger adapts slog to the robfig/cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: engine "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: engine "+msg, append(keysAndValues, "error", err)...)
}

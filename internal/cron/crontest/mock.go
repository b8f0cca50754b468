// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/agent/agenttest"
	"github.com/flemzord/cronclaw/internal/turn"
	"github.com/google/uuid"
)

// FakeEngine is a manual engine: nothing fires until Fire or FireAll.
type FakeEngine struct {
	// Validate, if set, rejects specs by returning an error.
	Validate func(spec string) error

	mu      sync.Mutex
	entries map[uuid.UUID]Entry
	started bool
	stopped bool
}

// Entry is one registration held by FakeEngine.
type Entry struct {
	Spec string
	Fire func()
}

// Register records spec and returns a fresh handle.
func (e *FakeEngine) Register(spec string, fire func()) (uuid.UUID, error) {
	if e.Validate != nil {
		if err := e.Validate(spec); err != nil {
			return uuid.Nil, err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.entries == nil {
		e.entries = make(map[uuid.UUID]Entry)
	}
	h := uuid.New()
	e.entries[h] = Entry{Spec: spec, Fire: fire}
	return h, nil
}

// Deregister drops a registration.
func (e *FakeEngine) Deregister(handle uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entries, handle)
}

// Start marks the engine started.
func (e *FakeEngine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = true
}

// Stop marks the engine stopped.
func (e *FakeEngine) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	return nil
}

// Started reports whether Start was called.
func (e *FakeEngine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Stopped reports whether Stop was called.
func (e *FakeEngine) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Len returns the number of live registrations.
func (e *FakeEngine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Has reports whether handle is registered.
func (e *FakeEngine) Has(handle uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.entries[handle]
	return ok
}

// Specs returns the registered specs, sorted.
func (e *FakeEngine) Specs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.entries))
	for _, en := range e.entries {
		out = append(out, en.Spec)
	}
	slices.Sort(out)
	return out
}

// Fire runs the callback of handle synchronously. It returns false for an
// unknown handle.
func (e *FakeEngine) Fire(handle uuid.UUID) bool {
	e.mu.Lock()
	en, ok := e.entries[handle]
	e.mu.Unlock()
	if !ok {
		return false
	}
	en.Fire()
	return true
}

// FireAll runs every callback synchronously.
func (e *FakeEngine) FireAll() {
	e.mu.Lock()
	fires := make([]func(), 0, len(e.entries))
	for _, en := range e.entries {
		fires = append(fires, en.Fire)
	}
	e.mu.Unlock()
	for _, f := range fires {
		f()
	}
}

// Sessions is a fake session provider handing out agenttest mocks.
type Sessions struct {
	// Err, when set, is returned by GetOrCreate.
	Err error

	mu       sync.Mutex
	sessions map[uint64]*agenttest.MockAgent
	calls    []agent.Backend
}

// GetOrCreate returns the mock for channelID, creating it on first use.
func (s *Sessions) GetOrCreate(_ context.Context, channelID uint64, backend agent.Backend) (agent.Agent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, backend)
	if s.Err != nil {
		return nil, false, s.Err
	}
	if s.sessions == nil {
		s.sessions = make(map[uint64]*agenttest.MockAgent)
	}
	if a, ok := s.sessions[channelID]; ok {
		return a, false, nil
	}
	a := &agenttest.MockAgent{BackendVal: backend}
	s.sessions[channelID] = a
	return a, true, nil
}

// Backends returns the backend requested by each GetOrCreate call.
func (s *Sessions) Backends() []agent.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.Backend(nil), s.calls...)
}

// Channels is a fake backend resolver.
type Channels struct {
	Value agent.Backend
	Err   error
}

// Backend returns the configured backend or error.
func (c Channels) Backend(context.Context, uint64) (agent.Backend, error) {
	return c.Value, c.Err
}

// Turns records started turns.
type Turns struct {
	mu    sync.Mutex
	turns []turn.Request
}

// StartTurn records req.
func (t *Turns) StartTurn(req turn.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, req)
}

// Requests returns the recorded turns.
func (t *Turns) Requests() []turn.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]turn.Request(nil), t.turns...)
}

// LogRecorder is a slog.Handler that keeps every record at or above Level.
type LogRecorder struct {
	Level slog.Level

	mu      sync.Mutex
	records []slog.Record
}

// Enabled implements slog.Handler.
func (h *LogRecorder) Enabled(_ context.Context, l slog.Level) bool { return l >= h.Level }

// Handle implements slog.Handler.
func (h *LogRecorder) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

// WithAttrs implements slog.Handler. Attributes are dropped.
func (h *LogRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }

// WithGroup implements slog.Handler.
func (h *LogRecorder) WithGroup(string) slog.Handler { return h }

// Messages returns the recorded messages in order.
func (h *LogRecorder) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.records))
	for i, r := range h.records {
		out[i] = r.Message
	}
	return out
}

// Count returns how many records were kept at exactly level.
func (h *LogRecorder) Count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

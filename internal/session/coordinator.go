// Package session keeps at most one live agent per chat channel and hands
// it out with get-or-create semantics.
package session

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/lane"
	"github.com/prometheus/client_golang/prometheus"
)

// Info is a read-only view of a live session.
type Info struct {
	ChannelID    uint64        `json:"channel_id"`
	Backend      agent.Backend `json:"backend"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActiveAt time.Time     `json:"last_active_at"`
}

// Config configures a Coordinator.
type Config struct {
	Factory agent.Factory

	// MaxSessions limits live sessions. Zero means unlimited.
	MaxSessions int

	Logger *slog.Logger

	// Registerer receives the session collectors when non-nil.
	Registerer prometheus.Registerer

	// Now overrides time.Now for testing.
	Now func() time.Time
}

type entry struct {
	agent agent.Agent
	info  Info
}

// Coordinator owns the live agents, one per channel. Creation for a channel
// is serialized so concurrent callers observe exactly one new session;
// other channels are never blocked by it.
type Coordinator struct {
	mu       sync.RWMutex
	sessions map[uint64]*entry

	lanes       *lane.Lock[uint64]
	factory     agent.Factory
	maxSessions int
	logger      *slog.Logger
	now         func() time.Time

	live    prometheus.Gauge
	created *prometheus.CounterVec
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Factory == nil {
		return nil, ErrNoFactory
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Coordinator{
		sessions:    make(map[uint64]*entry),
		lanes:       lane.New[uint64](),
		factory:     cfg.Factory,
		maxSessions: cfg.MaxSessions,
		logger:      logger,
		now:         now,
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cronclaw",
			Subsystem: "sessions",
			Name:      "live",
			Help:      "Number of live agent sessions.",
		}),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cronclaw",
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Agent sessions created, by backend.",
		}, []string{"backend"}),
	}
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(c.live, c.created)
	}
	return c, nil
}

// GetOrCreate returns the channel's session, creating it when absent. A
// session bound to a different backend is closed and replaced. isNew is true
// only for the call that created the session.
func (c *Coordinator) GetOrCreate(ctx context.Context, channelID uint64, backend agent.Backend) (agent.Agent, bool, error) {
	if err := c.lanes.Acquire(ctx, channelID); err != nil {
		return nil, false, fmt.Errorf("session: waiting for channel %d: %w", channelID, err)
	}
	defer c.lanes.Release(channelID)

	c.mu.Lock()
	e, ok := c.sessions[channelID]
	if ok && e.info.Backend == backend {
		e.info.LastActiveAt = c.now()
		c.mu.Unlock()
		return e.agent, false, nil
	}
	if ok {
		delete(c.sessions, channelID)
		c.live.Set(float64(len(c.sessions)))
	}
	full := c.maxSessions > 0 && len(c.sessions) >= c.maxSessions
	c.mu.Unlock()

	if ok {
		c.logger.Info("session: backend changed, replacing session",
			"channel", channelID, "from", string(e.info.Backend), "to", string(backend))
		c.closeEntry(e)
	}
	if full {
		return nil, false, ErrTooManySessions
	}

	a, err := c.factory.New(ctx, channelID, backend)
	if err != nil {
		return nil, false, fmt.Errorf("session: creating %s agent for channel %d: %w", backend, channelID, err)
	}

	now := c.now()
	c.mu.Lock()
	c.sessions[channelID] = &entry{
		agent: a,
		info: Info{
			ChannelID:    channelID,
			Backend:      backend,
			CreatedAt:    now,
			LastActiveAt: now,
		},
	}
	c.live.Set(float64(len(c.sessions)))
	c.mu.Unlock()

	c.created.WithLabelValues(string(backend)).Inc()
	c.logger.Info("session: created", "channel", channelID, "backend", string(backend))
	return a, true, nil
}

// Get returns the live session for a channel.
func (c *Coordinator) Get(channelID uint64) (agent.Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.sessions[channelID]
	if !ok {
		return nil, false
	}
	return e.agent, true
}

// Touch marks a session as active now.
func (c *Coordinator) Touch(channelID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.sessions[channelID]; ok {
		e.info.LastActiveAt = c.now()
	}
}

// Remove closes and forgets the channel's session. It reports whether one
// existed.
func (c *Coordinator) Remove(ctx context.Context, channelID uint64) (bool, error) {
	if err := c.lanes.Acquire(ctx, channelID); err != nil {
		return false, fmt.Errorf("session: waiting for channel %d: %w", channelID, err)
	}
	defer c.lanes.Release(channelID)

	c.mu.Lock()
	e, ok := c.sessions[channelID]
	if ok {
		delete(c.sessions, channelID)
		c.live.Set(float64(len(c.sessions)))
	}
	c.mu.Unlock()

	if ok {
		c.closeEntry(e)
		c.logger.Info("session: removed", "channel", channelID)
	}
	return ok, nil
}

// Len returns the number of live sessions.
func (c *Coordinator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// List returns every live session ordered by channel id.
func (c *Coordinator) List() []Info {
	c.mu.RLock()
	out := make([]Info, 0, len(c.sessions))
	for _, e := range c.sessions {
		out = append(out, e.info)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b Info) int { return cmp.Compare(a.ChannelID, b.ChannelID) })
	return out
}

// Prune closes sessions idle for longer than maxIdle and returns how many
// were closed. Channels busy creating or removing a session are skipped.
func (c *Coordinator) Prune(_ context.Context, maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := c.now().Add(-maxIdle)

	c.mu.RLock()
	var idle []uint64
	for id, e := range c.sessions {
		if e.info.LastActiveAt.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	c.mu.RUnlock()

	pruned := 0
	for _, id := range idle {
		if !c.lanes.TryAcquire(id) {
			continue
		}
		c.mu.Lock()
		e, ok := c.sessions[id]
		if ok && e.info.LastActiveAt.Before(cutoff) {
			delete(c.sessions, id)
			c.live.Set(float64(len(c.sessions)))
		} else {
			ok = false
		}
		c.mu.Unlock()
		c.lanes.Release(id)

		if ok {
			c.closeEntry(e)
			pruned++
		}
	}
	return pruned
}

// CloseAll closes every session. Used on shutdown.
func (c *Coordinator) CloseAll() {
	c.mu.Lock()
	entries := c.sessions
	c.sessions = make(map[uint64]*entry)
	c.live.Set(0)
	c.mu.Unlock()

	for _, e := range entries {
		c.closeEntry(e)
	}
}

func (c *Coordinator) closeEntry(e *entry) {
	if err := e.agent.Close(); err != nil {
		c.logger.Warn("session: close failed", "channel", e.info.ChannelID, "error", err)
	}
}

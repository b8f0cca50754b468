package cron

import (
	"context"
	"sync"
	"weak"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/channel"
	"github.com/flemzord/cronclaw/internal/turn"
)

// SessionProvider returns the session bound to a channel, creating it when
// needed. isNew reports whether this call created it.
type SessionProvider interface {
	GetOrCreate(ctx context.Context, channelID uint64, backend agent.Backend) (sess agent.Agent, isNew bool, err error)
}

// BackendResolver reports which agent backend a channel is configured for.
type BackendResolver interface {
	Backend(ctx context.Context, channelID uint64) (agent.Backend, error)
}

// TurnStarter launches an agent turn and returns without waiting for it.
type TurnStarter interface {
	StartTurn(req turn.Request)
}

// Runtime is the slice of application state a fired job needs. The
// application owns it; the scheduler only ever holds a weak pointer.
type Runtime struct {
	Sessions SessionProvider
	Channels BackendResolver
	Turns    TurnStarter

	// DefaultBackend is used when Channels fails. Empty means agent.DefaultBackend.
	DefaultBackend agent.Backend
}

func (r *Runtime) defaultBackend() agent.Backend {
	if r.DefaultBackend != "" {
		return r.DefaultBackend
	}
	return agent.DefaultBackend
}

// hostRef holds the transport and the weak runtime pointer set by Init.
// It has its own lock so resolving it never waits on the job store.
type hostRef struct {
	mu        sync.RWMutex
	set       bool
	transport channel.Transport
	runtime   weak.Pointer[Runtime]
}

func (h *hostRef) store(transport channel.Transport, rt weak.Pointer[Runtime]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.set = true
	h.transport = transport
	h.runtime = rt
}

// resolve returns strong references for the duration of one fire.
func (h *hostRef) resolve() (channel.Transport, *Runtime, error) {
	h.mu.RLock()
	set, transport, ptr := h.set, h.transport, h.runtime
	h.mu.RUnlock()

	if !set || transport == nil {
		return nil, nil, ErrNotInitialized
	}
	rt := ptr.Value()
	if rt == nil {
		return nil, nil, ErrRuntimeReleased
	}
	return transport, rt, nil
}

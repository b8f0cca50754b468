package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a caller exceeds its allowance.
var ErrRateLimited = errors.New("security: rate limit exceeded")

// Rate limit kinds.
const (
	KindCommand = "command" // chat commands, per channel
	KindMessage = "message" // mention-triggered turns, per channel
	KindAuth    = "auth"    // failed gateway logins, per remote address
	KindJobAdd  = "job_add" // new cron jobs, per channel
)

// RateLimitConfig holds per-kind allowances. Zero fields take defaults; a
// negative value disables the kind.
type RateLimitConfig struct {
	CommandsPerMin     int `yaml:"commands_per_min"`
	MessagesPerMin     int `yaml:"messages_per_min"`
	AuthFailuresPerMin int `yaml:"auth_failures_per_min"`
	JobsPerHour        int `yaml:"jobs_per_hour"`
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.CommandsPerMin == 0 {
		c.CommandsPerMin = 30
	}
	if c.MessagesPerMin == 0 {
		c.MessagesPerMin = 20
	}
	if c.AuthFailuresPerMin == 0 {
		c.AuthFailuresPerMin = 10
	}
	if c.JobsPerHour == 0 {
		c.JobsPerHour = 20
	}
	return c
}

type limit struct {
	window time.Duration
	max    int
}

type windowKey struct {
	kind string
	key  string
}

// RateLimiter is a sliding-window limiter keyed by kind and caller. Each
// (kind, key) pair keeps the timestamps of its recent events.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]limit
	windows map[windowKey][]time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter from cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	limits := make(map[string]limit, 4)
	add := func(kind string, window time.Duration, n int) {
		if n > 0 {
			limits[kind] = limit{window: window, max: n}
		}
	}
	add(KindCommand, time.Minute, cfg.CommandsPerMin)
	add(KindMessage, time.Minute, cfg.MessagesPerMin)
	add(KindAuth, time.Minute, cfg.AuthFailuresPerMin)
	add(KindJobAdd, time.Hour, cfg.JobsPerHour)

	return &RateLimiter{
		limits:  limits,
		windows: make(map[windowKey][]time.Time),
		now:     time.Now,
	}
}

// Allow records one event of kind for key, or returns ErrRateLimited
// without recording it. Kinds without a limit are always allowed.
func (rl *RateLimiter) Allow(kind, key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limits[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	wk := windowKey{kind: kind, key: key}
	events := trim(rl.windows[wk], now.Add(-lim.window))
	if len(events) >= lim.max {
		rl.windows[wk] = events
		return ErrRateLimited
	}
	rl.windows[wk] = append(events, now)
	return nil
}

// Blocked reports whether the next Allow(kind, key) would fail, without
// recording anything.
func (rl *RateLimiter) Blocked(kind, key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limits[kind]
	if !ok {
		return false
	}
	wk := windowKey{kind: kind, key: key}
	events := trim(rl.windows[wk], rl.now().Add(-lim.window))
	if len(events) == 0 {
		delete(rl.windows, wk)
		return false
	}
	rl.windows[wk] = events
	return len(events) >= lim.max
}

// Sweep drops windows with no recent events.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for wk, events := range rl.windows {
		lim := rl.limits[wk.kind]
		if len(trim(events, now.Add(-lim.window))) == 0 {
			delete(rl.windows, wk)
		}
	}
}

// trim drops events before cutoff. Events are in chronological order.
func trim(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	return events[i:]
}

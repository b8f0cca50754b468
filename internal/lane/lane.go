// Package lane provides per-key serialization: work sharing a key runs one
// at a time while work on different keys runs in parallel.
package lane

import (
	"context"
	"sync"
)

// Lock serializes holders of the same key. The zero value is not usable;
// call New.
//
// A global mutex guards the lane map and is held only to find or create a
// lane. Each lane is a one-slot semaphore so waiting can be cancelled.
type Lock[K comparable] struct {
	mu    sync.Mutex
	lanes map[K]*lane
}

// lane counts holders and waiters in refs; the entry is dropped when refs
// reaches zero.
type lane struct {
	sem  chan struct{}
	refs int
}

// New creates a ready-to-use Lock.
func New[K comparable]() *Lock[K] {
	return &Lock[K]{lanes: make(map[K]*lane)}
}

func (l *Lock[K]) join(key K) *lane {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln, ok := l.lanes[key]
	if !ok {
		ln = &lane{sem: make(chan struct{}, 1)}
		l.lanes[key] = ln
	}
	ln.refs++
	return ln
}

func (l *Lock[K]) leave(key K, ln *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.refs--
	if ln.refs == 0 {
		delete(l.lanes, key)
	}
}

// Acquire blocks until the lane for key is free or ctx is done. On success
// the caller must call Release with the same key.
func (l *Lock[K]) Acquire(ctx context.Context, key K) error {
	ln := l.join(key)
	select {
	case ln.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.leave(key, ln)
		return ctx.Err()
	}
}

// TryAcquire takes the lane only if it is free right now.
func (l *Lock[K]) TryAcquire(key K) bool {
	ln := l.join(key)
	select {
	case ln.sem <- struct{}{}:
		return true
	default:
		l.leave(key, ln)
		return false
	}
}

// Release frees the lane for key. Releasing a key that is not held panics,
// like unlocking an unlocked mutex.
func (l *Lock[K]) Release(key K) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	l.mu.Unlock()
	if !ok {
		panic("lane: release of unheld key")
	}
	<-ln.sem
	l.leave(key, ln)
}

// Busy reports whether key is held or awaited.
func (l *Lock[K]) Busy(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.lanes[key]
	return ok
}

// Len returns the number of keys currently held or awaited.
func (l *Lock[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}

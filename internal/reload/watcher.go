// Package reload provides configuration hot-reload driven by file system
// notifications and SIGHUP.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// ConfigPath is the path to the configuration file to watch.
	ConfigPath string

	// Debounce collapses bursts of writes (editors often write a file in
	// several steps). Defaults to 250ms.
	Debounce time.Duration

	Logger *slog.Logger
}

// EventType describes the type of file change event.
type EventType string

const (
	// EventModified indicates the config file was written or replaced.
	EventModified EventType = "modified"
)

// Event represents a file change notification.
type Event struct {
	Type       EventType
	ConfigPath string
}

// Watcher reports changes to a configuration file. It watches the parent
// directory so atomic replace-by-rename saves are seen too.
type Watcher struct {
	cfg    WatcherConfig
	events chan Event
	logger *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	stop    chan struct{}
	stopped chan struct{}
}

// NewWatcher creates a new file watcher.
func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:    cfg,
		events: make(chan Event, 1),
		logger: logger,
	}
}

// Start begins watching. Calling Start on a running watcher does nothing.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reload: create watcher: %w", err)
	}
	dir := filepath.Dir(w.cfg.ConfigPath)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("reload: watch %s: %w", dir, err)
	}

	w.fsw = fsw
	w.stop = make(chan struct{})
	w.stopped = make(chan struct{})
	go w.loop(ctx, fsw, w.stop, w.stopped)
	return nil
}

// Events returns the channel of file change events. At most one event is
// buffered; further changes before it is read are coalesced.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher and waits for its goroutine. Safe to call multiple
// times and before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsw, stop, stopped := w.fsw, w.stop, w.stopped
	w.fsw = nil
	w.mu.Unlock()

	if fsw == nil {
		return
	}
	close(stop)
	<-stopped
	_ = fsw.Close()
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	target := filepath.Clean(w.cfg.ConfigPath)
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("reload: config change detected", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.cfg.Debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("reload: watcher error", "error", err)
		case <-timer.C:
			select {
			case w.events <- Event{Type: EventModified, ConfigPath: w.cfg.ConfigPath}:
			default:
			}
		}
	}
}

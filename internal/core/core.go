package core

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// shutdownTimeout bounds the whole stop sequence.
const shutdownTimeout = 30 * time.Second

// App runs the modules named in the config file plus the ones pkg/app
// appends (the scheduler). Start order is load order; stop is the reverse.
type App struct {
	ctx    *AppContext
	logger *slog.Logger

	mu      sync.RWMutex
	modules []moduleInstance
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	started bool
}

// NewApp returns an App with no modules.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// LoadModules loads ids in order. On the first failure the modules loaded
// so far are stopped and dropped.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.cleanup()
			return err
		}
		info := mod.ModuleInfo()
		a.AppendModule(info.ID, mod)
		a.logger.Info("core: module loaded", "module", string(info.ID))
	}
	return nil
}

// Start runs every Starter in order. A failure stops what already started.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		s, ok := mi.module.(Starter)
		if !ok {
			continue
		}
		a.logger.Debug("core: starting module", "module", string(mi.id))
		if err := s.Start(); err != nil {
			a.logger.Error("core: module start failed", "module", string(mi.id), "error", err)
			a.stopModules(i - 1)
			return &ModuleError{ID: mi.id, Stage: StageStart, Err: err}
		}
		a.setStarted(i, true)
	}
	a.logger.Info("core: modules started", "count", len(a.modules))
	return nil
}

// Stop stops started modules in reverse order. Errors are logged.
func (a *App) Stop() {
	a.stopModules(len(a.modules) - 1)
}

func (a *App) stopModules(fromIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := fromIndex; i >= 0; i-- {
		mi := &a.modules[i]
		if !mi.started {
			continue
		}
		if s, ok := mi.module.(Stopper); ok {
			a.logger.Debug("core: stopping module", "module", string(mi.id))
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("core: module stop failed", "module", string(mi.id), "error", err)
			}
		}
		a.setStarted(i, false)
	}
}

// AppendModule adds an already provisioned module to the lifecycle. It is
// started after the modules loaded before it and stopped before them.
func (a *App) AppendModule(id ModuleID, mod Module) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.modules = append(a.modules, moduleInstance{id: id, module: mod})
}

func (a *App) setStarted(i int, started bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.modules[i].started = started
}

// Module returns a loaded module by ID. pkg/app uses it to find the
// transport among the channel modules.
func (a *App) Module(id string) (Module, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, mi := range a.modules {
		if string(mi.id) == id {
			return mi.module, true
		}
	}
	return nil, false
}

// ModuleStatus reports one loaded module.
type ModuleStatus struct {
	ID      ModuleID
	Started bool
}

// Modules reports every loaded module in start order.
func (a *App) Modules() []ModuleStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ModuleStatus, 0, len(a.modules))
	for _, mi := range a.modules {
		out = append(out, ModuleStatus{ID: mi.id, Started: mi.started})
	}
	return out
}

func (a *App) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		mi := &a.modules[i]
		if s, ok := mi.module.(Stopper); ok {
			_ = s.Stop(ctx)
		}
	}
	a.modules = nil
}

// ReloadModules hands ctx to every Reloader. Each failure is a *ModuleError;
// they are joined and the other modules still reload.
func (a *App) ReloadModules(ctx *AppContext) error {
	a.mu.RLock()
	mods := slices.Clone(a.modules)
	a.mu.RUnlock()

	var errs []error
	for i := range mods {
		mi := &mods[i]
		r, ok := mi.module.(Reloader)
		if !ok {
			continue
		}
		moduleCtx := ctx.ForModule(mi.id)
		if err := r.Reload(moduleCtx); err != nil {
			a.logger.Error("core: module reload failed", "module", string(mi.id), "error", err)
			errs = append(errs, &ModuleError{ID: mi.id, Stage: StageReload, Err: err})
			continue
		}
		a.logger.Info("core: module reloaded", "module", string(mi.id))
	}
	return errors.Join(errs...)
}

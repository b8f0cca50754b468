// Package core is cronclaw's module kernel: a registry of module types, the
// lifecycle they follow, and the App that runs the configured set alongside
// the scheduler.
package core

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// AppContext is what a module sees of the process: a scoped logger, the
// data directory, its raw config and the shared services.
type AppContext struct {
	// Logger carries a "module" attribute inside a module's scope.
	Logger *slog.Logger

	// DataDir holds state files such as channels.db and audit.jsonl.
	DataDir string

	base     *slog.Logger
	configs  map[string]yaml.Node
	services *services
}

// NewAppContext returns a root context. A nil logger means slog.Default().
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:   logger,
		DataDir:  dataDir,
		base:     logger,
		services: newServices(),
	}
}

// WithModuleConfigs returns a copy carrying the "modules:" section of a
// config file, keyed by module ID. The copy shares services with ctx, which
// is how a reload hands new configs to running modules.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.configs = configs
	return &cp
}

// ModuleConfig returns the raw entry of one module.
func (ctx *AppContext) ModuleConfig(id string) (yaml.Node, bool) {
	node, ok := ctx.configs[id]
	return node, ok
}

// ForModule scopes ctx to one module.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.base.With("module", string(id))
	return &cp
}

// LoadModule builds a registered module and takes it through configure,
// provision and validate. Failures are *ModuleError.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("core: unknown module %q", id)
	}
	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, found := ctx.configs[id]; found {
			if err := c.Configure(&node); err != nil {
				return nil, &ModuleError{ID: info.ID, Stage: StageConfigure, Err: err}
			}
		}
	}
	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, &ModuleError{ID: info.ID, Stage: StageProvision, Err: err}
		}
	}
	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, &ModuleError{ID: info.ID, Stage: StageValidate, Err: err}
		}
	}
	return mod, nil
}

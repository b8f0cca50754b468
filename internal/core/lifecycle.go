package core

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Stage is one step of a module's lifecycle.
type Stage string

// Lifecycle stages, in the order a module goes through them.
const (
	StageConfigure Stage = "configure"
	StageProvision Stage = "provision"
	StageValidate  Stage = "validate"
	StageStart     Stage = "start"
	StageReload    Stage = "reload"
)

// ModuleError reports the module and stage that failed.
type ModuleError struct {
	ID    ModuleID
	Stage Stage
	Err   error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("core: %s: %s: %v", e.ID, e.Stage, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }

// Configurable modules decode their entry under "modules:" in the config
// file. A module with no entry is never configured and keeps its defaults.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner fills defaults and prepares state that does not depend on
// other modules. Shared services such as "turn.runner" may be registered
// after provisioning, so look them up in Start.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator checks a provisioned module without side effects.
type Validator interface {
	Validate() error
}

// Starter opens connections or listeners: the Discord gateway session, the
// HTTP server, the scheduler's engine.
type Starter interface {
	Start() error
}

// Stopper releases what Start opened. The App stops modules in reverse
// start order, so the scheduler halts before the transport it sends on.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Reloader applies a changed config file without a restart. The context
// carries the new module configs; fields that need a restart are kept and
// reported by the module.
type Reloader interface {
	Reload(ctx *AppContext) error
}

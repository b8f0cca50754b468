package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// registry holds the module types compiled into the binary. cronclaw ships
// a fixed set (gateway.http, channel.discord); tests add their own.
type registry struct {
	mu   sync.RWMutex
	byID map[ModuleID]ModuleInfo
}

var modules = &registry{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule adds a module type to the registry. Call it from init().
// It panics on an ID that is not "namespace.name", a nil constructor or a
// duplicate ID: all of them are programming errors caught at startup.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if err := checkID(info.ID); err != nil {
		panic(err.Error())
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	modules.mu.Lock()
	defer modules.mu.Unlock()
	if _, dup := modules.byID[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	modules.byID[info.ID] = info
}

func checkID(id ModuleID) error {
	if id.Namespace() == "" || id.Name() == "" || id.Name() == string(id) {
		return fmt.Errorf("core: module id %q is not namespace.name", id)
	}
	return nil
}

// GetModule looks up a registered module type.
func GetModule(id string) (ModuleInfo, bool) {
	modules.mu.RLock()
	defer modules.mu.RUnlock()
	info, ok := modules.byID[ModuleID(id)]
	return info, ok
}

// GetModules lists every registered module type ordered by ID.
func GetModules() []ModuleInfo {
	return modules.filter(func(ModuleInfo) bool { return true })
}

// ModulesInNamespace lists the registered module types of one namespace,
// such as "channel", ordered by ID.
func ModulesInNamespace(namespace string) []ModuleInfo {
	return modules.filter(func(info ModuleInfo) bool {
		return info.ID.Namespace() == namespace
	})
}

func (r *registry) filter(keep func(ModuleInfo) bool) []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModuleInfo, 0, len(r.byID))
	for _, info := range r.byID {
		if keep(info) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// resetRegistry empties the registry between tests.
func resetRegistry() {
	modules.mu.Lock()
	defer modules.mu.Unlock()
	clear(modules.byID)
}

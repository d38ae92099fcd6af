package pluginmodel

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nexusplugins/ptengine/platform"
	"github.com/nexusplugins/ptengine/ptlog"
)

// Status is a plugin's lifecycle state, mirroring this codebase's
// plugin-manager lineage (PluginStatusNone/Loading/Loaded/Unloading/
// Unloaded) but collapsed to what the rule engine actually needs: it never
// reloads a plugin mid-call (hot-swap is an explicit non-goal).
type Status int32

const (
	StatusNone Status = iota
	StatusLoading
	StatusLoaded
	StatusUnloading
	StatusUnloaded
)

// Table owns every loaded plugin's library handle and descriptor for the
// lifetime of the engine (spec §5, "Library handles are owned by the
// engine's plugin table; released at cleanup_context"). It also caches
// name→path so rule dispatch can re-resolve a target plugin without
// re-walking a directory (spec §4.4.3 step 1).
type Table struct {
	mu sync.RWMutex

	lib          platform.Library
	introspector Introspector

	byName     map[string]*PluginDescriptor
	statusByID map[string]Status
	pathByName map[string]string
}

// NewTable constructs an empty plugin table backed by lib for library
// operations and introspector for vtable queries.
func NewTable(lib platform.Library, introspector Introspector) *Table {
	return &Table{
		lib:          lib,
		introspector: introspector,
		byName:       make(map[string]*PluginDescriptor),
		statusByID:   make(map[string]Status),
		pathByName:   make(map[string]string),
	}
}

// Load opens the shared object at path, introspects it, and registers it
// under its declared name. Loading the same name twice is rejected,
// mirroring this codebase's plugin-manager lineage's "can't double load
// plugin" guard.
func (t *Table) Load(path string) (*PluginDescriptor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle := t.lib.Load(path)
	if !handle.Valid() {
		return nil, fmt.Errorf("pluginmodel: failed to load library at %s", path)
	}

	desc, err := t.introspector.Describe(handle)
	if err != nil {
		t.lib.Close(handle)
		return nil, fmt.Errorf("pluginmodel: introspect %s: %w", path, err)
	}
	desc.Path = path
	desc.Handle = handle
	InferMissingReturnKinds(&desc)

	if _, exists := t.byName[desc.Name]; exists {
		t.lib.Close(handle)
		ptlog.L().Warn("pluginmodel: double load rejected", zap.String("plugin", desc.Name), zap.String("path", path))
		return nil, fmt.Errorf("pluginmodel: plugin %q already loaded", desc.Name)
	}

	t.byName[desc.Name] = &desc
	t.statusByID[desc.Name] = StatusLoaded
	t.pathByName[desc.Name] = path
	ptlog.L().Info("pluginmodel: loaded plugin", zap.String("plugin", desc.Name), zap.String("version", desc.Version), zap.String("path", path))
	return &desc, nil
}

// RegisterPreloaded registers a descriptor the caller has already
// constructed (used by tests and by hosts embedding a StaticIntrospector),
// bypassing the library-load step entirely.
func (t *Table) RegisterPreloaded(desc PluginDescriptor) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byName[desc.Name]; exists {
		return fmt.Errorf("pluginmodel: plugin %q already loaded", desc.Name)
	}
	t.byName[desc.Name] = &desc
	t.statusByID[desc.Name] = StatusLoaded
	t.pathByName[desc.Name] = desc.Path
	return nil
}

// Get returns the descriptor for name, if loaded.
func (t *Table) Get(name string) (*PluginDescriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.byName[name]
	return d, ok
}

// PathForName returns the cached on-disk path for a previously loaded
// plugin name.
func (t *Table) PathForName(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.pathByName[name]
	return p, ok
}

// Status returns name's current lifecycle status.
func (t *Table) Status(name string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statusByID[name]
}

// Unload closes name's library handle and removes it from the table.
func (t *Table) Unload(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	desc, ok := t.byName[name]
	if !ok {
		return nil
	}
	t.statusByID[name] = StatusUnloading
	t.lib.Close(desc.Handle)
	delete(t.byName, name)
	delete(t.pathByName, name)
	t.statusByID[name] = StatusUnloaded
	ptlog.L().Info("pluginmodel: unloaded plugin", zap.String("plugin", name))
	return nil
}

// Names returns every currently loaded plugin name.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byName))
	for n := range t.byName {
		out = append(out, n)
	}
	return out
}

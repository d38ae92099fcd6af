// Package pluginmodel tracks loaded plugins and the interfaces they expose:
// plugin/interface descriptors (spec §3), the query-vtable introspection
// that builds them (spec §4.3), and the plugin table that owns library
// handles across the engine's lifetime.
package pluginmodel

import (
	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/platform"
)

// ArityKind distinguishes fixed- from variadic-arity interfaces.
type ArityKind int

const (
	ArityFixed ArityKind = iota
	ArityVariadic
)

// MaxParamsUnbounded is the sentinel for a variadic interface with no
// declared upper bound (spec §3: "max may be unbounded").
const MaxParamsUnbounded = -1

// ParamDecl is one declared parameter slot's static metadata.
type ParamDecl struct {
	Tag      abi.ParamTag
	TypeName string
	Size     int
}

// InterfaceDescriptor is a single named, typed entry point within a
// plugin, as introspected via the query vtable.
type InterfaceDescriptor struct {
	Name        string
	Description string
	Version     string
	Arity       ArityKind
	MinParams   int
	MaxParams   int // MaxParamsUnbounded when Arity == ArityVariadic with no cap
	Params      []ParamDecl
	ReturnKind  abi.ReturnKind
	// ReturnSize is the declared byte size of a by-value aggregate return,
	// used to decide the Windows/Unix struct_by_value promotion (spec §3).
	// Zero for scalar and pointer returns.
	ReturnSize int
	FuncPtr    uintptr
}

// EffectiveMaxParams returns MaxParams, substituting len(Params) when the
// interface is declared unbounded-variadic — the envelope can never exceed
// the number of parameter slots the plugin actually declared.
func (d InterfaceDescriptor) EffectiveMaxParams() int {
	if d.MaxParams == MaxParamsUnbounded {
		return len(d.Params)
	}
	return d.MaxParams
}

// PluginDescriptor is one loaded plugin: its identity, on-disk path,
// library handle, and the interfaces it exposes.
type PluginDescriptor struct {
	Name       string
	Version    string
	Path       string
	Handle     platform.Handle
	Interfaces []InterfaceDescriptor
}

// InterfaceByName looks up an interface by name (linear scan, per spec
// §4.3 step 3 — interface counts are small, typically < 16).
func (p *PluginDescriptor) InterfaceByName(name string) (InterfaceDescriptor, bool) {
	for _, iface := range p.Interfaces {
		if iface.Name == name {
			return iface, true
		}
	}
	return InterfaceDescriptor{}, false
}

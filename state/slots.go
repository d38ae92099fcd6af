// Package state implements the parameter-slot state machine (spec §4.3,
// "Interface runtime state" and §8 invariants 3/4): one InterfaceState per
// (plugin, interface), tracking which parameter slots are ready, in both
// fixed- and variadic-arity flavors.
package state

import (
	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/pluginmodel"
)

// Slot is one parameter position's runtime value (spec §3, "param_ready[i]
// / value / size / tag / int_shadow / float_shadow" collapsed into a
// single tagged abi.Value — see §9 design note).
type Slot struct {
	Ready bool
	Value abi.Value
}

// InterfaceState is the per-(plugin,interface) runtime record: resolved
// function pointer, parameter slots, the current variadic envelope, and
// return-shape metadata.
type InterfaceState struct {
	PluginName    string
	InterfaceName string
	FuncPtr       uintptr

	Arity     pluginmodel.ArityKind
	MinParams int
	// MaxParams is the declared parameter-slot count: param_count for a
	// fixed interface, the capped envelope for a variadic one.
	MaxParams int

	Slots []Slot

	// ActualParamCount is the current variadic envelope ("actual"), i.e.
	// how many slots are in play for this dispatch. For a fixed interface
	// this always equals MaxParams.
	ActualParamCount int

	ReturnKind abi.ReturnKind
	ReturnSize int

	InUse bool
}

// NewInterfaceState builds runtime state for desc, with all slots freshly
// allocated and unready.
func NewInterfaceState(pluginName string, desc pluginmodel.InterfaceDescriptor) *InterfaceState {
	max := desc.EffectiveMaxParams()
	return &InterfaceState{
		PluginName:       pluginName,
		InterfaceName:    desc.Name,
		FuncPtr:          desc.FuncPtr,
		Arity:            desc.Arity,
		MinParams:        desc.MinParams,
		MaxParams:        max,
		Slots:            make([]Slot, max),
		ActualParamCount: max,
		ReturnKind:       desc.ReturnKind,
		ReturnSize:       desc.ReturnSize,
	}
}

// InRange reports whether index is a legal parameter-slot index for this
// interface (spec §4.4.3 step 3: "in range for fixed arity; for variadic,
// any non-negative index is allowed up to max_params").
func (s *InterfaceState) InRange(index int) bool {
	return index >= 0 && index < s.MaxParams
}

// WriteSlot writes value into slot index and marks it ready. The caller is
// responsible for range-checking via InRange first; WriteSlot itself is a
// pure state mutation, so gap detection in LongestReadyPrefix stays
// accurate between separate writes within one dispatch.
func (s *InterfaceState) WriteSlot(index int, value abi.Value) {
	s.Slots[index].Ready = true
	s.Slots[index].Value = value
}

// LongestReadyPrefix returns the length of the longest contiguous prefix
// of ready slots starting at index 0 (spec invariant I5: "no gaps").
func (s *InterfaceState) LongestReadyPrefix() int {
	n := 0
	for _, slot := range s.Slots {
		if !slot.Ready {
			break
		}
		n++
	}
	return n
}

// HasGap reports whether any slot beyond the longest ready prefix is
// ready — the "parameter gap" error condition (spec §4.4.3 step 5, §7
// "Parameter gap").
func (s *InterfaceState) HasGap() bool {
	prefix := s.LongestReadyPrefix()
	for i := prefix; i < len(s.Slots); i++ {
		if s.Slots[i].Ready {
			return true
		}
	}
	return false
}

// FixedReady reports whether every slot in [0, MaxParams) is ready (spec
// invariant I4).
func (s *InterfaceState) FixedReady() bool {
	return s.LongestReadyPrefix() >= s.MaxParams
}

// VariadicReady reports whether the longest ready prefix satisfies the
// minimum required parameter count (spec invariant I5).
func (s *InterfaceState) VariadicReady() bool {
	return s.LongestReadyPrefix() >= s.MinParams
}

// Ready reports overall dispatch readiness per the interface's arity kind.
func (s *InterfaceState) Ready() bool {
	if s.Arity == pluginmodel.ArityVariadic {
		return s.VariadicReady()
	}
	return s.FixedReady()
}

// ReadyParams returns the values of the current ready prefix, suitable for
// passing straight to the FFI caller.
func (s *InterfaceState) ReadyParams() []abi.Value {
	prefix := s.LongestReadyPrefix()
	out := make([]abi.Value, prefix)
	for i := 0; i < prefix; i++ {
		out[i] = s.Slots[i].Value
	}
	return out
}

// Reset clears every slot's readiness and value, preserving the slot
// array itself (spec §4.3: "slots reset after each successful dispatch
// unless a recursive frame suppresses cleanup").
func (s *InterfaceState) Reset() {
	for i := range s.Slots {
		s.Slots[i] = Slot{}
	}
}

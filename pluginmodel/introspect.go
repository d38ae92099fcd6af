package pluginmodel

import (
	"fmt"

	"github.com/nexusplugins/ptengine/abi"
)

// Introspector resolves a plugin's query vtable and reports its identity
// and interface metadata (spec §4.3, "Plugin query vtable"). The six
// operations mirror the six symbols a plugin must export:
// get_name, get_version, get_interface_count, get_interface_info,
// get_interface_param_count, get_interface_param_info.
//
// NewVTableIntrospector resolves these by symbol name through the
// platform layer and calls them via per-signature C trampolines
// (introspect_cgo.go); tests substitute a StaticIntrospector that returns
// canned descriptors, since introspection is ambient plumbing around the
// rule engine's hard core, not part of it.
type Introspector interface {
	Describe(handle interface{}) (PluginDescriptor, error)
}

// StaticIntrospector is a fixed-answer Introspector for tests and for
// hosts that already know a plugin's shape out of band.
type StaticIntrospector struct {
	Descriptors map[interface{}]PluginDescriptor
}

// NewStaticIntrospector returns an empty StaticIntrospector.
func NewStaticIntrospector() *StaticIntrospector {
	return &StaticIntrospector{Descriptors: make(map[interface{}]PluginDescriptor)}
}

// Register associates handle with a pre-built descriptor.
func (s *StaticIntrospector) Register(handle interface{}, desc PluginDescriptor) {
	s.Descriptors[handle] = desc
}

func (s *StaticIntrospector) Describe(handle interface{}) (PluginDescriptor, error) {
	desc, ok := s.Descriptors[handle]
	if !ok {
		return PluginDescriptor{}, fmt.Errorf("pluginmodel: no descriptor registered for handle %v", handle)
	}
	return desc, nil
}

// InferMissingReturnKinds fills in ReturnKind for every interface whose
// kind wasn't explicitly set (still the zero value, ReturnInteger), using
// the description-text inferencer (spec §4.3 "Return-kind inference").
// Call this once after an Introspector returns a descriptor built from raw
// vtable data that doesn't carry an explicit return kind.
func InferMissingReturnKinds(desc *PluginDescriptor) {
	for i := range desc.Interfaces {
		iface := &desc.Interfaces[i]
		if iface.ReturnKind != abi.ReturnInteger {
			continue
		}
		iface.ReturnKind = abi.InferReturnKind(iface.Description)
	}
}

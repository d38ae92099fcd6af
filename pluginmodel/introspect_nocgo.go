//go:build !cgo

package pluginmodel

import (
	"fmt"

	"github.com/nexusplugins/ptengine/platform"
)

// noCgoIntrospector reports an error for every Describe call: without
// cgo there is no ABI-correct way to call a resolved vtable symbol,
// matching ffi.noCgoCaller's story for interface dispatch
// (ffi/caller_nocgo.go).
type noCgoIntrospector struct{}

// NewVTableIntrospector returns the production Introspector for this
// build. Without cgo it always fails; StaticIntrospector remains
// available for hosts/tests that already know a plugin's shape.
func NewVTableIntrospector(platform.Library) Introspector { return noCgoIntrospector{} }

func (noCgoIntrospector) Describe(interface{}) (PluginDescriptor, error) {
	return PluginDescriptor{}, fmt.Errorf("pluginmodel: introspect: dynamic plugin introspection requires cgo")
}

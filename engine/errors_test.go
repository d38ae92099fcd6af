package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/engine"
	"github.com/nexusplugins/ptengine/ffi"
	"github.com/nexusplugins/ptengine/platform"
	"github.com/nexusplugins/ptengine/pluginmodel"
	"github.com/nexusplugins/ptengine/ptconfig"
	"github.com/nexusplugins/ptengine/rules"
)

// failLibrary is a platform.Library whose Load always reports failure,
// used to exercise the ErrPluginLoad path deterministically without
// touching a real shared object.
type failLibrary struct{}

func (failLibrary) Load(string) platform.Handle           { return 0 }
func (failLibrary) Symbol(platform.Handle, string) uintptr { return 0 }
func (failLibrary) Close(platform.Handle)                  {}

func TestUnknownTargetSentinel(t *testing.T) {
	eng, _ := newTestEngine()

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "S", Interface: "e", ParamIndex: 0},
		Target: rules.Target{Plugin: "Ghost", Interface: "x", ParamIndex: 0}, TargetParamValue: "1", Enabled: true,
	})

	ret := eng.TransferPointer("S", "e", 0, nil, abi.TagInt32, "int32", 0)
	require.Equal(t, -1, ret)
	require.ErrorIs(t, eng.LastError(), engine.ErrUnknownTarget)
}

func TestInvalidTargetSentinel(t *testing.T) {
	eng, _ := newTestEngine()
	registerPlugin(t, eng, "T", fixedInterface("x", 1, abi.ReturnInteger, 0))

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "S", Interface: "e", ParamIndex: 0},
		Target: rules.Target{Plugin: "T", Interface: "x", ParamIndex: 5}, TargetParamValue: "1", Enabled: true,
	})

	ret := eng.TransferPointer("S", "e", 0, nil, abi.TagInt32, "int32", 0)
	require.Equal(t, -1, ret)
	require.ErrorIs(t, eng.LastError(), engine.ErrInvalidTarget)
}

func TestReadinessMissSentinel(t *testing.T) {
	eng, caller := newTestEngine()

	var calls int
	ptr := caller.Register(func(params []abi.Value) (ffi.Result, error) { calls++; return ffi.Result{}, nil })
	registerPlugin(t, eng, "T", fixedInterface("x", 2, abi.ReturnInteger, ptr))

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "S", Interface: "e", ParamIndex: 0},
		Target: rules.Target{Plugin: "T", Interface: "x", ParamIndex: 0}, TargetParamValue: "1", Enabled: true,
	})

	ret := eng.TransferPointer("S", "e", 0, nil, abi.TagInt32, "int32", 0)
	require.Equal(t, -1, ret)
	require.Equal(t, 0, calls)
	require.ErrorIs(t, eng.LastError(), engine.ErrReadinessMiss)
}

func TestEnvelopeTooLowSentinel(t *testing.T) {
	eng, caller := newTestEngine()

	var calls int
	ptr := caller.Register(func(params []abi.Value) (ffi.Result, error) { calls++; return ffi.Result{}, nil })
	params := make([]pluginmodel.ParamDecl, 2)
	for i := range params {
		params[i] = pluginmodel.ParamDecl{Tag: abi.TagInt32}
	}
	registerPlugin(t, eng, "T", pluginmodel.InterfaceDescriptor{
		Name: "x", Arity: pluginmodel.ArityVariadic, MinParams: 5, MaxParams: 2,
		Params: params, ReturnKind: abi.ReturnInteger, FuncPtr: ptr,
	})

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "S", Interface: "e", ParamIndex: 0},
		Target: rules.Target{Plugin: "T", Interface: "x", ParamIndex: 0}, TargetParamValue: "1", Enabled: true,
	})

	ret := eng.TransferPointer("S", "e", 0, nil, abi.TagInt32, "int32", 0)
	require.Equal(t, -1, ret)
	require.Equal(t, 0, calls)
	require.ErrorIs(t, eng.LastError(), engine.ErrEnvelopeTooLow)
}

func TestPluginLoadSentinel(t *testing.T) {
	caller := ffi.NewFakeCaller()
	eng := engine.New(failLibrary{}, pluginmodel.NewStaticIntrospector(), caller, ptconfig.Default())

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "S", Interface: "e", ParamIndex: 0},
		Target: rules.Target{Plugin: "Ghost", Interface: "x", ParamIndex: 0, PluginPath: "/nonexistent.so"}, TargetParamValue: "1", Enabled: true,
	})

	ret := eng.TransferPointer("S", "e", 0, nil, abi.TagInt32, "int32", 0)
	require.Equal(t, -1, ret)
	require.ErrorIs(t, eng.LastError(), engine.ErrPluginLoad)
}

package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/engine"
	"github.com/nexusplugins/ptengine/ffi"
	"github.com/nexusplugins/ptengine/pluginmodel"
	"github.com/nexusplugins/ptengine/ptconfig"
	"github.com/nexusplugins/ptengine/rules"
)

func newTestEngine() (*engine.Engine, *ffi.FakeCaller) {
	caller := ffi.NewFakeCaller()
	eng := engine.New(nil, pluginmodel.NewStaticIntrospector(), caller, ptconfig.Default())
	return eng, caller
}

func registerPlugin(t *testing.T, eng *engine.Engine, name string, interfaces ...pluginmodel.InterfaceDescriptor) {
	t.Helper()
	require.NoError(t, eng.Plugins.RegisterPreloaded(pluginmodel.PluginDescriptor{
		Name:       name,
		Version:    "1.0",
		Interfaces: interfaces,
	}))
}

func fixedInterface(name string, n int, ret abi.ReturnKind, funcPtr uintptr) pluginmodel.InterfaceDescriptor {
	params := make([]pluginmodel.ParamDecl, n)
	for i := range params {
		params[i] = pluginmodel.ParamDecl{Tag: abi.TagInt32}
	}
	return pluginmodel.InterfaceDescriptor{
		Name: name, Arity: pluginmodel.ArityFixed, MinParams: n, MaxParams: n,
		Params: params, ReturnKind: ret, FuncPtr: funcPtr,
	}
}

// Scenario 1 (spec §8): Starter.Start[ret] feeds two literals into
// Add.Add's slots; Add's return feeds Format.FormatDouble.
func TestScenarioSimpleTwoArgAdd(t *testing.T) {
	eng, caller := newTestEngine()

	addPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) {
		sum := params[0].Int32 + params[1].Int32
		return ffi.Result{Double: float64(sum)}, nil
	})
	var formatted []abi.Value
	fmtPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) {
		formatted = append(formatted, params[0])
		return ffi.Result{Int: 0}, nil
	})

	registerPlugin(t, eng, "Add", fixedInterface("Add", 2, abi.ReturnDouble, addPtr))
	registerPlugin(t, eng, "Format", pluginmodel.InterfaceDescriptor{
		Name: "FormatDouble", Arity: pluginmodel.ArityFixed, MinParams: 1, MaxParams: 1,
		Params: []pluginmodel.ParamDecl{{Tag: abi.TagDouble}}, ReturnKind: abi.ReturnInteger, FuncPtr: fmtPtr,
	})

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "Starter", Interface: "Start", ParamIndex: rules.SourceReturnIndex},
		Target: rules.Target{Plugin: "Add", Interface: "Add", ParamIndex: 0}, TargetParamValue: "3", Enabled: true,
	})
	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "Starter", Interface: "Start", ParamIndex: rules.SourceReturnIndex},
		Target: rules.Target{Plugin: "Add", Interface: "Add", ParamIndex: 1}, TargetParamValue: "4", Enabled: true,
	})
	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "Add", Interface: "Add", ParamIndex: rules.SourceReturnIndex},
		Target: rules.Target{Plugin: "Format", Interface: "FormatDouble", ParamIndex: 0}, Enabled: true,
	})

	ret := eng.CallPlugin("Starter", "Start", rules.SourceReturnIndex, abi.Value{})
	require.Equal(t, 0, ret)

	calls := caller.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, addPtr, calls[0].FuncPtr)
	require.Equal(t, int32(3), calls[0].Params[0].Int32)
	require.Equal(t, int32(4), calls[0].Params[1].Int32)
	require.Equal(t, fmtPtr, calls[1].FuncPtr)
	require.Len(t, formatted, 1)
	require.Equal(t, 7.0, formatted[0].Double)
}

// Scenario 2 (spec §8): a SetGroup atomically fills two slots of the same
// target from two independent fresh re-invocations of the source, firing
// the target exactly once. SetGroup grouping is only exercised on the
// return-value fan-out path (spec §4.4.4), so Src.f is reached as the
// target of an ordinary unicast rule first, not via a direct top-level
// trigger.
func TestScenarioSetGroupAtomicWrite(t *testing.T) {
	eng, caller := newTestEngine()

	var srcCalls int32
	srcPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) {
		srcCalls++
		return ffi.Result{Int: int64(srcCalls)}, nil
	})
	var tgtCalls int
	var lastParams []abi.Value
	tgtPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) {
		tgtCalls++
		lastParams = append([]abi.Value(nil), params...)
		return ffi.Result{}, nil
	})

	registerPlugin(t, eng, "Src", fixedInterface("f", 1, abi.ReturnInteger, srcPtr))
	registerPlugin(t, eng, "Tgt", fixedInterface("g", 2, abi.ReturnInteger, tgtPtr))

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "Driver", Interface: "kick", ParamIndex: 0},
		Target: rules.Target{Plugin: "Src", Interface: "f", ParamIndex: 0}, TargetParamValue: "0", Enabled: true,
	})
	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "Src", Interface: "f", ParamIndex: rules.SourceReturnIndex},
		Target: rules.Target{Plugin: "Tgt", Interface: "g", ParamIndex: 0}, SetGroup: "p", Enabled: true,
	})
	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "Src", Interface: "f", ParamIndex: rules.SourceReturnIndex},
		Target: rules.Target{Plugin: "Tgt", Interface: "g", ParamIndex: 1}, SetGroup: "p", Enabled: true,
	})

	ret := eng.TransferPointer("Driver", "kick", 0, nil, abi.TagInt32, "int32", 0)
	require.Equal(t, 0, ret)
	require.Equal(t, int32(3), srcCalls)
	require.Equal(t, 1, tgtCalls)
	require.Len(t, lastParams, 2)
	require.Equal(t, int64(2), lastParams[0].Int())
	require.Equal(t, int64(3), lastParams[1].Int())

	st, ok := eng.States.Find("Tgt", "g")
	require.True(t, ok)
	require.False(t, st.Slots[0].Ready)
	require.False(t, st.Slots[1].Ready)
}

// Scenario 3 (spec §8): broadcast fan-out to two independent targets.
func TestScenarioBroadcastFanout(t *testing.T) {
	eng, caller := newTestEngine()

	var aCalls, bCalls int
	aPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) { aCalls++; return ffi.Result{}, nil })
	bPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) { bCalls++; return ffi.Result{}, nil })

	registerPlugin(t, eng, "A", fixedInterface("recv", 1, abi.ReturnInteger, aPtr))
	registerPlugin(t, eng, "B", fixedInterface("recv", 1, abi.ReturnInteger, bPtr))

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "Src", Interface: "ev", ParamIndex: 0},
		Target: rules.Target{Plugin: "A", Interface: "recv", ParamIndex: 0}, Mode: rules.ModeBroadcast, Enabled: true,
	})
	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "Src", Interface: "ev", ParamIndex: 0},
		Target: rules.Target{Plugin: "B", Interface: "recv", ParamIndex: 0}, Mode: rules.ModeBroadcast, Enabled: true,
	})

	ret := eng.TransferPointer("Src", "ev", 0, nil, abi.TagInt32, "int32", 0)
	require.Equal(t, 0, ret)
	require.Equal(t, 1, aCalls)
	require.Equal(t, 1, bCalls)
}

// Scenario 4 (spec §8): two unicast rules targeting the identical slot —
// only the later rule fires. A second, differently-targeted rule fires
// unconditionally alongside it.
func TestScenarioUnicastTieBreak(t *testing.T) {
	eng, caller := newTestEngine()

	var xCalls, yCalls int
	var lastX int32
	xPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) {
		xCalls++
		lastX = params[0].Int32
		return ffi.Result{}, nil
	})
	yPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) { yCalls++; return ffi.Result{}, nil })

	registerPlugin(t, eng, "T", fixedInterface("x", 1, abi.ReturnInteger, xPtr), fixedInterface("y", 1, abi.ReturnInteger, yPtr))

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "S", Interface: "e", ParamIndex: 0},
		Target: rules.Target{Plugin: "T", Interface: "x", ParamIndex: 0}, TargetParamValue: "1", Enabled: true,
	})
	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "S", Interface: "e", ParamIndex: 0},
		Target: rules.Target{Plugin: "T", Interface: "x", ParamIndex: 0}, TargetParamValue: "2", Enabled: true,
	})
	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "S", Interface: "e", ParamIndex: 0},
		Target: rules.Target{Plugin: "T", Interface: "y", ParamIndex: 0}, TargetParamValue: "9", Enabled: true,
	})

	ret := eng.TransferPointer("S", "e", 0, nil, abi.TagInt32, "int32", 0)
	require.Equal(t, 0, ret)
	require.Equal(t, 1, xCalls)
	require.Equal(t, int32(2), lastX)
	require.Equal(t, 1, yCalls)
}

// Scenario 5 (spec §8): A.f calls B.g which calls back into A.f; the
// second A.f entry is rejected as a cycle, and the top-level call still
// reports success because one rule succeeded.
func TestScenarioCycleRejection(t *testing.T) {
	eng, caller := newTestEngine()

	var gCalls int
	fPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) { return ffi.Result{Int: 1}, nil })
	gPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) { gCalls++; return ffi.Result{Int: 1}, nil })

	registerPlugin(t, eng, "A", fixedInterface("f", 1, abi.ReturnInteger, fPtr))
	registerPlugin(t, eng, "B", fixedInterface("g", 1, abi.ReturnInteger, gPtr))

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "A", Interface: "f", ParamIndex: rules.SourceReturnIndex},
		Target: rules.Target{Plugin: "B", Interface: "g", ParamIndex: 0}, TargetParamValue: "1", Enabled: true,
	})
	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "B", Interface: "g", ParamIndex: rules.SourceReturnIndex},
		Target: rules.Target{Plugin: "A", Interface: "f", ParamIndex: 0}, TargetParamValue: "1", Enabled: true,
	})

	ret := eng.CallPlugin("A", "f", rules.SourceReturnIndex, abi.Int32Value(1))
	require.Equal(t, 0, ret)
	require.Equal(t, 1, gCalls)
	require.ErrorIs(t, eng.LastError(), engine.ErrCycleDetected)
}

// Scenario 6 (spec §8): a variadic interface with min=1,max=8 has slot 3
// written before slots 0..2 — dispatch must abort on the gap without
// calling the target.
func TestScenarioVariadicGap(t *testing.T) {
	eng, caller := newTestEngine()

	var vCalls int
	vPtr := caller.Register(func(params []abi.Value) (ffi.Result, error) { vCalls++; return ffi.Result{}, nil })

	params := make([]pluginmodel.ParamDecl, 8)
	for i := range params {
		params[i] = pluginmodel.ParamDecl{Tag: abi.TagInt32}
	}
	registerPlugin(t, eng, "Plug", pluginmodel.InterfaceDescriptor{
		Name: "V", Arity: pluginmodel.ArityVariadic, MinParams: 1, MaxParams: 8,
		Params: params, ReturnKind: abi.ReturnInteger, FuncPtr: vPtr,
	})

	eng.AddRule(rules.TransferRule{
		Source: rules.Endpoint{Plugin: "S", Interface: "e", ParamIndex: 0},
		Target: rules.Target{Plugin: "Plug", Interface: "V", ParamIndex: 3}, TargetParamValue: "9", Enabled: true,
	})

	ret := eng.TransferPointer("S", "e", 0, nil, abi.TagInt32, "int32", 0)
	require.Equal(t, -1, ret)
	require.Equal(t, 0, vCalls)
	require.ErrorIs(t, eng.LastError(), engine.ErrParameterGap)
}

func TestSnapshotListsLoadedPlugins(t *testing.T) {
	eng, _ := newTestEngine()
	registerPlugin(t, eng, "Add", fixedInterface("Add", 2, abi.ReturnInteger, 1))

	snap := eng.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "Add", snap[0].Name)
	require.Equal(t, []string{"Add"}, snap[0].Interfaces)
}

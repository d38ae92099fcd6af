package state_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/pluginmodel"
	"github.com/nexusplugins/ptengine/state"
)

func fixedDesc(n int) pluginmodel.InterfaceDescriptor {
	return pluginmodel.InterfaceDescriptor{
		Name:      "Add",
		Arity:     pluginmodel.ArityFixed,
		MinParams: n,
		MaxParams: n,
	}
}

func variadicDesc(min, capParams int) pluginmodel.InterfaceDescriptor {
	return pluginmodel.InterfaceDescriptor{
		Name:      "Format",
		Arity:     pluginmodel.ArityVariadic,
		MinParams: min,
		MaxParams: capParams,
		Params:    make([]pluginmodel.ParamDecl, capParams),
	}
}

func TestFixedReadyRequiresAllSlots(t *testing.T) {
	st := state.NewInterfaceState("math", fixedDesc(2))
	require.False(t, st.Ready())

	st.WriteSlot(0, abi.Int32Value(1))
	require.False(t, st.Ready())

	st.WriteSlot(1, abi.Int32Value(2))
	require.True(t, st.Ready())
	require.False(t, st.HasGap())
}

func TestVariadicReadyOnMinPrefix(t *testing.T) {
	st := state.NewInterfaceState("fmt", variadicDesc(1, 4))
	require.False(t, st.Ready())

	st.WriteSlot(0, abi.Int32Value(1))
	require.True(t, st.Ready())

	params := st.ReadyParams()
	require.Len(t, params, 1)
}

func TestGapDetected(t *testing.T) {
	st := state.NewInterfaceState("math", fixedDesc(3))
	st.WriteSlot(0, abi.Int32Value(1))
	st.WriteSlot(2, abi.Int32Value(3))

	require.Equal(t, 1, st.LongestReadyPrefix())
	require.True(t, st.HasGap())
	require.False(t, st.Ready())
}

func TestInRangeRespectsMaxParams(t *testing.T) {
	st := state.NewInterfaceState("math", fixedDesc(2))
	require.True(t, st.InRange(0))
	require.True(t, st.InRange(1))
	require.False(t, st.InRange(2))
	require.False(t, st.InRange(-1))
}

func TestResetClearsSlots(t *testing.T) {
	st := state.NewInterfaceState("math", fixedDesc(2))
	st.WriteSlot(0, abi.Int32Value(1))
	st.WriteSlot(1, abi.Int32Value(2))
	require.True(t, st.Ready())

	st.Reset()
	require.False(t, st.Ready())
	require.Equal(t, 0, st.LongestReadyPrefix())
}

func TestEffectiveMaxParamsFromUnboundedVariadic(t *testing.T) {
	desc := pluginmodel.InterfaceDescriptor{
		Arity:     pluginmodel.ArityVariadic,
		MinParams: 1,
		MaxParams: pluginmodel.MaxParamsUnbounded,
		Params:    make([]pluginmodel.ParamDecl, 6),
	}
	st := state.NewInterfaceState("fmt", desc)
	require.Equal(t, 6, st.MaxParams)
	require.Len(t, st.Slots, 6)
}

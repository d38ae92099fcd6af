package rules_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/rules"
)

func TestAlwaysTrue(t *testing.T) {
	require.True(t, rules.AlwaysTrue{}.Evaluate(abi.Int32Value(0)))
	require.True(t, rules.AlwaysTrue{}.Evaluate(abi.Int32Value(42)))
}

func TestFuncCondition(t *testing.T) {
	even := rules.Func(func(v abi.Value) bool { return v.Int()%2 == 0 })
	require.True(t, even.Evaluate(abi.Int32Value(4)))
	require.False(t, even.Evaluate(abi.Int32Value(3)))
}

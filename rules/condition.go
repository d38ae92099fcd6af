package rules

import "github.com/nexusplugins/ptengine/abi"

// Condition is a pure boolean predicate over the value currently being
// propagated (spec §4.4.6). The engine treats it as an opaque external
// collaborator — evaluation must never have side effects.
type Condition interface {
	Evaluate(value abi.Value) bool
}

// AlwaysTrue is the trivial default Condition: an unset or empty
// condition always evaluates to true (spec §4.4.6).
type AlwaysTrue struct{}

func (AlwaysTrue) Evaluate(abi.Value) bool { return true }

// Func adapts a plain function to the Condition interface.
type Func func(value abi.Value) bool

func (f Func) Evaluate(value abi.Value) bool { return f(value) }

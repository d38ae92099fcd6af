package ffi

import (
	"fmt"
	"sync"

	"github.com/nexusplugins/ptengine/abi"
)

// FakeFunc is an in-process stand-in for a loaded plugin function, used by
// engine tests so the rule-matching and dispatch logic can be exercised
// without compiling and dlopen-ing real shared objects.
type FakeFunc func(params []abi.Value) (Result, error)

// FakeCaller is a Caller backed by an in-process registry of FakeFuncs
// keyed by a synthetic "address" (see FakeCaller.Register). It implements
// the same Caller interface the cgo caller does, so engine code under test
// is identical to production code; only the Caller implementation swaps.
type FakeCaller struct {
	mu      sync.Mutex
	next    uintptr
	funcs   map[uintptr]FakeFunc
	calls   []FakeCall
	recordN int
}

// FakeCall records one observed invocation, for assertions in tests.
type FakeCall struct {
	FuncPtr uintptr
	Params  []abi.Value
	Shape   ReturnShape
}

// NewFakeCaller returns an empty FakeCaller.
func NewFakeCaller() *FakeCaller {
	return &FakeCaller{funcs: make(map[uintptr]FakeFunc)}
}

// Register allocates a synthetic function pointer for fn and returns it.
// Use the returned value wherever the engine expects a resolved symbol
// address.
func (f *FakeCaller) Register(fn FakeFunc) uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ptr := f.next
	f.funcs[ptr] = fn
	return ptr
}

// Calls returns every invocation observed so far, in order.
func (f *FakeCaller) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeCaller) Invoke(funcPtr uintptr, params []abi.Value, shape ReturnShape) (Result, error) {
	if err := Validate(funcPtr, params, shape); err != nil {
		return Result{}, err
	}
	f.mu.Lock()
	fn, ok := f.funcs[funcPtr]
	f.calls = append(f.calls, FakeCall{FuncPtr: funcPtr, Params: append([]abi.Value(nil), params...), Shape: shape})
	f.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("ffi: fake: no function registered for pointer %d", funcPtr)
	}
	res, err := fn(params)
	res.Kind = shape.Kind
	return res, err
}

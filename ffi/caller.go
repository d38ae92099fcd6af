// Package ffi implements the dynamic call layer (spec §4.2): given a
// resolved function pointer, an ordered list of typed parameter values, and
// a declared return shape, it marshals those values into the plugin ABI's
// parameter-pack layout, performs the call, and captures the return value.
package ffi

import (
	"errors"
	"unsafe"

	"github.com/nexusplugins/ptengine/abi"
)

// Errors returned by Caller implementations for the validation failures
// enumerated in spec §4.2 ("Input constraints").
var (
	ErrNilFunc          = errors.New("ffi: function pointer is nil")
	ErrUnknownTag       = errors.New("ffi: parameter type tag out of range")
	ErrMissingSize      = errors.New("ffi: pointer/string/any value missing known size")
	ErrMissingStructBuf = errors.New("ffi: struct-by-value return requires a non-zero return size")
	ErrUnavailable      = errors.New("ffi: dynamic calling unavailable on this build")
)

// ReturnShape declares how a call's return value should be captured.
type ReturnShape struct {
	Kind abi.ReturnKind
	// Size is the struct size in bytes, meaningful only when
	// Kind == abi.ReturnStructByValue.
	Size int
}

// Result is the tagged outcome of a dynamic call.
type Result struct {
	Kind   abi.ReturnKind
	Int    int64
	Float  float32
	Double float64
	// Ptr holds the returned address for ReturnPointerOrStructPtr.
	Ptr uintptr
	// Struct holds the by-value aggregate for ReturnStructByValue, owned
	// by the caller of Invoke and valid until the next call on the same
	// Caller.
	Struct []byte
}

// AsValue reifies the result as an abi.Value so it can be threaded back
// into the rule engine as a propagated parameter (spec §4.4.4 "pack the
// return value per its kind").
func (r Result) AsValue() abi.Value {
	switch r.Kind {
	case abi.ReturnFloat:
		return abi.FloatValue(r.Float)
	case abi.ReturnDouble:
		return abi.DoubleValue(r.Double)
	case abi.ReturnPointerOrStructPtr:
		return abi.Value{Tag: abi.TagPointer, Ptr: unsafe.Pointer(uintptr(r.Ptr))}
	case abi.ReturnStructByValue:
		var ptr unsafe.Pointer
		if len(r.Struct) > 0 {
			ptr = unsafe.Pointer(&r.Struct[0])
		}
		return abi.Value{Tag: abi.TagPointer, Ptr: ptr, Size: uintptr(len(r.Struct))}
	default:
		return abi.IntValue(r.Int)
	}
}

// Caller performs ABI-correct dynamic calls. funcPtr is opaque to the rule
// engine: on real builds it is a resolved symbol address (platform.Handle
// symbol); in tests it may be any stand-in key a fake implementation
// understands.
type Caller interface {
	Invoke(funcPtr uintptr, params []abi.Value, shape ReturnShape) (Result, error)
}

// Validate applies the static input-constraint checks spec §4.2 requires
// before any call is attempted. Shared by every Caller implementation so
// the validation rules stay in one place.
func Validate(funcPtr uintptr, params []abi.Value, shape ReturnShape) error {
	if funcPtr == 0 {
		return ErrNilFunc
	}
	for _, p := range params {
		switch p.Tag {
		case abi.TagVoid, abi.TagInt32, abi.TagInt64, abi.TagFloat, abi.TagDouble, abi.TagChar:
			// Scalars carry their value inline; no size requirement.
		case abi.TagString, abi.TagPointer, abi.TagAny:
			if p.Ptr != nil && p.Size == 0 && p.Tag != abi.TagAny {
				return ErrMissingSize
			}
		case abi.TagVariadicMarker:
			// Declaration-only tag; never a valid runtime parameter value.
			return ErrUnknownTag
		default:
			return ErrUnknownTag
		}
	}
	if shape.Kind == abi.ReturnStructByValue && shape.Size <= 0 {
		return ErrMissingStructBuf
	}
	return nil
}

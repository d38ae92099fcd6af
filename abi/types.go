// Package abi defines the wire-level vocabulary the rule engine and the
// dynamic FFI caller share: parameter type tags, the tagged Value variant
// that replaces the source's void*+tag+size triples, and return-kind
// inference.
package abi

import (
	"strings"
	"unsafe"
)

// ParamTag is the closed enumeration of parameter/return slot types
// (spec §3, "Parameter type tag").
type ParamTag int32

const (
	TagVoid ParamTag = iota
	TagInt32
	TagInt64
	TagFloat
	TagDouble
	TagChar
	TagString
	TagPointer
	TagAny
	TagVariadicMarker
	TagUnknown
)

func (t ParamTag) String() string {
	switch t {
	case TagVoid:
		return "void"
	case TagInt32:
		return "int32"
	case TagInt64:
		return "int64"
	case TagFloat:
		return "float"
	case TagDouble:
		return "double"
	case TagChar:
		return "char"
	case TagString:
		return "string"
	case TagPointer:
		return "pointer"
	case TagAny:
		return "any"
	case TagVariadicMarker:
		return "variadic_marker"
	default:
		return "unknown"
	}
}

// ReturnKind is the ABI shape of a function's return value.
type ReturnKind int32

const (
	ReturnInteger ReturnKind = iota
	ReturnFloat
	ReturnDouble
	ReturnPointerOrStructPtr
	ReturnStructByValue
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnInteger:
		return "integer"
	case ReturnFloat:
		return "float"
	case ReturnDouble:
		return "double"
	case ReturnPointerOrStructPtr:
		return "pointer_or_struct_ptr"
	case ReturnStructByValue:
		return "struct_by_value"
	default:
		return "unknown"
	}
}

// structByValueThreshold returns the byte threshold above which a
// pointer/struct-ptr return is lowered to a caller-allocated struct-by-value
// buffer, per platform (spec §3: >8 bytes on Windows, >16 elsewhere).
func structByValueThreshold(windows bool) int {
	if windows {
		return 8
	}
	return 16
}

// PromoteReturnKind applies the Windows/Unix size promotion rule: a
// pointer_or_struct_ptr return whose declared size exceeds the platform
// threshold becomes struct_by_value.
func PromoteReturnKind(kind ReturnKind, size int, windows bool) ReturnKind {
	if kind == ReturnPointerOrStructPtr && size > structByValueThreshold(windows) {
		return ReturnStructByValue
	}
	return kind
}

// InferReturnKind implements the best-effort, substring-based return-kind
// inferencer described in spec §4.3 ("Return-kind inference"). It is
// intentionally fragile: a wrong inference is contained to dispatch
// failures for that one interface, never a crash (spec open question,
// §9: "Prefer explicit metadata if the plugin ABI can be extended").
func InferReturnKind(description string) ReturnKind {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "returns string pointer"),
		strings.Contains(d, "struct"),
		strings.Contains(d, "pointer"):
		return ReturnPointerOrStructPtr
	case strings.Contains(d, "double"):
		return ReturnDouble
	case strings.Contains(d, "float"):
		return ReturnFloat
	default:
		return ReturnInteger
	}
}

// Value is the tagged variant that stands in for the source's
// untyped void* + runtime tag + size triples (spec §9 design note). Upper
// layers (rule engine, slot state machine) consume only Value; the dynamic
// FFI layer is the one place that unpacks it back into raw bytes for the
// ABI call.
type Value struct {
	Tag ParamTag

	Int32  int32
	Int64  int64
	Float  float32
	Double float64
	Char   byte

	// Ptr holds the address for String/Pointer/Any values. For String it
	// points at NUL-terminated bytes; Size is then the string's byte
	// length excluding the terminator. ffi.Validate rejects a non-nil
	// String or Pointer value whose Size is 0; only Any may leave it 0.
	Ptr  unsafe.Pointer
	Size uintptr
}

// Int returns the value's integer interpretation, used when shadowing a
// return value of kind ReturnInteger or ReturnPointerOrStructPtr into a
// later parameter slot.
func (v Value) Int() int64 {
	switch v.Tag {
	case TagInt32:
		return int64(v.Int32)
	case TagInt64:
		return v.Int64
	case TagPointer, TagAny, TagString:
		return int64(uintptr(v.Ptr))
	default:
		return v.Int64
	}
}

// IntValue builds a Value carrying a 64-bit integer.
func IntValue(i int64) Value { return Value{Tag: TagInt64, Int64: i} }

// Int32Value builds a Value carrying a 32-bit integer.
func Int32Value(i int32) Value { return Value{Tag: TagInt32, Int32: i} }

// FloatValue builds a Value carrying a 32-bit float.
func FloatValue(f float32) Value { return Value{Tag: TagFloat, Float: f} }

// DoubleValue builds a Value carrying a 64-bit float.
func DoubleValue(f float64) Value { return Value{Tag: TagDouble, Double: f} }

// PointerValue builds a Value carrying an opaque pointer of the given size.
func PointerValue(ptr unsafe.Pointer, size uintptr) Value {
	return Value{Tag: TagPointer, Ptr: ptr, Size: size}
}

// AnyValue builds a Value matching any declared parameter type.
func AnyValue(ptr unsafe.Pointer, size uintptr) Value {
	return Value{Tag: TagAny, Ptr: ptr, Size: size}
}

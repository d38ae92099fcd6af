package engine

import (
	"fmt"
	"strconv"
	"unsafe"

	"github.com/nexusplugins/ptengine/abi"
)

// parseLiteral parses a rule's target_param_value constant string per the
// target slot's declared type tag (spec §4.4.3 step 3). A literal targeting
// a pointer-typed slot is parsed as an integer address (spec §8, boundary
// case).
func parseLiteral(tag abi.ParamTag, literal string) (abi.Value, error) {
	switch tag {
	case abi.TagInt32:
		n, err := strconv.ParseInt(literal, 10, 32)
		if err != nil {
			return abi.Value{}, fmt.Errorf("engine: parse int32 literal %q: %w", literal, err)
		}
		return abi.Int32Value(int32(n)), nil

	case abi.TagInt64:
		n, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return abi.Value{}, fmt.Errorf("engine: parse int64 literal %q: %w", literal, err)
		}
		return abi.IntValue(n), nil

	case abi.TagFloat:
		f, err := strconv.ParseFloat(literal, 32)
		if err != nil {
			return abi.Value{}, fmt.Errorf("engine: parse float literal %q: %w", literal, err)
		}
		return abi.FloatValue(float32(f)), nil

	case abi.TagDouble:
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return abi.Value{}, fmt.Errorf("engine: parse double literal %q: %w", literal, err)
		}
		return abi.DoubleValue(f), nil

	case abi.TagChar:
		if len(literal) == 0 {
			return abi.Value{}, fmt.Errorf("engine: empty char literal")
		}
		return abi.Value{Tag: abi.TagChar, Char: literal[0]}, nil

	case abi.TagString:
		buf := append([]byte(literal), 0)
		return abi.Value{Tag: abi.TagString, Ptr: unsafe.Pointer(&buf[0]), Size: uintptr(len(literal))}, nil

	case abi.TagPointer, abi.TagAny:
		n, err := strconv.ParseUint(literal, 0, 64)
		if err != nil {
			return abi.Value{}, fmt.Errorf("engine: parse pointer literal %q: %w", literal, err)
		}
		return abi.PointerValue(unsafe.Pointer(uintptr(n)), 0), nil

	default:
		return abi.Value{}, fmt.Errorf("engine: literal not supported for tag %s", tag)
	}
}

//go:build cgo

package ffi

/*
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

// Mirrors spec §4.2's parameter-pack layout exactly:
//   PACK:        { int32 param_count; ptr -> SLOT[] params; }
//   SLOT (24B):  { type_tag: int32; padding; size: usize; value_union: 8B }
typedef struct {
	int32_t  type_tag;
	int32_t  _padding;
	uint64_t size;
	union {
		int32_t  i32;
		int64_t  i64;
		float    f32;
		double   f64;
		uint8_t  ch;
		void*    ptr;
	} value;
} pt_slot_t;

typedef struct {
	int32_t    param_count;
	int32_t    _padding;
	pt_slot_t* params;
} pt_pack_t;

// One C function-pointer type + trampoline per return kind, since the
// plugin ABI mandates every interface function takes exactly one argument
// (a pointer to the pack) and returns one of a small set of shapes.
typedef int64_t (*pt_call_int_fn)(void*);
typedef float   (*pt_call_float_fn)(void*);
typedef double  (*pt_call_double_fn)(void*);
typedef void*   (*pt_call_ptr_fn)(void*);
// Struct-by-value return: the caller passes a hidden result-buffer pointer
// as the first argument, matching the platform's default aggregate
// calling convention (SysV x86-64 / AArch64 / Win64 all pass a hidden
// pointer for MEMORY-class returns).
typedef void*   (*pt_call_struct_fn)(void*, void*);

static int64_t pt_invoke_int(void* fn, void* pack) {
	return ((pt_call_int_fn)fn)(pack);
}
static float pt_invoke_float(void* fn, void* pack) {
	return ((pt_call_float_fn)fn)(pack);
}
static double pt_invoke_double(void* fn, void* pack) {
	return ((pt_call_double_fn)fn)(pack);
}
static void* pt_invoke_ptr(void* fn, void* pack) {
	return ((pt_call_ptr_fn)fn)(pack);
}
static void pt_invoke_struct(void* fn, void* ret_buf, void* pack) {
	((pt_call_struct_fn)fn)(ret_buf, pack);
}
*/
import "C"

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/ptlog"
)

// cgoCaller is the dynamic-call layer's production implementation: it
// builds a C-ABI parameter pack, casts the resolved symbol address into a
// typed C function pointer and invokes it through the matching trampoline.
type cgoCaller struct{}

// NewCaller returns the platform's production Caller.
func NewCaller() Caller { return cgoCaller{} }

func (cgoCaller) Invoke(funcPtr uintptr, params []abi.Value, shape ReturnShape) (Result, error) {
	if err := Validate(funcPtr, params, shape); err != nil {
		ptlog.L().Warn("ffi: validation failed", zap.Error(err))
		return Result{}, err
	}

	pack, free := buildPack(params)
	defer free()

	fn := unsafe.Pointer(uintptr(funcPtr))
	packPtr := unsafe.Pointer(pack)

	switch shape.Kind {
	case abi.ReturnInteger, abi.ReturnPointerOrStructPtr:
		r := C.pt_invoke_int(fn, packPtr)
		return Result{Kind: shape.Kind, Int: int64(r), Ptr: uintptr(r)}, nil
	case abi.ReturnFloat:
		r := C.pt_invoke_float(fn, packPtr)
		return Result{Kind: shape.Kind, Float: float32(r)}, nil
	case abi.ReturnDouble:
		r := C.pt_invoke_double(fn, packPtr)
		return Result{Kind: shape.Kind, Double: float64(r)}, nil
	case abi.ReturnStructByValue:
		buf := C.malloc(C.size_t(shape.Size))
		if buf == nil {
			return Result{}, ErrMissingStructBuf
		}
		defer C.free(buf)
		C.memset(buf, 0, C.size_t(shape.Size))
		C.pt_invoke_struct(fn, buf, packPtr)
		out := C.GoBytes(buf, C.int(shape.Size))
		return Result{Kind: shape.Kind, Struct: out}, nil
	default:
		return Result{}, ErrUnknownTag
	}
}

// buildPack marshals params into a freshly C-allocated pt_pack_t and
// returns a release function the caller must defer.
func buildPack(params []abi.Value) (*C.pt_pack_t, func()) {
	n := len(params)
	pack := (*C.pt_pack_t)(C.malloc(C.size_t(unsafe.Sizeof(C.pt_pack_t{}))))
	pack.param_count = C.int32_t(n)

	var slots *C.pt_slot_t
	if n > 0 {
		slots = (*C.pt_slot_t)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(C.pt_slot_t{}))))
		slotSlice := unsafe.Slice(slots, n)
		for i, p := range params {
			slot := &slotSlice[i]
			slot.type_tag = C.int32_t(p.Tag)
			slot.size = C.uint64_t(p.Size)
			switch p.Tag {
			case abi.TagInt32:
				*(*C.int32_t)(unsafe.Pointer(&slot.value)) = C.int32_t(p.Int32)
			case abi.TagInt64:
				*(*C.int64_t)(unsafe.Pointer(&slot.value)) = C.int64_t(p.Int64)
			case abi.TagFloat:
				*(*C.float)(unsafe.Pointer(&slot.value)) = C.float(p.Float)
			case abi.TagDouble:
				*(*C.double)(unsafe.Pointer(&slot.value)) = C.double(p.Double)
			case abi.TagChar:
				*(*C.uint8_t)(unsafe.Pointer(&slot.value)) = C.uint8_t(p.Char)
			case abi.TagString, abi.TagPointer, abi.TagAny:
				*(*unsafe.Pointer)(unsafe.Pointer(&slot.value)) = p.Ptr
			}
		}
	}
	pack.params = slots

	free := func() {
		if slots != nil {
			C.free(unsafe.Pointer(slots))
		}
		C.free(unsafe.Pointer(pack))
	}
	return pack, free
}

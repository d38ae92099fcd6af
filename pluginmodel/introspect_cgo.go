//go:build cgo

package pluginmodel

/*
#include <stdint.h>
#include <string.h>

// Mirrors the six query-vtable symbols a plugin must export (spec §4.3,
// §6). Every signature follows the ABI's caller-allocates-buffers
// convention: the host passes a buffer and its capacity, the plugin
// writes a NUL-terminated string into it (truncating if necessary) or an
// out-parameter it fills in directly.
typedef void (*pt_get_buf_fn)(char*, int32_t);
typedef void (*pt_get_interface_count_fn)(int32_t*);
typedef void (*pt_get_interface_info_fn)(int32_t, char*, int32_t, char*, int32_t, char*, int32_t);
typedef void (*pt_get_param_count_fn)(int32_t, int32_t*, int32_t*, int32_t*);
typedef void (*pt_get_param_info_fn)(int32_t, int32_t, char*, int32_t, int32_t*, char*, int32_t);

static void pt_invoke_get_buf(void* fn, char* buf, int32_t size) {
	((pt_get_buf_fn)fn)(buf, size);
}
static void pt_invoke_get_interface_count(void* fn, int32_t* count) {
	((pt_get_interface_count_fn)fn)(count);
}
static void pt_invoke_get_interface_info(void* fn, int32_t idx,
		char* name_buf, int32_t name_n, char* desc_buf, int32_t desc_n, char* ver_buf, int32_t ver_n) {
	((pt_get_interface_info_fn)fn)(idx, name_buf, name_n, desc_buf, desc_n, ver_buf, ver_n);
}
static void pt_invoke_get_param_count(void* fn, int32_t idx, int32_t* kind, int32_t* min_params, int32_t* max_params) {
	((pt_get_param_count_fn)fn)(idx, kind, min_params, max_params);
}
static void pt_invoke_get_param_info(void* fn, int32_t idx, int32_t j,
		char* name_buf, int32_t name_n, int32_t* tag, char* type_buf, int32_t type_n) {
	((pt_get_param_info_fn)fn)(idx, j, name_buf, name_n, tag, type_buf, type_n);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/nexusplugins/ptengine/abi"
	"github.com/nexusplugins/ptengine/platform"
)

// introspectBufSize is the scratch buffer size handed to every vtable
// call that writes a string (spec §4.3: "callers allocate a fixed buffer;
// the plugin truncates rather than overflowing it").
const introspectBufSize = 256

// variadicKindFlag is the get_interface_param_count out-value denoting a
// variadic interface; describeInterface reads every other kind value as
// fixed.
const variadicKindFlag = 1

// vtableIntrospector is the production Introspector (spec §4.3, §6): it
// resolves the six query-vtable symbols through lib and calls each one
// via a dedicated C trampoline, the same resolve-then-trampoline pattern
// ffi.cgoCaller uses to invoke an interface function (ffi/caller_cgo.go).
type vtableIntrospector struct {
	lib platform.Library
}

// NewVTableIntrospector returns the production Introspector, resolving
// vtable symbols through lib. Use this (rather than StaticIntrospector)
// whenever Table.Load will open a real compiled plugin.
func NewVTableIntrospector(lib platform.Library) Introspector {
	return &vtableIntrospector{lib: lib}
}

func (v *vtableIntrospector) Describe(handle interface{}) (PluginDescriptor, error) {
	h, ok := handle.(platform.Handle)
	if !ok {
		return PluginDescriptor{}, fmt.Errorf("pluginmodel: introspect: unexpected handle type %T", handle)
	}

	getName := v.lib.Symbol(h, "get_name")
	getVersion := v.lib.Symbol(h, "get_version")
	getInterfaceCount := v.lib.Symbol(h, "get_interface_count")
	getInterfaceInfo := v.lib.Symbol(h, "get_interface_info")
	getParamCount := v.lib.Symbol(h, "get_interface_param_count")
	getParamInfo := v.lib.Symbol(h, "get_interface_param_info")
	if getName == 0 || getVersion == 0 || getInterfaceCount == 0 || getInterfaceInfo == 0 || getParamCount == 0 || getParamInfo == 0 {
		return PluginDescriptor{}, fmt.Errorf("pluginmodel: introspect: plugin is missing a required query vtable symbol")
	}

	desc := PluginDescriptor{
		Name:    callBufFn(getName),
		Version: callBufFn(getVersion),
	}

	var count C.int32_t
	C.pt_invoke_get_interface_count(symPtr(getInterfaceCount), &count)

	desc.Interfaces = make([]InterfaceDescriptor, 0, int(count))
	for i := C.int32_t(0); i < count; i++ {
		desc.Interfaces = append(desc.Interfaces, describeInterface(getInterfaceInfo, getParamCount, getParamInfo, i))
	}
	return desc, nil
}

// symPtr converts a resolved symbol address into the unsafe.Pointer the C
// trampolines expect, mirroring ffi.cgoCaller's funcPtr-to-unsafe.Pointer
// conversion in ffi/caller_cgo.go.
func symPtr(addr uintptr) unsafe.Pointer { return unsafe.Pointer(addr) }

// callBufFn invokes a get_name/get_version-shaped symbol into a scratch
// buffer and returns the NUL-terminated string it wrote.
func callBufFn(addr uintptr) string {
	buf := (*C.char)(C.malloc(introspectBufSize))
	defer C.free(unsafe.Pointer(buf))
	C.memset(unsafe.Pointer(buf), 0, introspectBufSize)
	C.pt_invoke_get_buf(symPtr(addr), buf, introspectBufSize)
	return C.GoString(buf)
}

// describeInterface implements spec §4.3 steps 3-5 for interface idx:
// fetch its name/description/version, its arity/min/max, and every
// declared parameter's tag and type name.
func describeInterface(infoFn, paramCountFn, paramInfoFn uintptr, idx C.int32_t) InterfaceDescriptor {
	nameBuf := (*C.char)(C.malloc(introspectBufSize))
	defer C.free(unsafe.Pointer(nameBuf))
	descBuf := (*C.char)(C.malloc(introspectBufSize))
	defer C.free(unsafe.Pointer(descBuf))
	verBuf := (*C.char)(C.malloc(introspectBufSize))
	defer C.free(unsafe.Pointer(verBuf))
	C.memset(unsafe.Pointer(nameBuf), 0, introspectBufSize)
	C.memset(unsafe.Pointer(descBuf), 0, introspectBufSize)
	C.memset(unsafe.Pointer(verBuf), 0, introspectBufSize)

	C.pt_invoke_get_interface_info(symPtr(infoFn), idx,
		nameBuf, introspectBufSize, descBuf, introspectBufSize, verBuf, introspectBufSize)

	var kind, min, max C.int32_t
	C.pt_invoke_get_param_count(symPtr(paramCountFn), idx, &kind, &min, &max)

	iface := InterfaceDescriptor{
		Name:        C.GoString(nameBuf),
		Description: C.GoString(descBuf),
		Version:     C.GoString(verBuf),
		Arity:       ArityFixed,
		MinParams:   int(min),
		MaxParams:   int(max),
	}
	if kind == variadicKindFlag {
		iface.Arity = ArityVariadic
		if max <= 0 {
			iface.MaxParams = MaxParamsUnbounded
		}
	}

	declared := int(max)
	if declared < int(min) {
		declared = int(min)
	}
	iface.Params = make([]ParamDecl, declared)
	for j := 0; j < declared; j++ {
		iface.Params[j] = describeParam(paramInfoFn, idx, C.int32_t(j))
	}
	return iface
}

// describeParam implements spec §4.3 step 5 for parameter j of interface
// idx: its declared type tag and type name. The vtable also reports a
// parameter name, which this codebase's ParamDecl doesn't track (only
// tag, type name, and size matter to dispatch), so it's read into a
// scratch buffer and discarded.
func describeParam(paramInfoFn uintptr, idx, j C.int32_t) ParamDecl {
	nameBuf := (*C.char)(C.malloc(introspectBufSize))
	defer C.free(unsafe.Pointer(nameBuf))
	typeBuf := (*C.char)(C.malloc(introspectBufSize))
	defer C.free(unsafe.Pointer(typeBuf))
	C.memset(unsafe.Pointer(nameBuf), 0, introspectBufSize)
	C.memset(unsafe.Pointer(typeBuf), 0, introspectBufSize)

	var tag C.int32_t
	C.pt_invoke_get_param_info(symPtr(paramInfoFn), idx, j, nameBuf, introspectBufSize, &tag, typeBuf, introspectBufSize)

	return ParamDecl{
		Tag:      abi.ParamTag(tag),
		TypeName: C.GoString(typeBuf),
	}
}

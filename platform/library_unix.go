//go:build (linux || darwin || freebsd) && cgo

package platform

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"
import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/nexusplugins/ptengine/ptlog"
)

func isWindows() bool { return false }

// unixLibrary loads plugins via dlopen/dlsym/dlclose, the POSIX
// counterpart of the dynamic-library calls this codebase's SDK assumes on
// the plugin side.
type unixLibrary struct{}

// NewLibrary returns the platform's Library implementation.
func NewLibrary() Library { return unixLibrary{} }

func (unixLibrary) Load(path string) Handle {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	h := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_LOCAL)
	if h == nil {
		ptlog.L().Warn("platform: dlopen failed", zap.String("path", path), zap.String("dlerror", C.GoString(C.dlerror())))
		return 0
	}
	return Handle(uintptr(h))
}

func (unixLibrary) Symbol(h Handle, name string) uintptr {
	if !h.Valid() {
		return 0
	}
	csym := C.CString(name)
	defer C.free(unsafe.Pointer(csym))

	sym := C.dlsym(unsafe.Pointer(uintptr(h)), csym)
	if sym == nil {
		ptlog.L().Warn("platform: dlsym failed", zap.String("symbol", name))
		return 0
	}
	return uintptr(sym)
}

func (unixLibrary) Close(h Handle) {
	if !h.Valid() {
		return
	}
	if C.dlclose(unsafe.Pointer(uintptr(h))) != 0 {
		ptlog.L().Warn("platform: dlclose failed", zap.String("dlerror", C.GoString(C.dlerror())))
	}
}

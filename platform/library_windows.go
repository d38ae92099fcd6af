//go:build windows

package platform

import (
	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/nexusplugins/ptengine/ptlog"
)

func isWindows() bool { return true }

// windowsLibrary loads plugins via LoadLibraryW/GetProcAddress/FreeLibrary,
// matching this codebase's plugin-manager lineage's use of
// golang.org/x/sys for OS-level calls the standard library doesn't expose.
type windowsLibrary struct{}

// NewLibrary returns the platform's Library implementation.
func NewLibrary() Library { return windowsLibrary{} }

func (windowsLibrary) Load(path string) Handle {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		ptlog.L().Warn("platform: LoadLibrary failed", zap.String("path", path), zap.Error(err))
		return 0
	}
	return Handle(uintptr(h))
}

func (windowsLibrary) Symbol(h Handle, name string) uintptr {
	if !h.Valid() {
		return 0
	}
	addr, err := windows.GetProcAddress(windows.Handle(h), name)
	if err != nil {
		ptlog.L().Warn("platform: GetProcAddress failed", zap.String("symbol", name), zap.Error(err))
		return 0
	}
	return addr
}

func (windowsLibrary) Close(h Handle) {
	if !h.Valid() {
		return
	}
	if err := windows.FreeLibrary(windows.Handle(h)); err != nil {
		ptlog.L().Warn("platform: FreeLibrary failed", zap.Error(err))
	}
}

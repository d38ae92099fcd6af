//go:build !windows && (!(linux || darwin || freebsd) || !cgo)

package platform

import (
	"go.uber.org/zap"

	"github.com/nexusplugins/ptengine/ptlog"
)

func isWindows() bool { return false }

// stubLibrary is used on platforms/build configurations where neither the
// cgo dlopen path nor the Windows path is available (e.g. cgo disabled).
// It never loads anything, consistent with spec §4.1's "never abort;
// return null/zero" failure semantics.
type stubLibrary struct{}

// NewLibrary returns the platform's Library implementation.
func NewLibrary() Library { return stubLibrary{} }

func (stubLibrary) Load(path string) Handle {
	ptlog.L().Warn("platform: dynamic loading unavailable on this build", zap.String("path", path))
	return 0
}

func (stubLibrary) Symbol(Handle, string) uintptr { return 0 }

func (stubLibrary) Close(Handle) {}

// Package platform wraps the handful of OS services the engine needs to
// load plugin shared objects: open/close a dynamic library, resolve a
// symbol, stat a file's modification time, and enumerate a directory for
// plugin files. Per spec §4.1, failures here are never fatal: callers
// surface a warning and skip the plugin.
package platform

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexusplugins/ptengine/ptlog"
)

// Handle is an opaque loaded-library handle. The zero value denotes "no
// library loaded" and must never be dereferenced by callers.
type Handle uintptr

// Valid reports whether h refers to a loaded library.
func (h Handle) Valid() bool { return h != 0 }

// Library is the platform contract (spec §4.1). Implementations must never
// panic or abort the process; on failure they return the zero Handle or a
// zero symbol address and let the caller decide whether to skip the
// plugin.
type Library interface {
	// Load opens a shared object at path. Returns the zero Handle on
	// failure.
	Load(path string) Handle
	// Symbol resolves name within the library referenced by h. Returns 0
	// if the symbol is not found or h is invalid.
	Symbol(h Handle, name string) uintptr
	// Close releases the library. Safe to call with an already-closed or
	// zero Handle.
	Close(h Handle)
}

// sharedObjectExt is the platform's plugin file extension.
func sharedObjectExt() string {
	if isWindows() {
		return ".dll"
	}
	return ".so"
}

// IsWindows reports whether the engine is running on Windows, used by the
// engine when resolving a call's return shape to pick the platform's
// struct-by-value size threshold
// (spec §3: ">8 bytes on Windows, >16 elsewhere").
func IsWindows() bool {
	return isWindows()
}

// FileMtime returns path's modification time, used for staleness detection
// against a previously recorded load time.
func FileMtime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		ptlog.L().Warn("platform: stat failed", zap.String("path", path), zap.Error(err))
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// EnumerateSharedObjects recursively walks dir and returns up to max paths
// whose extension matches the platform's shared-object suffix
// (case-insensitive on Windows, per spec §4.1). A walk error for one entry
// is logged and skipped rather than aborting the whole enumeration.
func EnumerateSharedObjects(dir string, max int) []string {
	var out []string
	ext := sharedObjectExt()
	caseInsensitive := isWindows()

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			ptlog.L().Warn("platform: enumerate walk error", zap.String("path", path), zap.Error(err))
			return nil
		}
		if max > 0 && len(out) >= max {
			return filepath.SkipAll
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if caseInsensitive {
			if strings.EqualFold(filepath.Ext(name), ext) {
				out = append(out, path)
			}
			return nil
		}
		if filepath.Ext(name) == ext {
			out = append(out, path)
		}
		return nil
	})
	if walkErr != nil {
		ptlog.L().Warn("platform: enumerate failed", zap.String("dir", dir), zap.Error(walkErr))
	}
	return out
}

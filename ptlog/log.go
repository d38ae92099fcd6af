// Package ptlog provides the engine's one swappable structured logger.
//
// Every stratum of the engine logs through the package-level logger
// returned by L() (using zap only to build structured fields), so a host
// can redirect or silence engine diagnostics with a single call to
// SetLogger.
package ptlog

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger = zap.NewNop()
)

// SetLogger installs l as the engine-wide logger. Passing nil restores the
// no-op logger. Safe for concurrent use; the engine itself is single-
// threaded, but a host may reconfigure logging from another goroutine
// between dispatches.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// L returns the currently installed logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// ConfigureLevel builds a production zap.Logger at the named level
// ("debug", "info", "warn", "error", ...; the same names zapcore.Level
// accepts as text) and installs it via SetLogger. It is how
// ptconfig.Config's log_level (SPEC_FULL.md §4.8) actually reaches zap,
// rather than sitting unread on Engine. An empty level is a no-op, so a
// host that installed its own logger before constructing an Engine keeps
// it instead of being silently overridden.
func ConfigureLevel(level string) error {
	if level == "" {
		return nil
	}
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("ptlog: unknown log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("ptlog: build logger: %w", err)
	}
	SetLogger(built)
	return nil
}

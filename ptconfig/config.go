// Package ptconfig holds the engine's own bootstrap configuration.
//
// This is deliberately distinct from the rule-file format (.nxpt, out of
// scope): it is the handful of knobs the engine needs about itself before it
// ever reads a rule, not the plugin-authored rule graph.
package ptconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the engine's tunables. Zero-value fields are replaced by
// Default() so an embedding host may supply a partial file.
type Config struct {
	// PluginDirs lists directories scanned for shared-object plugin files.
	PluginDirs []string `toml:"plugin_dirs"`
	// MaxRecursionDepth is the recursive call_target depth above which the
	// engine logs a warning; dispatch is not stopped at this depth.
	MaxRecursionDepth int `toml:"max_recursion_depth"`
	// ChainRingSize bounds the call-chain cycle-detection ring buffer.
	ChainRingSize int `toml:"chain_ring_size"`
	// RuleIndexMaxLoadFactor is carried for parity with the source's rule
	// index; rules.Table keys its index with a Go map and does not read it.
	RuleIndexMaxLoadFactor float64 `toml:"rule_index_max_load_factor"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `toml:"log_level"`
}

// Default returns the engine's documented defaults.
func Default() Config {
	return Config{
		PluginDirs:             nil,
		MaxRecursionDepth:      32,
		ChainRingSize:          64,
		RuleIndexMaxLoadFactor: 0.75,
		LogLevel:               "info",
	}
}

// Load reads a TOML file at path and overlays it on Default(). A missing or
// zero-valued field keeps its default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	var onDisk Config
	if _, err := toml.DecodeFile(path, &onDisk); err != nil {
		return Config{}, fmt.Errorf("ptconfig: decode %s: %w", path, err)
	}
	if onDisk.PluginDirs != nil {
		cfg.PluginDirs = onDisk.PluginDirs
	}
	if onDisk.MaxRecursionDepth != 0 {
		cfg.MaxRecursionDepth = onDisk.MaxRecursionDepth
	}
	if onDisk.ChainRingSize != 0 {
		cfg.ChainRingSize = onDisk.ChainRingSize
	}
	if onDisk.RuleIndexMaxLoadFactor != 0 {
		cfg.RuleIndexMaxLoadFactor = onDisk.RuleIndexMaxLoadFactor
	}
	if onDisk.LogLevel != "" {
		cfg.LogLevel = onDisk.LogLevel
	}
	return cfg, nil
}

package ptconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusplugins/ptengine/ptconfig"
)

func TestDefault(t *testing.T) {
	cfg := ptconfig.Default()
	require.Equal(t, 32, cfg.MaxRecursionDepth)
	require.Equal(t, 64, cfg.ChainRingSize)
	require.Equal(t, 0.75, cfg.RuleIndexMaxLoadFactor)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := ptconfig.Load("")
	require.NoError(t, err)
	require.Equal(t, ptconfig.Default(), cfg)
}

func TestLoadOverlaysPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	contents := "max_recursion_depth = 16\nplugin_dirs = [\"/opt/plugins\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := ptconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, 16, cfg.MaxRecursionDepth)
	require.Equal(t, []string{"/opt/plugins"}, cfg.PluginDirs)
	// Untouched fields keep their defaults.
	require.Equal(t, 64, cfg.ChainRingSize)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := ptconfig.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

package platform_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexusplugins/ptengine/platform"
)

func TestFileMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.so")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	before := time.Now().Add(-time.Minute)
	mtime, err := platform.FileMtime(path)
	require.NoError(t, err)
	require.True(t, mtime.After(before))
}

func TestFileMtimeMissing(t *testing.T) {
	_, err := platform.FileMtime(filepath.Join(t.TempDir(), "missing.so"))
	require.Error(t, err)
}

func TestEnumerateSharedObjects(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.so"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.so"), []byte("x"), 0o644))

	found := platform.EnumerateSharedObjects(dir, 0)
	require.Len(t, found, 2)
}

func TestEnumerateSharedObjectsRespectsMax(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.so", "b.so", "c.so"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
	found := platform.EnumerateSharedObjects(dir, 2)
	require.Len(t, found, 2)
}

func TestHandleValid(t *testing.T) {
	var h platform.Handle
	require.False(t, h.Valid())
	h = 1
	require.True(t, h.Valid())
}

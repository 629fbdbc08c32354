package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePaths(t *testing.T, dir string, json string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "info"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "info", "paths.json"), []byte(json), 0o644))
}

func TestBeginCommitRoundTrip(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)
	tmp, err := c.BeginExtract("numpy-1.24.0-py39_0")
	require.NoError(t, err)
	writePaths(t, tmp, `{"paths_version":1,"paths":[{"_path":"bin/x","path_type":"hardlink","sha256":"a","size_in_bytes":4}]}`)
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "bin", "x"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "bin", "x"), []byte("data"), 0o644))
	require.NoError(t, c.Commit("numpy-1.24.0-py39_0", tmp))
	require.True(t, c.Has("numpy-1.24.0-py39_0"))
}

func TestValidateDetectsMissingFile(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)
	dir := c.EntryDir("pkg-1.0-0")
	writePaths(t, dir, `{"paths_version":1,"paths":[{"_path":"bin/missing","path_type":"hardlink","sha256":"a","size_in_bytes":4}]}`)
	require.Error(t, c.Validate("pkg-1.0-0"))
}

func TestAbortRemovesTempDir(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)
	tmp, err := c.BeginExtract("pkg")
	require.NoError(t, err)
	c.Abort(tmp)
	_, err = os.Stat(tmp)
	require.True(t, os.IsNotExist(err))
}

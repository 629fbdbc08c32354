package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/varietal/varietal/internal/types"
)

func buildTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestExtractTarWritesFiles(t *testing.T) {
	dir := t.TempDir()
	data := buildTar(t, map[string]string{"info/index.json": `{"name":"demo"}`})
	require.NoError(t, extractTar(bytes.NewReader(data), dir))
	content, err := os.ReadFile(filepath.Join(dir, "info", "index.json"))
	require.NoError(t, err)
	require.Contains(t, string(content), "demo")
}

func TestExtractTarRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	data := buildTar(t, map[string]string{"../escape.txt": "nope"})
	err := extractTar(bytes.NewReader(data), dir)
	require.Error(t, err)
}

func TestExtractCondaWithZstdInner(t *testing.T) {
	dir := t.TempDir()
	inner := buildTar(t, map[string]string{"info/index.json": `{"name":"demo"}`})

	var zstdBuf bytes.Buffer
	enc, err := zstd.NewWriter(&zstdBuf)
	require.NoError(t, err)
	_, err = enc.Write(inner)
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	metaW, err := zw.Create("metadata.json")
	require.NoError(t, err)
	_, err = metaW.Write([]byte(`{}`))
	require.NoError(t, err)
	pkgW, err := zw.Create("pkg-1.0-0.tar.zst")
	require.NoError(t, err)
	_, err = pkgW.Write(zstdBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	require.NoError(t, extractConda(bytes.NewReader(zipBuf.Bytes()), int64(zipBuf.Len()), dir))
	content, err := os.ReadFile(filepath.Join(dir, "info", "index.json"))
	require.NoError(t, err)
	require.Contains(t, string(content), "demo")
}

func TestArchiveFormatFromFileName(t *testing.T) {
	stem, format, ok := types.ArchiveFormatFromFileName("numpy-1.24.0-py39_0.tar.bz2")
	require.True(t, ok)
	require.Equal(t, "numpy-1.24.0-py39_0", stem)
	require.Equal(t, types.FormatTarBz2, format)

	_, _, ok = types.ArchiveFormatFromFileName("numpy-1.24.0-py39_0.whl")
	require.False(t, ok)
}

func TestUnpackRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	err := Unpack(types.FormatUnknown, path, dir)
	require.Error(t, err)
}

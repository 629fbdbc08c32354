package app

import (
	"archive/tar"
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/varietal/varietal/internal/adapters/cache"
	"github.com/varietal/varietal/internal/types"
)

type fakeRepodata struct {
	channels map[string]types.RepodataChannel
}

func (f fakeRepodata) Fetch(_ context.Context, channel string, subdir string) (types.RepodataChannel, error) {
	rd, ok := f.channels[channel+"/"+subdir]
	if !ok {
		return types.RepodataChannel{Channel: channel, Subdir: subdir, Packages: map[string]types.PackageRecord{}, CondaPackages: map[string]types.PackageRecord{}}, nil
	}
	return rd, nil
}

type fakeArchiveFetcher struct {
	archives map[string][]byte
}

func (f fakeArchiveFetcher) FetchArchive(_ context.Context, _ string, _ string, fileName string) ([]byte, error) {
	return f.archives[fileName], nil
}

func TestResolveMergesChannelsAndSolves(t *testing.T) {
	repodata := fakeRepodata{channels: map[string]types.RepodataChannel{
		"conda-forge/linux-64": {
			Packages: map[string]types.PackageRecord{
				"foo-1.0-0.tar.bz2": {Name: "foo", Version: "1.0", Build: "0", Fn: "foo-1.0-0.tar.bz2", Subdir: "linux-64", Channel: "conda-forge"},
			},
			CondaPackages: map[string]types.PackageRecord{},
		},
		"conda-forge/noarch": {
			Packages:      map[string]types.PackageRecord{},
			CondaPackages: map[string]types.PackageRecord{},
		},
	}}

	svc := Service{Repodata: repodata, Platform: "linux-64"}
	result, err := svc.Resolve(context.Background(), ResolveRequest{
		Channels: []string{"conda-forge"},
		Specs:    []string{"foo"},
	})
	require.NoError(t, err)
	require.Equal(t, "linux-64", result.Platform)
	require.Len(t, result.Records, 1)
	require.Equal(t, "foo", result.Records[0].Name)
}

func TestResolveErrorsWhenNoChannelsRespond(t *testing.T) {
	svc := Service{Repodata: fakeRepodata{channels: map[string]types.RepodataChannel{}}, Platform: "linux-64"}
	_, err := svc.Resolve(context.Background(), ResolveRequest{Channels: []string{"empty-channel"}, Specs: []string{"foo"}})
	require.Error(t, err)
}

func TestHostPlatformIsNonEmpty(t *testing.T) {
	require.NotEmpty(t, hostPlatform())
}

func TestArchiveStemRecognizesFormats(t *testing.T) {
	stem, format, ok := archiveStem(types.PackageRecord{Fn: "foo-1.0-0.tar.bz2"})
	require.True(t, ok)
	require.Equal(t, "foo-1.0-0", stem)
	require.Equal(t, types.FormatTarBz2, format)

	_, _, ok = archiveStem(types.PackageRecord{Fn: "foo-1.0-0.zip"})
	require.False(t, ok)
}

func TestInstallFetchesExtractsAndLinks(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	content := []byte("print(1)\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "info/paths.json", Mode: 0o644, Size: int64(len(pathsJSON))}))
	_, err := tw.Write(pathsJSON)
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "bin/tool", Mode: 0o755, Size: int64(len(content))}))
	_, err = tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	zstBytes := compressZstd(t, buf.Bytes())

	dir := t.TempDir()
	c, err := cache.New(dir + "/cache")
	require.NoError(t, err)

	svc := Service{
		Archives: fakeArchiveFetcher{archives: map[string][]byte{"foo-1.0-0.tar.zst": zstBytes}},
		Cache:    c,
	}
	record := types.PackageRecord{Name: "foo", Version: "1.0", Build: "0", Fn: "foo-1.0-0.tar.zst", Channel: "conda-forge", Subdir: "linux-64"}

	result, err := svc.Install(context.Background(), InstallRequest{
		Records: []types.PackageRecord{record},
		Prefix:  dir + "/prefix",
		Workers: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Linked)
}

var pathsJSON = []byte(`{"paths_version":1,"paths":[{"_path":"bin/tool","path_type":"hardlink","size_in_bytes":9}]}`)

func compressZstd(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

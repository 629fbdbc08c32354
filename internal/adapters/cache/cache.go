// Package cache implements varietal's content-addressed package
// cache: each extracted archive lives under <cache-dir>/<stem>, keyed
// by the archive's own file stem (name-version-build), written via a
// temp-dir-then-rename so a reader never observes a partially
// extracted package.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/varietal/varietal/internal/types"
)

// Cache roots package extraction under one directory.
type Cache struct {
	Dir string
}

// New returns a Cache rooted at dir, creating it if necessary.
func New(dir string) (Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Cache{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create cache directory").
			WithCause(err)
	}
	return Cache{Dir: dir}, nil
}

// EntryDir returns the directory a package stem would be extracted
// into, whether or not it currently exists.
func (c Cache) EntryDir(stem string) string {
	return filepath.Join(c.Dir, stem)
}

// Has reports whether stem is already extracted and passes
// validation against its own info/paths.json.
func (c Cache) Has(stem string) bool {
	dir := c.EntryDir(stem)
	if _, err := os.Stat(filepath.Join(dir, "info", "paths.json")); err != nil {
		return false
	}
	return c.Validate(stem) == nil
}

// BeginExtract returns a sibling temp directory to extract stem's
// archive into. Callers must call Commit on success or Abort on
// failure.
func (c Cache) BeginExtract(stem string) (string, error) {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create cache directory").
			WithCause(err)
	}
	tmp, err := os.MkdirTemp(c.Dir, ".tmp-"+stem+"-")
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create temp extraction directory").
			WithCause(err)
	}
	return tmp, nil
}

// Commit atomically renames a finished temp extraction directory into
// place as stem's cache entry.
func (c Cache) Commit(stem string, tmpDir string) error {
	target := c.EntryDir(stem)
	_ = os.RemoveAll(target)
	if err := os.Rename(tmpDir, target); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to commit cache entry").
			WithCause(err)
	}
	return nil
}

// Abort discards a temp extraction directory after a failed extract.
func (c Cache) Abort(tmpDir string) {
	_ = os.RemoveAll(tmpDir)
}

// Validate re-reads stem's info/paths.json and confirms every regular
// file's recorded size matches what's on disk. SHA-256 is checked only
// when requested by the caller via ValidateStrict, since hashing every
// file on every cache hit would defeat the cache's purpose.
func (c Cache) Validate(stem string) error {
	paths, err := c.ReadPaths(stem)
	if err != nil {
		return err
	}
	dir := c.EntryDir(stem)
	for _, entry := range paths.Paths {
		if entry.PathType == types.PathTypeDirectory {
			continue
		}
		info, err := os.Lstat(filepath.Join(dir, entry.RelativePath))
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("cache entry missing file: " + entry.RelativePath).
				WithCause(err)
		}
		if entry.PathType == types.PathTypeHardLink && uint64(info.Size()) != entry.SizeInBytes {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("cache entry size mismatch: " + entry.RelativePath)
		}
	}
	return nil
}

// ValidateStrict additionally verifies every regular file's SHA-256
// digest against info/paths.json, for callers that want to detect
// on-disk corruption rather than just truncation/deletion.
func (c Cache) ValidateStrict(stem string) error {
	if err := c.Validate(stem); err != nil {
		return err
	}
	paths, err := c.ReadPaths(stem)
	if err != nil {
		return err
	}
	dir := c.EntryDir(stem)
	for _, entry := range paths.Paths {
		if entry.PathType != types.PathTypeHardLink || entry.SHA256 == "" {
			continue
		}
		sum, err := sha256File(filepath.Join(dir, entry.RelativePath))
		if err != nil {
			return err
		}
		if sum != entry.SHA256 {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("cache entry sha256 mismatch: " + entry.RelativePath)
		}
	}
	return nil
}

// ReadPaths loads and parses stem's info/paths.json.
func (c Cache) ReadPaths(stem string) (types.Paths, error) {
	data, err := os.ReadFile(filepath.Join(c.EntryDir(stem), "info", "paths.json"))
	if err != nil {
		return types.Paths{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("paths.json not found for " + stem).
			WithCause(err)
	}
	var wire pathsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return types.Paths{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse paths.json").
			WithCause(err)
	}
	return wire.toDomain(), nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open file for hashing").
			WithCause(err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to hash file").
			WithCause(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// pathsWire is the literal JSON shape of info/paths.json.
type pathsWire struct {
	PathsVersion int `json:"paths_version"`
	Paths        []struct {
		Path              string `json:"_path"`
		PathType          string `json:"path_type"`
		SHA256            string `json:"sha256"`
		SizeInBytes       uint64 `json:"size_in_bytes"`
		FileMode          string `json:"file_mode"`
		PrefixPlaceholder string `json:"prefix_placeholder"`
		NoLink            bool   `json:"no_link"`
	} `json:"paths"`
}

func (w pathsWire) toDomain() types.Paths {
	out := types.Paths{PathsVersion: w.PathsVersion}
	for _, p := range w.Paths {
		mode := types.FileModeBinary
		if p.FileMode == string(types.FileModeText) {
			mode = types.FileModeText
		}
		pathType := types.PathTypeHardLink
		switch p.PathType {
		case string(types.PathTypeSoftLink):
			pathType = types.PathTypeSoftLink
		case string(types.PathTypeDirectory):
			pathType = types.PathTypeDirectory
		}
		out.Paths = append(out.Paths, types.PathEntry{
			RelativePath:      p.Path,
			PathType:          pathType,
			SHA256:            p.SHA256,
			SizeInBytes:       p.SizeInBytes,
			FileMode:          mode,
			PrefixPlaceholder: p.PrefixPlaceholder,
			NoLink:            p.NoLink,
		})
	}
	return out
}

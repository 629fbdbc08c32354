package types

import "path/filepath"

// PackageArchiveFormat identifies how a package archive is encoded on
// disk, grounded on conda's three supported container formats.
type PackageArchiveFormat int

const (
	FormatUnknown PackageArchiveFormat = iota
	FormatTarBz2
	FormatTarZst
	FormatConda
)

// ArchiveFormatFromFileName determines the archive format and returns
// the package stem (file name without its archive suffix). The second
// return value is false if the file name doesn't match a known format.
func ArchiveFormatFromFileName(fileName string) (string, PackageArchiveFormat, bool) {
	base := filepath.Base(fileName)
	switch {
	case hasSuffix(base, ".tar.bz2"):
		return trimSuffix(base, ".tar.bz2"), FormatTarBz2, true
	case hasSuffix(base, ".conda"):
		return trimSuffix(base, ".conda"), FormatConda, true
	case hasSuffix(base, ".tar.zst"):
		return trimSuffix(base, ".tar.zst"), FormatTarZst, true
	default:
		return "", FormatUnknown, false
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func trimSuffix(s, suffix string) string {
	return s[:len(s)-len(suffix)]
}

// FileMode indicates whether a linked file's prefix placeholder, if
// any, must be rewritten as text or as a NUL-padded binary string.
type FileMode string

const (
	FileModeBinary FileMode = "binary"
	FileModeText   FileMode = "text"
)

// PathType distinguishes how an installed entry should be linked.
type PathType string

const (
	PathTypeHardLink  PathType = "hardlink"
	PathTypeSoftLink  PathType = "softlink"
	PathTypeDirectory PathType = "directory"
	PathTypeCopy      PathType = "copy"
)

// PathEntry is one row of a package's info/paths.json.
type PathEntry struct {
	RelativePath     string
	PathType         PathType
	SHA256           string
	SizeInBytes      uint64
	FileMode         FileMode
	PrefixPlaceholder string
	NoLink           bool
}

// Paths is the deserialized info/paths.json document.
type Paths struct {
	PathsVersion int
	Paths        []PathEntry
}

// Index is the deserialized info/index.json document embedded in a
// package archive (distinct from a channel's repodata.json).
type Index struct {
	Arch        string
	NoArch      NoArchType
	Build       string
	BuildNumber uint64
	License     string
	Name        string
	Subdir      string
	Timestamp   int64
	Version     string
	Depends     []string
}

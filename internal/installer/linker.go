// Package installer links an extracted package's files into a target
// prefix, grounded directly on rattler's install::link module: a
// hard-link -> symlink -> copy fallback chain per file, prefix
// placeholder rewriting for files that embed the build prefix, and
// no-arch Python relocation gated on the Python-info rendezvous.
package installer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/edsrzf/mmap-go"
	"github.com/rs/zerolog/log"

	"github.com/varietal/varietal/internal/types"
)

// LinkResult reports what actually happened for one linked file, for
// logging and for building the prefix's own info/paths.json-equivalent
// manifest.
type LinkResult struct {
	RelativePath string
	Method       types.PathType
	SHA256       string
}

// LinkFile links one cache entry's file into prefix at relativePath
// (after applying no-arch Python relocation, if applicable), rewriting
// the build-time prefix placeholder if the entry carries one.
func LinkFile(cacheDir, prefix string, entry types.PathEntry, python *types.PythonInfo, noArch types.NoArchType) (LinkResult, error) {
	relativePath := RelocatePath(entry.RelativePath, noArch, python)
	target := filepath.Join(prefix, relativePath)
	source := filepath.Join(cacheDir, entry.RelativePath)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return LinkResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create parent directory for " + relativePath).
			WithCause(err)
	}

	if entry.PrefixPlaceholder != "" && !entry.NoLink {
		digest, err := copyWithPrefixRewrite(source, target, entry.PrefixPlaceholder, prefix, entry.FileMode)
		if err != nil {
			return LinkResult{}, err
		}
		return LinkResult{RelativePath: relativePath, Method: types.PathTypeCopy, SHA256: digest}, nil
	}

	method, err := linkWithFallback(source, target, entry.NoLink)
	if err != nil {
		return LinkResult{}, err
	}
	return LinkResult{RelativePath: relativePath, Method: method, SHA256: entry.SHA256}, nil
}

// linkWithFallback tries a hard link first (cheapest, shares inode
// with the cache), then a symlink, then finally a byte copy — matching
// rattler's hard_link_entry/soft_link_entry/copy_entry chain. no_link
// entries in paths.json skip straight to copy.
func linkWithFallback(source, target string, noLink bool) (types.PathType, error) {
	_ = os.Remove(target)

	if !noLink {
		if err := os.Link(source, target); err == nil {
			return types.PathTypeHardLink, nil
		}
		if err := os.Symlink(source, target); err == nil {
			return types.PathTypeSoftLink, nil
		}
	}
	if err := copyFile(source, target); err != nil {
		return "", err
	}
	return types.PathTypeCopy, nil
}

func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open source file " + source).
			WithCause(err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to stat source file " + source).
			WithCause(err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create target file " + target).
			WithCause(err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to copy file contents").
			WithCause(err)
	}
	return nil
}

// copyWithPrefixRewrite copies source to target, replacing every
// occurrence of placeholder with prefix along the way, and returns the
// resulting file's SHA-256 digest (the running hash rattler computes
// while it rewrites, so callers don't need a second full-file pass).
func copyWithPrefixRewrite(source, target, placeholder, prefix string, mode types.FileMode) (string, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read source file for prefix rewrite").
			WithCause(err)
	}
	var rewritten []byte
	if mode == types.FileModeText {
		rewritten = rewriteTextPrefix(data, placeholder, prefix)
	} else {
		rewritten = rewriteBinaryPrefix(data, placeholder, prefix)
	}
	if err := os.WriteFile(target, rewritten, 0o644); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write rewritten file").
			WithCause(err)
	}
	sum := sha256.Sum256(rewritten)
	return hex.EncodeToString(sum[:]), nil
}

// rewriteTextPrefix does a straightforward byte-level replace of every
// placeholder occurrence, matching rattler's copy_replace_prefix_text.
func rewriteTextPrefix(data []byte, placeholder, prefix string) []byte {
	return []byte(strings.ReplaceAll(string(data), placeholder, prefix))
}

// rewriteBinaryPrefix replaces every occurrence of the NUL-terminated
// placeholder C string with the new prefix, pulling the remainder of
// that C string (up to its terminating NUL) up to abut the
// replacement and padding the freed space with NUL bytes at the end
// of the string instead — so the string's own terminating NUL, and
// every absolute offset in the file after it, lands at the same
// position as before. Mirrors rattler's copy_replace_prefix_binary:
// for each match, write bytes-before-match, the new prefix, the
// original suffix up to (but not including) the NUL, then
// len(needle)-len(replacement) padding NULs, and resume scanning at
// the NUL itself so it carries forward into the next segment.
func rewriteBinaryPrefix(data []byte, placeholder, prefix string) []byte {
	needle := []byte(placeholder)
	if len(needle) == 0 {
		return append([]byte(nil), data...)
	}
	replacement := []byte(prefix)
	padLen := len(needle) - len(replacement)
	if padLen < 0 {
		// Binary placeholders are sized by the builder so the real
		// prefix always fits; a longer prefix shifts every absolute
		// offset after it. Nothing downstream checks for that, so it
		// is logged and the rewrite proceeds, producing a longer file.
		log.Warn().
			Str("placeholder", placeholder).
			Str("prefix", prefix).
			Msg("prefix is longer than its binary placeholder, rewrite will not preserve file length")
		padLen = 0
	}

	var out bytes.Buffer
	out.Grow(len(data))
	rest := data
	for {
		pos := indexOf(rest, needle)
		if pos < 0 {
			out.Write(rest)
			break
		}
		out.Write(rest[:pos])
		out.Write(replacement)

		afterNeedle := rest[pos+len(needle):]
		end := indexOf(afterNeedle, []byte{0})
		if end < 0 {
			end = len(afterNeedle)
		}
		out.Write(afterNeedle[:end])
		out.Write(make([]byte, padLen))
		rest = afterNeedle[end:]
	}
	return out.Bytes()
}

func indexOf(haystack, needle []byte) int {
	return strings.Index(string(haystack), string(needle))
}

// MmapPrefixScan memory-maps path read-only and reports whether
// placeholder occurs in it. The linker does not call it: the rewrite
// path reads the source with os.ReadFile.
func MmapPrefixScan(path string, placeholder string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open file for mmap scan").
			WithCause(err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return false, nil
	}
	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to mmap file").
			WithCause(err)
	}
	defer mapped.Unmap()
	return strings.Contains(string(mapped), placeholder), nil
}

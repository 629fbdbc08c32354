// Package archive dispatches and extracts the three package archive
// formats conda uses, grounded directly on rattler's
// package_archive module: .tar.bz2 via stdlib compress/bzip2,
// .tar.zst via klauspost/compress/zstd, and .conda as a zip container
// whose entries are inner tar.{bz2,zst} archives plus a
// metadata.json that must be CRC-checked but not parsed as format
// data.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/zstd"

	"github.com/varietal/varietal/internal/types"
)

// Unpack extracts the archive at srcPath (in the given format) into
// destination, which must already exist.
func Unpack(format types.PackageArchiveFormat, srcPath string, destination string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to open archive").
			WithCause(err)
	}
	defer f.Close()

	switch format {
	case types.FormatTarBz2:
		return extractTarBz2(f, destination)
	case types.FormatTarZst:
		return extractTarZst(f, destination)
	case types.FormatConda:
		info, err := f.Stat()
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to stat .conda archive").
				WithCause(err)
		}
		return extractConda(f, info.Size(), destination)
	default:
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported archive format for %s", srcPath))
	}
}

func extractTarBz2(r io.Reader, destination string) error {
	return extractTar(bzip2.NewReader(r), destination)
}

func extractTarZst(r io.Reader, destination string) error {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open zstd stream").
			WithCause(err)
	}
	defer decoder.Close()
	return extractTar(decoder, destination)
}

func extractTar(r io.Reader, destination string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read tar entry").
				WithCause(err)
		}
		if err := writeTarEntry(destination, header, tr); err != nil {
			return err
		}
	}
}

func writeTarEntry(destination string, header *tar.Header, r io.Reader) error {
	target := filepath.Join(destination, filepath.Clean(header.Name))
	if !strings.HasPrefix(target, filepath.Clean(destination)+string(os.PathSeparator)) && target != filepath.Clean(destination) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("archive entry escapes destination: " + header.Name)
	}
	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0o755)
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		_ = os.Remove(target)
		return os.Symlink(header.Linkname, target)
	default:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create parent directory").
				WithCause(err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode)&0o777)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create file").
				WithCause(err)
		}
		defer out.Close()
		if _, err := io.Copy(out, r); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to write file contents").
				WithCause(err)
		}
		return nil
	}
}

// extractConda unpacks a .conda archive: a zip container whose entries
// are "metadata.json" (skipped but still read-through for CRC
// verification) and inner tar.{bz2,zst} archives, each extracted into
// destination in turn. A nested
// .conda entry is rejected, matching the upstream format's own rule
// that conda archives cannot contain conda archives.
func extractConda(r io.ReaderAt, size int64, destination string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to open .conda zip container").
			WithCause(err)
	}
	for _, entry := range zr.File {
		if entry.Name == "metadata.json" {
			rc, err := entry.Open()
			if err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("failed to read metadata.json").
					WithCause(err)
			}
			_, err = io.Copy(io.Discard, rc)
			rc.Close()
			if err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("metadata.json CRC mismatch").
					WithCause(err)
			}
			continue
		}
		_, format, ok := types.ArchiveFormatFromFileName(entry.Name)
		if !ok {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("unknown archive format for entry " + entry.Name)
		}
		if format == types.FormatConda {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("conda archive cannot contain more conda archives")
		}
		rc, err := entry.Open()
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to open inner archive entry").
				WithCause(err)
		}
		// zip.Reader validates CRC32 only once the entry is read to its
		// end. The tar extractor stops at the end-of-archive marker, so
		// whatever it leaves unread is drained before closing.
		var extractErr error
		switch format {
		case types.FormatTarBz2:
			extractErr = extractTarBz2(rc, destination)
		case types.FormatTarZst:
			extractErr = extractTarZst(rc, destination)
		}
		if extractErr == nil {
			if _, err := io.Copy(io.Discard, rc); err != nil {
				extractErr = errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("inner archive CRC mismatch").
					WithCause(err)
			}
		}
		rc.Close()
		if extractErr != nil {
			return extractErr
		}
	}
	return nil
}

// ReadConda extracts a .conda archive given its raw bytes, used by
// callers that already hold the archive in memory (e.g. after
// downloading it).
func ReadConda(data []byte, destination string) error {
	return extractConda(bytes.NewReader(data), int64(len(data)), destination)
}

// Package explicitenv parses conda "explicit" environment files: a
// flat list of package archive URLs that bypasses the solver
// entirely, used for locked/reproducible installs.
package explicitenv

import (
	"bufio"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/varietal/varietal/internal/types"
)

// Entry is one resolved line of an explicit environment file: the
// archive's download URL plus the (channel, subdir, name, version,
// build) recovered from its filename.
type Entry struct {
	URL     string
	Channel string
	Subdir  string
	Name    string
	Version string
	Build   string
	FileExt string
}

// Parse reads an explicit environment file. The first non-comment
// line must be "@EXPLICIT"; every following non-comment, non-blank
// line is a package archive URL ending in .tar.bz2 or .conda.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sawMarker bool
	var entries []Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !sawMarker {
			if line != "@EXPLICIT" {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg("explicit environment file must start with @EXPLICIT, got: " + line)
			}
			sawMarker = true
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read explicit environment file").
			WithCause(err)
	}
	if !sawMarker {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("explicit environment file missing @EXPLICIT marker")
	}
	return entries, nil
}

func parseLine(line string) (Entry, error) {
	rawURL := line
	if idx := strings.Index(rawURL, "#"); idx >= 0 {
		rawURL = strings.TrimSpace(rawURL[:idx])
	}
	ext, ok := fileExt(rawURL)
	if !ok {
		return Entry{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("explicit environment line must end in .tar.bz2 or .conda: " + line)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Entry{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid URL in explicit environment file: " + rawURL).
			WithCause(err)
	}
	fileName := path.Base(parsed.Path)
	name, version, build, err := splitFileName(fileName, ext)
	if err != nil {
		return Entry{}, err
	}

	dir := path.Dir(parsed.Path)
	subdir := path.Base(dir)
	channelPath := strings.TrimSuffix(dir, "/"+subdir)
	channel := parsed.Scheme + "://" + parsed.Host + channelPath

	return Entry{
		URL:     rawURL,
		Channel: channel,
		Subdir:  subdir,
		Name:    name,
		Version: version,
		Build:   build,
		FileExt: ext,
	}, nil
}

func fileExt(rawURL string) (string, bool) {
	switch {
	case strings.HasSuffix(rawURL, ".tar.bz2"):
		return ".tar.bz2", true
	case strings.HasSuffix(rawURL, ".conda"):
		return ".conda", true
	default:
		return "", false
	}
}

// splitFileName recovers (name, version, build) from conda's
// `<name>-<version>-<build>.<ext>` filename convention. name may
// itself contain dashes, so the split takes the last two dash-
// separated components as version and build.
func splitFileName(fileName, ext string) (name, version, build string, err error) {
	stem := strings.TrimSuffix(fileName, ext)
	parts := strings.Split(stem, "-")
	if len(parts) < 3 {
		return "", "", "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("archive filename does not match <name>-<version>-<build> convention: " + fileName)
	}
	build = parts[len(parts)-1]
	version = parts[len(parts)-2]
	name = strings.Join(parts[:len(parts)-2], "-")
	return name, version, build, nil
}

// ToTargets converts parsed entries into install targets, keyed by
// the archive stem under the cache (matching the cache package's
// stem convention of `<name>-<version>-<build>`).
func ToTargets(entries []Entry, cacheDir string) []types.InstallTarget {
	targets := make([]types.InstallTarget, 0, len(entries))
	for _, e := range entries {
		stem := e.Name + "-" + e.Version + "-" + e.Build
		targets = append(targets, types.InstallTarget{
			Record: types.PackageRecord{
				Name:    e.Name,
				Version: e.Version,
				Build:   e.Build,
				Subdir:  e.Subdir,
				Channel: e.Channel,
				Fn:      stem + e.FileExt,
			},
			ArchiveFile: stem,
			CacheDir:    cacheDir,
		})
	}
	return targets
}

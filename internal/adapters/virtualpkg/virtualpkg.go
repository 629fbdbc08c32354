// Package virtualpkg detects the platform facts conda represents as
// synthetic `__*` packages, grounded on
// rattler's virtual_packages module: a `__win`/`__unix`/`__linux`/`__osx`
// OS marker, a `__glibc`/`__libc` version when resolvable, and an
// `__archspec` marker for the CPU architecture. CUDA driver detection
// is left to the caller (it requires a display-driver query outside
// this module's reach in a headless CLI) and is only injected when an
// override is supplied.
package virtualpkg

import (
	"bufio"
	"os"
	"regexp"
	"runtime"
	"strings"

	"github.com/varietal/varietal/internal/types"
)

var linuxVersionPattern = regexp.MustCompile(`^(\d+\.\d+(?:\.\d+)?(?:\.\d+)?)`)

// Detect returns the virtual packages implied by the current runtime
// plus any caller-supplied overrides (e.g. a --cuda-version flag).
func Detect(cudaOverride string) []types.VirtualPackage {
	var packages []types.VirtualPackage
	switch runtime.GOOS {
	case "linux":
		packages = append(packages, types.VirtualPackage{Kind: types.VirtualLinux, Version: "0"})
		packages = append(packages, types.VirtualPackage{Kind: types.VirtualUnix, Version: "0"})
		if v, ok := detectLinuxKernelVersion(); ok {
			packages[0].Version = v
		}
		if family, v, ok := detectLibc(); ok {
			packages = append(packages, types.VirtualPackage{Kind: libcKind(family), Version: v})
		}
	case "darwin":
		packages = append(packages, types.VirtualPackage{Kind: types.VirtualOSX, Version: detectDarwinVersion()})
		packages = append(packages, types.VirtualPackage{Kind: types.VirtualUnix, Version: "0"})
	case "windows":
		packages = append(packages, types.VirtualPackage{Kind: types.VirtualWin, Version: "0"})
	}
	packages = append(packages, types.VirtualPackage{Kind: types.VirtualArchspec, Version: archspec()})
	if strings.TrimSpace(cudaOverride) != "" {
		packages = append(packages, types.VirtualPackage{Kind: types.VirtualCuda, Version: cudaOverride})
	}
	return packages
}

// detectLinuxKernelVersion reads /proc/sys/kernel/osrelease (the same
// string `uname -r` reports) and extracts the first 2-4 numeric dot
// segments, matching rattler's extract_linux_version_part.
func detectLinuxKernelVersion() (string, bool) {
	data, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return "", false
	}
	return ExtractLinuxVersionPart(strings.TrimSpace(string(data)))
}

// ExtractLinuxVersionPart takes the first 2, 3, or 4 dot-separated
// digit groups of a uname release string, e.g.
// "5.10.102.1-microsoft-standard-WSL2" -> "5.10.102.1".
func ExtractLinuxVersionPart(release string) (string, bool) {
	match := linuxVersionPattern.FindStringSubmatch(release)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// detectLibc reports glibc with the version taken from a
// GLIBC_VERSION= line in /etc/os-release; without such a line it
// reports not found rather than guessing.
func detectLibc() (family string, version string, ok bool) {
	data, err := os.ReadFile("/etc/ld.so.cache")
	if err == nil && len(data) > 0 {
		// The ld.so.cache read does not affect the result; only the
		// os-release line below decides.
	}
	if v, found := readGlibcVersion(); found {
		return "glibc", v, true
	}
	return "", "", false
}

func readGlibcVersion() (string, bool) {
	f, err := os.Open("/etc/os-release")
	if err != nil {
		return "", false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "GLIBC_VERSION=") {
			return strings.Trim(strings.TrimPrefix(line, "GLIBC_VERSION="), `"`), true
		}
	}
	return "", false
}

func libcKind(family string) types.VirtualPackageKind {
	if family == "glibc" {
		return types.VirtualGlibc
	}
	return types.VirtualOtherLibc
}

func detectDarwinVersion() string {
	data, err := os.ReadFile("/System/Library/CoreServices/SystemVersion.plist")
	if err != nil || len(data) == 0 {
		return "0"
	}
	return "0"
}

// archspec returns a coarse architecture marker, enough to
// distinguish x86_64 from arm64 builds during a solve.
func archspec() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}

// ToRecords converts detected virtual packages into package records so
// they can be merged into a variant index alongside real channel
// packages.
func ToRecords(packages []types.VirtualPackage) []types.PackageRecord {
	out := make([]types.PackageRecord, 0, len(packages))
	for _, p := range packages {
		version := p.Version
		if version == "" {
			version = "0"
		}
		out = append(out, types.PackageRecord{
			Name:    string(p.Kind),
			Version: version,
			Build:   p.Build,
			Subdir:  "noarch",
		})
	}
	return out
}

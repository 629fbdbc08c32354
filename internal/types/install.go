package types

// PythonInfo describes the resolved no-arch-Python interpreter used to
// relocate noarch: python package files into version-specific
// site-packages directories.
type PythonInfo struct {
	Version      string
	Major        int
	Minor        int
	Patch        int
	// Implementation is almost always "python" for now; kept distinct so
	// a pypy-style interpreter could be plugged in without reshaping the
	// struct.
	Implementation string
}

// VirtualPackageKind enumerates the synthetic `__*` packages injected
// into a solve to represent platform facts the solver cannot otherwise
// see.
type VirtualPackageKind string

const (
	VirtualWin       VirtualPackageKind = "__win"
	VirtualUnix      VirtualPackageKind = "__unix"
	VirtualLinux     VirtualPackageKind = "__linux"
	VirtualOSX       VirtualPackageKind = "__osx"
	VirtualCuda      VirtualPackageKind = "__cuda"
	VirtualArchspec  VirtualPackageKind = "__archspec"
	VirtualGlibc     VirtualPackageKind = "__glibc"
	VirtualOtherLibc VirtualPackageKind = "__libc"
)

// VirtualPackage is one detected-or-assumed platform fact, turned into
// a package record with a single build so it can be treated uniformly
// by the solver.
type VirtualPackage struct {
	Kind    VirtualPackageKind
	Version string
	Build   string
}

// Platform is the short platform/subdir string conda uses, e.g.
// "linux-64", "osx-arm64", "win-64", "noarch".
type Platform string

// InstallTarget is one resolved record the installer must link into a
// prefix.
type InstallTarget struct {
	Record       PackageRecord
	ArchiveFile  string
	CacheDir     string
}

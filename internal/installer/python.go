package installer

import (
	"strconv"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/varietal/varietal/internal/core/version"
	"github.com/varietal/varietal/internal/types"
)

// ParsePythonInfo derives major/minor/patch from a resolved python
// package's version string, grounded on rattler's
// PythonInfo::from_version.
func ParsePythonInfo(rawVersion string) (types.PythonInfo, error) {
	v, err := version.Parse(rawVersion)
	if err != nil {
		return types.PythonInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse python version " + rawVersion).
			WithCause(err)
	}
	major := segmentInt(v, 0)
	minor := segmentInt(v, 1)
	patch := segmentInt(v, 2)
	return types.PythonInfo{
		Version:        rawVersion,
		Major:          major,
		Minor:          minor,
		Patch:          patch,
		Implementation: "python",
	}, nil
}

func segmentInt(v types.Version, index int) int {
	if index >= len(v.Segments) {
		return 0
	}
	joined := strings.Join(v.Segments[index].Segments, "")
	n, err := strconv.Atoi(joined)
	if err != nil {
		return 0
	}
	return n
}

// RelocatePath rewrites a noarch: python package's recorded relative
// path into the interpreter's layout: "site-packages/" goes to
// lib/pythonM.N/site-packages/ and "python-scripts/" goes to bin/, on
// every platform; the Windows Lib/site-packages and Scripts layout is
// not produced. Non-python noarch and regular (arch-specific) packages pass through
// unchanged.
func RelocatePath(relativePath string, noArch types.NoArchType, python *types.PythonInfo) string {
	if noArch != types.NoArchPython || python == nil {
		return relativePath
	}
	const sitePackagesPrefix = "site-packages/"
	const pythonScriptsPrefix = "python-scripts/"
	switch {
	case strings.HasPrefix(relativePath, sitePackagesPrefix):
		rest := strings.TrimPrefix(relativePath, sitePackagesPrefix)
		return "lib/python" + strconv.Itoa(python.Major) + "." + strconv.Itoa(python.Minor) + "/site-packages/" + rest
	case strings.HasPrefix(relativePath, pythonScriptsPrefix):
		rest := strings.TrimPrefix(relativePath, pythonScriptsPrefix)
		return "bin/" + rest
	default:
		return relativePath
	}
}

// PythonCell is a write-once, multi-reader rendezvous point: the
// package that links the real `python` interpreter publishes its
// PythonInfo exactly once, and every no-arch-Python package waiting to
// link blocks until that publish happens. Implemented with a closed
// channel as the broadcast signal, the natural single-producer /
// multi-consumer primitive for "announce once, many listeners" in Go —
// no third-party pub/sub library does this more simply than close(ch).
type PythonCell struct {
	mu        sync.Mutex
	ready     chan struct{}
	published bool
	value     types.PythonInfo
}

// NewPythonCell returns a cell with no published value yet.
func NewPythonCell() *PythonCell {
	return &PythonCell{ready: make(chan struct{})}
}

// Publish records info and wakes every waiter. Calling Publish more
// than once is a no-op after the first call, since a prefix only ever
// has one `python` package linked at a time.
func (c *PythonCell) Publish(info types.PythonInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.published {
		return
	}
	c.value = info
	c.published = true
	close(c.ready)
}

// Wait blocks until Publish has been called, then returns the
// published value. Safe to call from many goroutines concurrently.
func (c *PythonCell) Wait() types.PythonInfo {
	<-c.ready
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// TryGet returns the published value without blocking, and whether it
// has been published yet.
func (c *PythonCell) TryGet() (types.PythonInfo, bool) {
	select {
	case <-c.ready:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.value, true
	default:
		return types.PythonInfo{}, false
	}
}

package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/varietal/varietal/internal/types"
)

func TestLinkWithFallbackHardLinks(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.txt")
	require.NoError(t, os.WriteFile(source, []byte("hello"), 0o644))
	target := filepath.Join(dir, "linked.txt")

	method, err := linkWithFallback(source, target, false)
	require.NoError(t, err)
	require.Equal(t, types.PathTypeHardLink, method)
	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

// TestLinkWithFallbackNoLinkReturnsCopy covers spec §4.11 step 5: a
// no_link entry skips straight to a byte copy, and the reported method
// must say so rather than claiming the hard-link path was taken.
func TestLinkWithFallbackNoLinkReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.txt")
	require.NoError(t, os.WriteFile(source, []byte("hello"), 0o644))
	target := filepath.Join(dir, "linked.txt")

	method, err := linkWithFallback(source, target, true)
	require.NoError(t, err)
	require.Equal(t, types.PathTypeCopy, method)
	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

func TestRewriteTextPrefix(t *testing.T) {
	data := []byte("#!/old/prefix/bin/python\nprint(1)\n")
	rewritten := rewriteTextPrefix(data, "/old/prefix", "/new/prefix/longer")
	require.Contains(t, string(rewritten), "/new/prefix/longer/bin/python")
}

func TestRewriteBinaryPrefixPreservesLength(t *testing.T) {
	placeholder := "/opt/build-placeholder-prefix"
	data := append([]byte(placeholder), 0, 'r', 'e', 's', 't')
	shorter := "/opt/env"
	rewritten := rewriteBinaryPrefix(data, placeholder, shorter)
	require.Len(t, rewritten, len(data))
	require.Contains(t, string(rewritten), shorter)
}

// TestRewriteBinaryPrefixPullsSuffixUpToOldPrefix pins down the exact
// byte layout: the suffix between the placeholder and its terminating
// NUL moves up to directly follow the new, shorter prefix, and the
// freed space becomes trailing NUL padding that carries the original
// terminator (and anything after it) forward untouched.
func TestRewriteBinaryPrefixPullsSuffixUpToOldPrefix(t *testing.T) {
	data := append([]byte("xx/old/prefix/lib"), 0, 'y', 'y')
	want := append(append([]byte("xx/np/lib"), make([]byte, 9)...), 'y', 'y')

	rewritten := rewriteBinaryPrefix(data, "/old/prefix", "/np")

	require.Equal(t, want, rewritten)
	require.Len(t, rewritten, len(data))
}

func TestRelocatePathForNoArchPython(t *testing.T) {
	py := &types.PythonInfo{Major: 3, Minor: 11}
	got := RelocatePath("site-packages/pkg/__init__.py", types.NoArchPython, py)
	require.Equal(t, "lib/python3.11/site-packages/pkg/__init__.py", got)

	unchanged := RelocatePath("bin/tool", types.NoArchNone, py)
	require.Equal(t, "bin/tool", unchanged)
}

func TestParsePythonInfo(t *testing.T) {
	info, err := ParsePythonInfo("3.11.4")
	require.NoError(t, err)
	require.Equal(t, 3, info.Major)
	require.Equal(t, 11, info.Minor)
	require.Equal(t, 4, info.Patch)
}

func TestPythonCellPublishOnceAndWait(t *testing.T) {
	cell := NewPythonCell()
	_, ok := cell.TryGet()
	require.False(t, ok)

	done := make(chan types.PythonInfo, 1)
	go func() { done <- cell.Wait() }()

	cell.Publish(types.PythonInfo{Major: 3, Minor: 10})
	cell.Publish(types.PythonInfo{Major: 9, Minor: 9}) // no-op, first publish wins

	got := <-done
	require.Equal(t, 3, got.Major)
	value, ok := cell.TryGet()
	require.True(t, ok)
	require.Equal(t, 3, value.Major)
}

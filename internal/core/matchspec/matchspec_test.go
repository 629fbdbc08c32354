package matchspec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/varietal/varietal/internal/types"
)

func TestParseNameOnly(t *testing.T) {
	spec, err := Parse("numpy")
	require.NoError(t, err)
	require.Equal(t, "numpy", spec.Name)
	require.Empty(t, spec.VersionSpec)
}

func TestParseWithVersionAndBuild(t *testing.T) {
	spec, err := Parse("python >=3.9,<3.11 py39*")
	require.NoError(t, err)
	require.Equal(t, "python", spec.Name)
	require.Equal(t, ">=3.9,<3.11", spec.VersionSpec)
	require.Equal(t, "py39*", spec.Build)
}

func TestParseEqualsForm(t *testing.T) {
	spec, err := Parse("numpy=1.2=py39_0")
	require.NoError(t, err)
	require.Equal(t, "numpy", spec.Name)
	require.Equal(t, "1.2", spec.VersionSpec)
	require.Equal(t, "py39_0", spec.Build)
}

func TestParseChannelAndBrackets(t *testing.T) {
	spec, err := Parse("conda-forge::pytorch[build=cuda*,subdir=linux-64]")
	require.NoError(t, err)
	require.Equal(t, "pytorch", spec.Name)
	require.Equal(t, "conda-forge", spec.Channel)
	require.Equal(t, "cuda*", spec.Build)
	require.Equal(t, "linux-64", spec.Subdir)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)
}

func TestMatchesRecord(t *testing.T) {
	spec, err := Parse("numpy >=1.20,<2.0")
	require.NoError(t, err)
	require.True(t, Matches(spec, types.PackageRecord{Name: "numpy", Version: "1.24.0"}))
	require.False(t, Matches(spec, types.PackageRecord{Name: "numpy", Version: "2.0.0"}))
	require.False(t, Matches(spec, types.PackageRecord{Name: "scipy", Version: "1.24.0"}))
}

func TestMatchesBuildGlob(t *testing.T) {
	spec, err := Parse("python[build=py39*]")
	require.NoError(t, err)
	require.True(t, Matches(spec, types.PackageRecord{Name: "python", Version: "3.9.7", Build: "py39h_cpython"}))
	require.False(t, Matches(spec, types.PackageRecord{Name: "python", Version: "3.9.7", Build: "py310_cpython"}))
}

func TestVersionSpecStartsWith(t *testing.T) {
	vs, err := ParseVersionSpec("3.9.*")
	require.NoError(t, err)
	require.True(t, vs.Matches(mustVersion(t, "3.9.7")))
	require.False(t, vs.Matches(mustVersion(t, "3.10.0")))
}

func mustVersion(t *testing.T, raw string) types.Version {
	t.Helper()
	// Re-use the matchspec-internal parser indirectly via a tiny spec so
	// the test doesn't need to import the version package twice.
	spec, err := ParseVersionSpec("==" + raw)
	require.NoError(t, err)
	require.Len(t, spec.constraints, 1)
	return spec.constraints[0].version
}

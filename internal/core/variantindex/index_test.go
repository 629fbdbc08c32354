package variantindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/varietal/varietal/internal/types"
)

func records() []types.PackageRecord {
	return []types.PackageRecord{
		{Name: "numpy", Version: "1.20.0", BuildNumber: 0, Build: "py39_0"},
		{Name: "numpy", Version: "1.24.0", BuildNumber: 1, Build: "py39_1"},
		{Name: "numpy", Version: "1.24.0", BuildNumber: 0, Build: "py39_0"},
		{Name: "python", Version: "3.9.7", Build: "h_cpython"},
	}
}

func TestNewIndexOrdersHighestVersionFirst(t *testing.T) {
	idx := NewIndex(records())
	set, ok := idx.Set("numpy")
	require.True(t, ok)
	require.Len(t, set.Records, 3)
	require.Equal(t, "1.24.0", set.Records[0].Version)
	require.EqualValues(t, 1, set.Records[0].BuildNumber)
	require.Equal(t, "1.20.0", set.Records[2].Version)
}

func TestSubsetFromMatchSpec(t *testing.T) {
	idx := NewIndex(records())
	spec := types.MatchSpec{Name: "numpy", VersionSpec: ">=1.24.0"}
	subset, err := idx.SubsetFromMatchSpec(spec)
	require.NoError(t, err)
	require.Equal(t, 2, idx.SubsetSize("numpy", subset))
}

func TestSubsetFromMatchSpecUnknownName(t *testing.T) {
	idx := NewIndex(records())
	_, err := idx.SubsetFromMatchSpec(types.MatchSpec{Name: "does-not-exist"})
	require.Error(t, err)
}

func TestAddVariantReordersSet(t *testing.T) {
	idx := NewIndex(records())
	idx.AddVariant(types.PackageRecord{Name: "numpy", Version: "2.0.0", Build: "py39_0"})
	set, _ := idx.Set("numpy")
	require.Equal(t, "2.0.0", set.Records[0].Version)
	require.Len(t, set.Records, 4)
}

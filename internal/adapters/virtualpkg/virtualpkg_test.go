package virtualpkg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/varietal/varietal/internal/types"
)

func TestExtractLinuxVersionPart(t *testing.T) {
	cases := []struct {
		release string
		want    string
		ok      bool
	}{
		{"5.10.102.1-microsoft-standard-WSL2", "5.10.102.1", true},
		{"2.6.32-220.17.1.el6.i686", "2.6.32", true},
		{"5.4.72-microsoft-standard-WSL2", "5.4.72", true},
		{"garbage", "", false},
	}
	for _, c := range cases {
		got, ok := ExtractLinuxVersionPart(c.release)
		require.Equal(t, c.ok, ok, c.release)
		if ok {
			require.Equal(t, c.want, got, c.release)
		}
	}
}

func TestDetectIncludesArchspec(t *testing.T) {
	packages := Detect("")
	found := false
	for _, p := range packages {
		if p.Kind == "__archspec" {
			found = true
		}
	}
	require.True(t, found)
}

func TestDetectAppliesCudaOverride(t *testing.T) {
	packages := Detect("12.1")
	found := false
	for _, p := range packages {
		if p.Kind == "__cuda" && p.Version == "12.1" {
			found = true
		}
	}
	require.True(t, found)
}

func TestToRecordsDefaultsVersion(t *testing.T) {
	records := ToRecords([]types.VirtualPackage{{Kind: types.VirtualUnix}})
	require.Len(t, records, 1)
	require.Equal(t, "0", records[0].Version)
}

package variantindex

import (
	"github.com/varietal/varietal/internal/core/version"
	"github.com/varietal/varietal/internal/types"
)

// Preferred reports whether a should sort before b within a
// VariantSet, i.e. whether the solver should try a first. The order
// is, in priority:
//
//  1. fewer track_features wins (packages that declare a track_feature
//     are meant to lose to ones that don't, conda's way of soft-
//     deprecating a build without removing it from the index)
//  2. higher version wins
//  3. higher build number wins
//  4. fewer dependencies wins (a cheap proxy for "more likely to be
//     solvable without further backtracking" — the dependency-strength
//     tie-break)
//  5. newer timestamp wins
func Preferred(a, b types.PackageRecord, cache *version.Cache) bool {
	if len(a.TrackFeatures) != len(b.TrackFeatures) {
		return len(a.TrackFeatures) < len(b.TrackFeatures)
	}
	if c := cache.Compare(a.Version, b.Version); c != 0 {
		return c > 0
	}
	if a.BuildNumber != b.BuildNumber {
		return a.BuildNumber > b.BuildNumber
	}
	if len(a.Depends) != len(b.Depends) {
		return len(a.Depends) < len(b.Depends)
	}
	return a.Timestamp > b.Timestamp
}

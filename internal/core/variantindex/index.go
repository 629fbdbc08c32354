package variantindex

import (
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/varietal/varietal/internal/core/matchspec"
	"github.com/varietal/varietal/internal/core/version"
	"github.com/varietal/varietal/internal/types"
)

// VariantSet is the ordered catalog of every known variant (build) of
// one package name. Index holds these one per package name; the order
// here is the solver's decision order — the heuristic in ordering.go
// decides it once when the set is built, and the solver always prefers
// lower indices (more specific / more preferred) first.
type VariantSet struct {
	Name     string
	Records  []types.PackageRecord
	cache    *version.Cache
}

// Index is the full variant catalog across every package name visible
// to one solve: virtual packages, channel records, and the synthetic
// root. Built once per solve from merged repodata.
type Index struct {
	sets map[string]*VariantSet
}

// NewIndex builds an Index from a flat list of package records, one
// VariantSet per distinct name, ordered by the solver's preference
// heuristic.
func NewIndex(records []types.PackageRecord) *Index {
	byName := map[string][]types.PackageRecord{}
	for _, r := range records {
		byName[r.Name] = append(byName[r.Name], r)
	}
	idx := &Index{sets: map[string]*VariantSet{}}
	for name, variants := range byName {
		cache := version.NewCache()
		ordered := append([]types.PackageRecord(nil), variants...)
		sort.SliceStable(ordered, func(i, j int) bool {
			return Preferred(ordered[i], ordered[j], cache)
		})
		idx.sets[name] = &VariantSet{Name: name, Records: ordered, cache: cache}
	}
	return idx
}

// Names returns every package name known to the index.
func (idx *Index) Names() []string {
	out := make([]string, 0, len(idx.sets))
	for name := range idx.sets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Set returns the ordered VariantSet for name, or nil if unknown.
func (idx *Index) Set(name string) (*VariantSet, bool) {
	s, ok := idx.sets[name]
	return s, ok
}

// AddVariant appends a record to name's VariantSet, re-sorting by the
// preference heuristic. Used to inject virtual packages and the
// synthetic root after the repodata-derived index is built.
func (idx *Index) AddVariant(record types.PackageRecord) {
	s, ok := idx.sets[record.Name]
	if !ok {
		s = &VariantSet{Name: record.Name, cache: version.NewCache()}
		idx.sets[record.Name] = s
	}
	s.Records = append(s.Records, record)
	cache := s.cache
	sort.SliceStable(s.Records, func(i, j int) bool {
		return Preferred(s.Records[i], s.Records[j], cache)
	})
}

// Size returns the number of variants known for name.
func (idx *Index) Size(name string) int {
	s, ok := idx.sets[name]
	if !ok {
		return 0
	}
	return len(s.Records)
}

// VariantAt returns the record at position i in name's ordered set.
func (idx *Index) VariantAt(name string, i int) (types.PackageRecord, bool) {
	s, ok := idx.sets[name]
	if !ok || i < 0 || i >= len(s.Records) {
		return types.PackageRecord{}, false
	}
	return s.Records[i], true
}

// SubsetFromMatchSpec returns the Subset of name's variants that
// satisfy spec. If name is unknown, returns the empty subset and a
// not-found error so callers can distinguish "no such package" from
// "package has no matching variant".
func (idx *Index) SubsetFromMatchSpec(spec types.MatchSpec) (Subset, error) {
	s, ok := idx.sets[spec.Name]
	if !ok {
		return Empty(), errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("unknown dependency: " + spec.Name)
	}
	b := NewBitset(len(s.Records))
	for i, record := range s.Records {
		if matchspec.Matches(spec, record) {
			b = b.Set(i)
		}
	}
	return FromBitset(b), nil
}

// SubsetSize returns how many variants a Subset admits for name.
func (idx *Index) SubsetSize(name string, subset Subset) int {
	return subset.PopCount(idx.Size(name))
}

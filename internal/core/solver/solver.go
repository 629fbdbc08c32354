// Package solver drives a conda-style dependency solve against a
// github.com/contriboss/pubgrub-go Source: a synthetic root package
// depends on every user-requested spec, virtual packages are injected
// ahead of time, and a minimum-remaining-values choose-package /
// choose-version loop (the spec's own custom bridge, not a call into
// the library's own solve entrypoint) walks the variant index's bitset
// subsets directly, using pubgrub-go's Source/Version/Condition
// interfaces to describe each candidate and its dependency terms.
package solver

import (
	"fmt"
	"sort"
	"strings"

	pubgrub "github.com/contriboss/pubgrub-go"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/varietal/varietal/internal/core/matchspec"
	"github.com/varietal/varietal/internal/core/variantindex"
	"github.com/varietal/varietal/internal/core/version"
	"github.com/varietal/varietal/internal/types"
)

// RootName is the synthetic package every solve request attaches to,
// so a multi-spec request ("numpy", "python>=3.9") becomes a single
// dependency resolution problem with one root.
const RootName = "__ROOT__"

// RootVersion is the single version the synthetic root is ever
// recorded under.
const RootVersion = "0"

// recordVersion adapts a types.Version to pubgrub.Version.
type recordVersion struct {
	raw string
	v   types.Version
}

func (r recordVersion) String() string { return r.raw }

func (r recordVersion) Sort(other pubgrub.Version) int {
	o, ok := other.(recordVersion)
	if !ok {
		return 0
	}
	return version.Compare(r.v, o.v)
}

// specCondition adapts an already-resolved variantindex.Subset to
// pubgrub.Condition, so both the library's interface and this
// package's own search loop work directly off the bitset algebra
// instead of re-walking a match spec string per candidate. required
// distinguishes a `depends` edge (the dependency must be chosen) from
// a `constrains` edge (the dependency is only tightened if something
// else requires it).
type specCondition struct {
	name     string
	raw      string
	index    *variantindex.Index
	subset   variantindex.Subset
	required bool
}

func (c specCondition) String() string { return c.raw }

func (c specCondition) Satisfies(v pubgrub.Version) bool {
	rv, ok := v.(recordVersion)
	if !ok {
		return false
	}
	set, ok := c.index.Set(c.name)
	if !ok {
		return false
	}
	for i, record := range set.Records {
		if record.Version == rv.raw && c.subset.Contains(i) {
			return true
		}
	}
	return false
}

var _ pubgrub.Condition = specCondition{}

// source adapts the variant index to pubgrub.Source. warnings, when
// non-nil, collects the "dependencies unknown" notices the spec's
// get-dependencies step asks for whenever a record's own
// constrains/depends lists name something this index has no variant
// for, or conflict with each other — broken repodata must not crash
// the solve.
type source struct {
	index    *variantindex.Index
	warnings *[]string
}

func (s source) warn(msg string) {
	if s.warnings != nil {
		*s.warnings = append(*s.warnings, msg)
	}
}

func (s source) GetVersions(name pubgrub.Name) ([]pubgrub.Version, error) {
	set, ok := s.index.Set(string(name))
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown package %q", name))
	}
	// The index stores variants most-preferred-first; pubgrub expects
	// versions sorted lowest-to-highest, so reverse here rather than
	// disturb the index's own preference order (also used for linking
	// and tie-breaks elsewhere, and consulted directly by
	// choosePackage/choose-version below).
	out := make([]pubgrub.Version, len(set.Records))
	for i, record := range set.Records {
		out[len(set.Records)-1-i] = recordVersion{raw: record.Version, v: mustParse(record.Version)}
	}
	return out, nil
}

// GetDependencies implements the spec's get-dependencies step for one
// chosen variant: its own `depends` and `constrains` spec lists are
// parsed and grouped by dependency name. `depends` produces a
// required edge, `constrains` a non-forcing one; when both lists (or
// more than one entry within either) name the same dependency, their
// subsets are intersected and the edge is promoted to required if any
// contributing spec was required. A name this index has no variant
// for, or a same-record intersection that collapses to Empty, is
// dropped with a warning rather than failing the call — matches
// observed conda behavior where broken repodata should not crash the
// solver.
func (s source) GetDependencies(name pubgrub.Name, v pubgrub.Version) ([]pubgrub.Term, error) {
	set, ok := s.index.Set(string(name))
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown package %q", name))
	}
	rv, ok := v.(recordVersion)
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("unexpected version type from solver")
	}
	var record types.PackageRecord
	found := false
	for _, candidate := range set.Records {
		if candidate.Version == rv.raw {
			record = candidate
			found = true
			break
		}
	}
	if !found {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown version %s for %q", rv.raw, name))
	}

	type acc struct {
		subset   variantindex.Subset
		required bool
		raw      string
	}
	merged := map[string]acc{}
	var order []string

	add := func(raw string, required bool) {
		spec, err := matchspec.Parse(raw)
		if err != nil {
			s.warn(fmt.Sprintf("%s-%s: could not parse dependency spec %q, treating as unresolved", record.Name, record.Version, raw))
			return
		}
		subset, err := s.index.SubsetFromMatchSpec(spec)
		if err != nil {
			s.warn(fmt.Sprintf("%s-%s: dependency %q is unknown, treating as unresolved", record.Name, record.Version, spec.Name))
			return
		}
		existing, ok := merged[spec.Name]
		if !ok {
			merged[spec.Name] = acc{subset: subset, required: required, raw: raw}
			order = append(order, spec.Name)
			return
		}
		combined := variantindex.Intersect(existing.subset, subset, s.index.Size(spec.Name))
		if combined.IsEmpty() && !existing.subset.IsEmpty() && !subset.IsEmpty() {
			s.warn(fmt.Sprintf("%s-%s: combining dependency specs %q and %q for %q leaves no common candidate, treating as unresolved", record.Name, record.Version, existing.raw, raw, spec.Name))
			delete(merged, spec.Name)
			return
		}
		merged[spec.Name] = acc{subset: combined, required: existing.required || required, raw: existing.raw + ", " + raw}
	}

	for _, dep := range record.Depends {
		add(dep, true)
	}
	for _, dep := range record.Constrains {
		add(dep, false)
	}

	terms := make([]pubgrub.Term, 0, len(order))
	for _, name := range order {
		a, ok := merged[name]
		if !ok {
			continue // dropped above as unresolved
		}
		terms = append(terms, pubgrub.Term{
			Package: pubgrub.Name(name),
			Condition: specCondition{
				name:     name,
				raw:      a.raw,
				index:    s.index,
				subset:   a.subset,
				required: a.required,
			},
		})
	}
	return terms, nil
}

func mustParse(raw string) types.Version {
	v, err := version.Parse(raw)
	if err != nil {
		// Unparseable versions are excluded from the index at build time;
		// reaching here means a caller bypassed NewIndex.
		return types.Version{Raw: raw}
	}
	return v
}

var _ pubgrub.Source = source{}

// Report describes the outcome of a Solve call: either a flattened
// set of records to install, sorted by package name, plus any "dependencies
// unknown" warnings collected along the way, or (via the returned
// error) a human-readable conflict explanation when no solution
// exists.
type Report struct {
	Solution []types.PackageRecord
	Warnings []string
}

// domainState is the accumulated knowledge the search holds about one
// pending package name: the intersection of every subset any decided
// variant's dependency terms have contributed so far, and whether any
// of those edges was a `depends` (required) edge rather than a pure
// `constrains` one. Only required names are ever chosen by
// choosePackage; a constrains-only name stays tracked but uninstalled
// unless something later requires it too.
type domainState struct {
	subset   variantindex.Subset
	required bool
}

type searchState struct {
	domains map[string]domainState
	decided map[string]int
}

func (s *searchState) clone() *searchState {
	domains := make(map[string]domainState, len(s.domains))
	for k, v := range s.domains {
		domains[k] = v
	}
	decided := make(map[string]int, len(s.decided))
	for k, v := range s.decided {
		decided[k] = v
	}
	return &searchState{domains: domains, decided: decided}
}

// choosePackage implements the spec's choose-package step: among the
// pending (required, undecided) names, pick the one whose admissible
// variant count is minimum and positive — the minimum-remaining-values
// heuristic the spec calls out as converging fastest on conda-scale
// repodata. Ties break on name for a deterministic, order-independent
// result.
func choosePackage(idx *variantindex.Index, st *searchState) (string, bool) {
	names := make([]string, 0, len(st.domains))
	for name := range st.domains {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	bestSize := -1
	for _, name := range names {
		dom := st.domains[name]
		if !dom.required {
			continue
		}
		if _, decided := st.decided[name]; decided {
			continue
		}
		size := dom.subset.PopCount(idx.Size(name))
		if size <= 0 {
			continue
		}
		if bestSize == -1 || size < bestSize {
			bestSize = size
			best = name
		}
	}
	if bestSize == -1 {
		return "", false
	}
	return best, true
}

// solveState walks choose-package / choose-version / get-dependencies
// to a fixed point, backtracking to the next preferred candidate
// whenever folding a chosen variant's dependency terms into the
// search state collapses some required domain to Empty. trace
// accumulates a human-readable line per rejected candidate so a
// top-level failure can report why, not just that, no solution exists.
func solveState(src source, st *searchState, trace *[]string) (*searchState, error) {
	name, ok := choosePackage(src.index, st)
	if !ok {
		return st, nil // every required name has a decided variant
	}

	dom := st.domains[name]
	capacity := src.index.Size(name)
	candidates := dom.subset.Bits(capacity).Indices()

	var lastErr error
	for _, candidateIdx := range candidates {
		trial := st.clone()
		trial.decided[name] = candidateIdx

		record, _ := src.index.VariantAt(name, candidateIdx)
		terms, err := src.GetDependencies(pubgrub.Name(name), recordVersion{raw: record.Version, v: mustParse(record.Version)})
		if err != nil {
			lastErr = err
			continue
		}

		ok := true
		for _, term := range terms {
			cond, condOK := term.Condition.(specCondition)
			if !condOK {
				continue
			}
			depName := string(term.Package)
			depCapacity := src.index.Size(depName)

			merged := cond.subset
			required := cond.required
			if existing, has := trial.domains[depName]; has {
				merged = variantindex.Intersect(existing.subset, cond.subset, depCapacity)
				required = required || existing.required
			}
			if merged.IsEmpty() && required {
				*trace = append(*trace, fmt.Sprintf("%s-%s requires %s, but no candidate satisfies every constraint accumulated so far", record.Name, record.Version, depName))
				ok = false
				break
			}
			trial.domains[depName] = domainState{subset: merged, required: required}
		}
		if !ok {
			continue
		}

		result, err := solveState(src, trial, trace)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	*trace = append(*trace, fmt.Sprintf("no candidate for %q satisfies the accumulated constraints (%d tried)", name, len(candidates)))
	if lastErr == nil {
		lastErr = errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("no candidate for %q satisfies the accumulated constraints", name))
	}
	return nil, lastErr
}

// Solve resolves specs against idx, which must already contain every
// channel record and injected virtual package. specs are attached as
// dependencies of a synthetic root so a single search covers the
// whole request.
func Solve(idx *variantindex.Index, specs []types.MatchSpec) (Report, error) {
	root := types.PackageRecord{Name: RootName, Version: RootVersion}
	for _, spec := range specs {
		root.Depends = append(root.Depends, spec.Raw)
	}
	idx.AddVariant(root)

	var warnings []string
	src := source{index: idx, warnings: &warnings}

	st := &searchState{
		domains: map[string]domainState{
			RootName: {subset: variantindex.Full(idx.Size(RootName)), required: true},
		},
		decided: map[string]int{},
	}

	var trace []string
	final, err := solveState(src, st, &trace)
	if err != nil {
		return Report{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(derivationReport(trace, specs, err)).
			WithCause(err)
	}

	records := make([]types.PackageRecord, 0, len(final.decided))
	for name, variantIdx := range final.decided {
		if isSynthetic(name) {
			continue
		}
		record, ok := idx.VariantAt(name, variantIdx)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return Report{Solution: records, Warnings: warnings}, nil
}

// isSynthetic reports whether name is the solve's own root, or one of
// the injected `__*` virtual packages — both carry a sentinel source
// that has no installable archive, so step 4 of the solver driver
// filters them out of the returned set regardless of whether the
// search happened to decide a variant for them.
func isSynthetic(name string) bool {
	return name == RootName || strings.HasPrefix(name, "__")
}

// derivationReport turns a failed solve's rejection trace into the
// human-readable report the spec asks for, naming the requested specs
// so a zero-match request is unambiguous even with an empty trace.
func derivationReport(trace []string, specs []types.MatchSpec, cause error) string {
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Raw)
	}
	var b strings.Builder
	b.WriteString("no solution satisfies the requested specs (")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(")")
	if len(trace) > 0 {
		b.WriteString(":\n  ")
		b.WriteString(strings.Join(trace, "\n  "))
	} else if cause != nil {
		b.WriteString(": ")
		b.WriteString(cause.Error())
	}
	return b.String()
}

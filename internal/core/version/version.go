// Package version implements conda's own version grammar: an optional
// epoch, a run of dot/dash/underscore separated components each split
// into alternating numeric and alphabetic segments, and an optional
// "+"-delimited local segment. It is deliberately not Debian's or PEP
// 440's grammar — conda versions interleave numeric and alphabetic runs
// within a single component (e.g. "1.0post1" or "2021a") and compare
// "dev" / "" / "post"-tagged segments against a fixed total order that
// neither of those grammars share.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/varietal/varietal/internal/types"
)

// segmentRank orders the special alphabetic segments conda recognizes
// ahead of plain alphabetic text. An empty segment (produced by
// adjacent separators, e.g. "1..0") sorts as "post" per conda's rules,
// matching rattler's treatment of the implicit "_" separator.
var segmentRank = map[string]int{
	"dev":  -2,
	"_":    -1, // underscore-as-separator placeholder, never literal text
	"":     0,  // missing/implicit segment == "post" tier
	"post": 3,
}

const (
	rankAlpha = 1 // any other alphabetic run ranks between dev and the implicit/post tier
	rankNum   = 2 // numeric runs always rank above non-numeric text at the same position
)

// Parse parses a version string using conda's grammar. It does not
// validate segment characters beyond what the tokenizer accepts; the
// hard errors are an empty string, a malformed epoch, and a version
// with no segments.
func Parse(raw string) (types.Version, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return types.Version{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("version string is empty")
	}

	rest := trimmed
	var epoch uint64
	hasEpoch := false
	if idx := strings.Index(rest, "!"); idx >= 0 {
		epochStr := rest[:idx]
		parsed, err := strconv.ParseUint(epochStr, 10, 64)
		if err != nil {
			return types.Version{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid epoch in version %q", raw)).
				WithCause(err)
		}
		epoch = parsed
		hasEpoch = true
		rest = rest[idx+1:]
	}

	var local []types.VersionComponent
	hasLocal := false
	if idx := strings.Index(rest, "+"); idx >= 0 {
		localStr := rest[idx+1:]
		rest = rest[:idx]
		hasLocal = true
		local = splitComponents(localStr)
	}

	segments := splitComponents(rest)
	if len(segments) == 0 {
		return types.Version{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("version %q has no segments", raw))
	}

	return types.Version{
		Epoch:    epoch,
		HasEpoch: hasEpoch,
		Segments: segments,
		Local:    local,
		HasLocal: hasLocal,
		Raw:      trimmed,
	}, nil
}

// MustParse is Parse but panics on error; used only for literal
// constants inside tests.
func MustParse(raw string) types.Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// splitComponents splits a version string on '.', '-', and '_' into
// components, then splits each component into alternating digit/alpha
// runs, matching conda's tokenizer.
func splitComponents(s string) []types.VersionComponent {
	if s == "" {
		return nil
	}
	var components []types.VersionComponent
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' || s[i] == '-' || s[i] == '_' {
			part := s[start:i]
			components = append(components, types.VersionComponent{Segments: tokenize(part)})
			start = i + 1
		}
	}
	return components
}

// tokenize splits one component into alternating runs of digits and
// letters, lower-cased, e.g. "post1rc2" -> ["post", "1", "rc", "2"].
func tokenize(part string) []string {
	if part == "" {
		return []string{""}
	}
	var segments []string
	runStart := 0
	isDigit := func(b byte) bool { return b >= '0' && b <= '9' }
	for i := 1; i <= len(part); i++ {
		if i == len(part) || isDigit(part[i]) != isDigit(part[runStart]) {
			segments = append(segments, strings.ToLower(part[runStart:i]))
			runStart = i
		}
	}
	return segments
}

// Compare orders two versions: epoch first, then segment-by-segment,
// then the local segment. Returns -1, 0, or 1.
func Compare(a, b types.Version) int {
	if c := compareUint(a.Epoch, b.Epoch); c != 0 {
		return c
	}
	if c := compareComponents(a.Segments, b.Segments); c != 0 {
		return c
	}
	return compareComponents(a.Local, b.Local)
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareComponents(a, b []types.VersionComponent) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var ca, cb types.VersionComponent
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		if c := compareSegmentRuns(ca.Segments, cb.Segments); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegmentRuns(a, b []string) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var sa, sb string
		if i < len(a) {
			sa = a[i]
		}
		if i < len(b) {
			sb = b[i]
		}
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(a, b string) int {
	if a == b {
		return 0
	}
	ra, na := rankOf(a)
	rb, nb := rankOf(b)
	if ra != rb {
		return compareInt(ra, rb)
	}
	if ra == rankNum {
		return compareNumericString(na, nb)
	}
	return strings.Compare(na, nb)
}

func rankOf(segment string) (int, string) {
	if segment != "" && isAllDigits(segment) {
		return rankNum, segment
	}
	if rank, ok := segmentRank[segment]; ok {
		return rank, segment
	}
	return rankAlpha, segment
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func compareNumericString(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return compareInt(len(a), len(b))
	}
	return strings.Compare(a, b)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Equal reports whether two versions compare equal.
func Equal(a, b types.Version) bool { return Compare(a, b) == 0 }

// StripLocal returns a copy of v with its local segment removed.
func StripLocal(v types.Version) types.Version {
	v.Local = nil
	v.HasLocal = false
	return v
}

// HasLocalSegment reports whether v carries a non-empty "+local" tag.
func HasLocalSegment(v types.Version) bool { return v.HasLocal }

// AsMajorMinor returns the first two numeric segments of v joined by a
// dot, e.g. "3.9.1" -> "3.9". If v has fewer than two segments the
// missing ones are treated as "0".
func AsMajorMinor(v types.Version) string {
	major := segmentText(v, 0)
	minor := segmentText(v, 1)
	return major + "." + minor
}

func segmentText(v types.Version, index int) string {
	if index >= len(v.Segments) {
		return "0"
	}
	return strings.Join(v.Segments[index].Segments, "")
}

// StartsWith reports whether v's segments begin with prefix's segments
// (component-wise), used for "1.2.*" style matching.
func StartsWith(v, prefix types.Version) bool {
	if len(prefix.Segments) > len(v.Segments) {
		return false
	}
	for i, seg := range prefix.Segments {
		if compareSegmentRuns(v.Segments[i].Segments, seg.Segments) != 0 {
			return false
		}
	}
	return true
}

// CompatibleWith implements conda's "~=" / compatible-release semantics:
// v is compatible with base if v >= base and v shares base's version
// up to (but excluding) the last segment.
func CompatibleWith(v, base types.Version) bool {
	if Compare(v, base) < 0 {
		return false
	}
	if len(base.Segments) == 0 {
		return true
	}
	truncated := base
	truncated.Segments = base.Segments[:len(base.Segments)-1]
	return StartsWith(v, truncated)
}

// Bump returns a copy of v with its last numeric segment incremented by
// one (e.g. "1.2" -> "1.3").
func Bump(v types.Version) types.Version {
	out := v
	out.Segments = append([]types.VersionComponent(nil), v.Segments...)
	if len(out.Segments) == 0 {
		return out
	}
	last := len(out.Segments) - 1
	comp := out.Segments[last]
	newSegs := append([]string(nil), comp.Segments...)
	for i := len(newSegs) - 1; i >= 0; i-- {
		if isAllDigits(newSegs[i]) {
			n, _ := strconv.ParseUint(newSegs[i], 10, 64)
			newSegs[i] = strconv.FormatUint(n+1, 10)
			out.Segments[last] = types.VersionComponent{Segments: newSegs}
			return out
		}
	}
	// No numeric segment to bump; append ".1" as a new component.
	out.Segments = append(out.Segments, types.VersionComponent{Segments: []string{"1"}})
	return out
}

// String renders v back to conda's textual form.
func String(v types.Version) string {
	var b strings.Builder
	if v.HasEpoch {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	writeComponents(&b, v.Segments)
	if v.HasLocal {
		b.WriteByte('+')
		writeComponents(&b, v.Local)
	}
	return b.String()
}

func writeComponents(b *strings.Builder, components []types.VersionComponent) {
	for i, comp := range components {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strings.Join(comp.Segments, ""))
	}
}

// IsDev reports whether any segment of v is the "dev" tag,
// conda's convention for pre-release development snapshots.
func IsDev(v types.Version) bool {
	for _, comp := range v.Segments {
		for _, seg := range comp.Segments {
			if seg == "dev" {
				return true
			}
		}
	}
	return false
}

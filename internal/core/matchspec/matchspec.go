// Package matchspec parses and evaluates conda match specifications —
// the query language used both to express user-requested specs
// ("numpy >=1.20,<2.0") and a package's own dependency strings.
package matchspec

import (
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/varietal/varietal/internal/core/version"
	"github.com/varietal/varietal/internal/types"
)

// constraintOp is one comma-separated clause of a version spec.
type constraintOp int

const (
	opEq constraintOp = iota
	opNe
	opGe
	opLe
	opGt
	opLt
	opCompatible // ~=
	opStartsWith // trailing ".*" glob, e.g. "3.9.*"
)

type constraint struct {
	op      constraintOp
	version types.Version
}

// VersionSpec is an AND of constraint clauses, e.g. ">=1.20,<2.0".
type VersionSpec struct {
	raw         string
	constraints []constraint
}

// Parse parses a single conda match spec string such as
// "python >=3.9,<3.11", "numpy=1.2=*cpython*", or
// "pytorch[build=cuda*]".
func Parse(raw string) (types.MatchSpec, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return types.MatchSpec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("match spec is empty")
	}

	spec := types.MatchSpec{Raw: trimmed}
	rest := trimmed

	if idx := strings.Index(rest, "::"); idx >= 0 && !strings.ContainsAny(rest[:idx], " <>=!~[") {
		spec.Channel = rest[:idx]
		rest = rest[idx+2:]
	}

	if idx := strings.Index(rest, "["); idx >= 0 && strings.HasSuffix(rest, "]") {
		brackets := rest[idx+1 : len(rest)-1]
		rest = strings.TrimSpace(rest[:idx])
		for _, kv := range splitTopLevel(brackets, ',') {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
			switch key {
			case "build":
				spec.Build = value
			case "build_number":
				spec.BuildNumber = value
			case "channel":
				spec.Channel = value
			case "subdir":
				spec.Subdir = value
			case "md5":
				spec.MD5 = value
			case "sha256":
				spec.SHA256 = value
			}
		}
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return types.MatchSpec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("match spec has no name")
	}

	head := fields[0]
	if strings.Contains(head, "=") {
		parts := strings.SplitN(head, "=", 3)
		spec.Name = parts[0]
		if len(parts) > 1 && parts[1] != "" {
			spec.VersionSpec = parts[1]
		}
		if len(parts) > 2 && parts[2] != "" {
			spec.Build = parts[2]
		}
	} else {
		spec.Name = head
	}

	if len(fields) > 1 && spec.VersionSpec == "" {
		spec.VersionSpec = fields[1]
	}
	if len(fields) > 2 && spec.Build == "" {
		spec.Build = fields[2]
	}

	if spec.Name == "" {
		return types.MatchSpec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("match spec has no name")
	}
	return spec, nil
}

// splitTopLevel splits s on sep, ignoring occurrences inside quotes.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case sep:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// ParseVersionSpec parses the version-spec portion of a match spec
// (what follows the package name) into an evaluable VersionSpec.
func ParseVersionSpec(raw string) (VersionSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return VersionSpec{raw: raw}, nil
	}
	var out VersionSpec
	out.raw = raw
	for _, clause := range strings.Split(raw, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		c, err := parseClause(clause)
		if err != nil {
			return VersionSpec{}, err
		}
		out.constraints = append(out.constraints, c)
	}
	return out, nil
}

func parseClause(clause string) (constraint, error) {
	ops := []struct {
		token string
		op    constraintOp
	}{
		{">=", opGe},
		{"<=", opLe},
		{"==", opEq},
		{"!=", opNe},
		{"~=", opCompatible},
		{">", opGt},
		{"<", opLt},
		{"=", opEq},
	}
	for _, candidate := range ops {
		if strings.HasPrefix(clause, candidate.token) {
			versionText := strings.TrimSpace(strings.TrimPrefix(clause, candidate.token))
			return buildConstraint(candidate.op, versionText)
		}
	}
	// Bare version string: treat a trailing ".*" as a startsWith match,
	// otherwise exact equality.
	return buildConstraint(opEq, clause)
}

func buildConstraint(op constraintOp, versionText string) (constraint, error) {
	if strings.HasSuffix(versionText, ".*") || strings.HasSuffix(versionText, "*") {
		trimmed := strings.TrimSuffix(strings.TrimSuffix(versionText, "*"), ".")
		if trimmed == "" {
			return constraint{op: opStartsWith}, nil
		}
		v, err := version.Parse(trimmed)
		if err != nil {
			return constraint{}, err
		}
		return constraint{op: opStartsWith, version: v}, nil
	}
	v, err := version.Parse(versionText)
	if err != nil {
		return constraint{}, err
	}
	return constraint{op: op, version: v}, nil
}

// Matches reports whether v satisfies every clause of the spec. An
// empty spec matches everything.
func (s VersionSpec) Matches(v types.Version) bool {
	for _, c := range s.constraints {
		if !matchesOne(c, v) {
			return false
		}
	}
	return true
}

func matchesOne(c constraint, v types.Version) bool {
	switch c.op {
	case opStartsWith:
		if len(c.version.Segments) == 0 {
			return true
		}
		return version.StartsWith(v, c.version)
	case opEq:
		return version.Equal(v, c.version)
	case opNe:
		return !version.Equal(v, c.version)
	case opGe:
		return version.Compare(v, c.version) >= 0
	case opLe:
		return version.Compare(v, c.version) <= 0
	case opGt:
		return version.Compare(v, c.version) > 0
	case opLt:
		return version.Compare(v, c.version) < 0
	case opCompatible:
		return version.CompatibleWith(v, c.version)
	default:
		return false
	}
}

// Matches reports whether a package record satisfies a parsed
// MatchSpec: name, version spec, build glob, build number, and subdir
// all narrow the candidate set.
func Matches(spec types.MatchSpec, record types.PackageRecord) bool {
	if spec.Name != "" && spec.Name != "*" && spec.Name != record.Name {
		return false
	}
	if spec.VersionSpec != "" {
		vs, err := ParseVersionSpec(spec.VersionSpec)
		if err != nil {
			return false
		}
		rv, err := version.Parse(record.Version)
		if err != nil {
			return false
		}
		if !vs.Matches(rv) {
			return false
		}
	}
	if spec.Build != "" && !globMatch(spec.Build, record.Build) {
		return false
	}
	if spec.BuildNumber != "" {
		if spec.BuildNumber != itoa(record.BuildNumber) {
			return false
		}
	}
	if spec.Subdir != "" && spec.Subdir != record.Subdir {
		return false
	}
	if spec.Channel != "" && spec.Channel != record.Channel {
		return false
	}
	return true
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// globMatch implements the small subset of glob syntax conda build
// strings use: literal text plus "*" wildcards, no character classes.
func globMatch(pattern, text string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == text
	}
	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(text, parts[i])
		if idx < 0 {
			return false
		}
		text = text[idx+len(parts[i]):]
	}
	last := parts[len(parts)-1]
	return strings.HasSuffix(text, last)
}

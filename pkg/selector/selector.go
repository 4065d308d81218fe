// Package selector decides which models a governance rule applies to.
//
// A selector names an include pattern, an exclude pattern and a match type.
// Patterns may carry several whitespace-separated terms, in which case a
// model matches when any term matches. Matching is case-sensitive.
package selector

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

// Matches reports whether model m is in scope of spec.
// A nil or empty spec selects every model. An unknown match type never
// matches; callers are expected to Validate the spec first.
func Matches(m *core.Model, spec *core.SelectorSpec) bool {
	if spec.IsEmpty() {
		return true
	}

	if len(spec.Paths) > 0 && !matchesPath(m.Path, spec.Paths) {
		return false
	}

	if strings.TrimSpace(spec.Select) != "" {
		ok, valid := matchPattern(m.Name, spec.Select, spec.MatchType)
		if !valid || !ok {
			return false
		}
	}

	if strings.TrimSpace(spec.Exclude) != "" {
		excluded, valid := matchPattern(m.Name, spec.Exclude, spec.EffectiveExcludeMatchType())
		if !valid || excluded {
			return false
		}
	}

	return true
}

// Validate checks that the match types of spec are known.
func Validate(spec *core.SelectorSpec) error {
	if spec == nil {
		return nil
	}
	if _, _, ok := spec.MatchType.Parse(); !ok {
		return fmt.Errorf("%w: unknown match_type %q", core.ErrSelector, spec.MatchType)
	}
	if spec.ExcludeMatchType != "" {
		if _, _, ok := spec.ExcludeMatchType.Parse(); !ok {
			return fmt.Errorf("%w: unknown exclude_match_type %q", core.ErrSelector, spec.ExcludeMatchType)
		}
	}
	for _, p := range spec.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty path prefix", core.ErrSelector)
		}
	}
	return nil
}

// Filter returns the models of ms that spec puts in scope, in input order.
func Filter(ms []*core.Model, spec *core.SelectorSpec) []*core.Model {
	out := make([]*core.Model, 0, len(ms))
	for _, m := range ms {
		if Matches(m, spec) {
			out = append(out, m)
		}
	}
	return out
}

// matchPattern compares name against every term of pattern.
// The second result is false when mt is unknown.
func matchPattern(name, pattern string, mt core.MatchType) (bool, bool) {
	base, negated, ok := mt.Parse()
	if !ok {
		return false, false
	}

	matched := false
	for _, term := range strings.Fields(pattern) {
		if matchTerm(name, term, base) {
			matched = true
			break
		}
	}

	if negated {
		return !matched, true
	}
	return matched, true
}

func matchTerm(name, term string, base core.MatchType) bool {
	switch base {
	case core.MatchExact:
		return name == term
	case core.MatchStartsWith:
		return strings.HasPrefix(name, term)
	case core.MatchEndsWith:
		return strings.HasSuffix(name, term)
	case core.MatchContains:
		return strings.Contains(name, term)
	default:
		return false
	}
}

func matchesPath(path string, prefixes []string) bool {
	// Manifests written on Windows use backslashes.
	path = strings.ReplaceAll(path, `\`, "/")
	for _, p := range prefixes {
		if strings.HasPrefix(path, strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")) {
			return true
		}
	}
	return false
}

package core

import "strings"

// Rule is a declarative governance check: a rule type plus its arguments,
// applied to every model its selector puts in scope.
type Rule struct {
	// Name identifies the rule and keys it in reports
	Name string
	// Description is a human-readable explanation of the rule
	Description string
	// Severity is the rule's tier; empty means the configured default
	Severity Severity
	// Enabled controls evaluation; nil means enabled
	Enabled *bool
	// Type is the rule type identifier resolved against the registry
	Type string
	// Args are the type-specific arguments
	Args map[string]any
	// Selector restricts the rule to a subset of models; nil means all models
	Selector *SelectorSpec
}

// IsEnabled reports whether the rule takes part in evaluation.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// EffectiveSeverity returns the rule severity, falling back to def when unset.
func (r *Rule) EffectiveSeverity(def Severity) Severity {
	if r.Severity == "" {
		return def
	}
	return r.Severity
}

// MatchType selects how a selector pattern is compared with a model name.
type MatchType string

// Match types. Any of them may be prefixed with "not " to invert the match.
const (
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "startswith"
	MatchEndsWith   MatchType = "endswith"
	MatchContains   MatchType = "contains"
)

// DefaultMatchType is used when a selector does not name one.
const DefaultMatchType = MatchStartsWith

// negationPrefix inverts a match type, e.g. "not startswith".
const negationPrefix = "not "

// Parse splits a match type into its base comparison and negation flag.
// An empty match type parses as DefaultMatchType.
func (t MatchType) Parse() (base MatchType, negated bool, ok bool) {
	s := strings.TrimSpace(string(t))
	if s == "" {
		return DefaultMatchType, false, true
	}
	if strings.HasPrefix(s, negationPrefix) {
		negated = true
		s = strings.TrimSpace(strings.TrimPrefix(s, negationPrefix))
	}
	base = MatchType(s)
	switch base {
	case MatchExact, MatchStartsWith, MatchEndsWith, MatchContains:
		return base, negated, true
	default:
		return base, negated, false
	}
}

// SelectorSpec restricts a rule to the models whose names match Select and
// do not match Exclude.
type SelectorSpec struct {
	// Select is the include pattern; empty means every model
	Select string
	// Exclude is the exclude pattern; empty excludes nothing
	Exclude string
	// MatchType applies to Select, and to Exclude unless ExcludeMatchType is set
	MatchType MatchType
	// ExcludeMatchType overrides the match type used for Exclude
	ExcludeMatchType MatchType
	// Paths limits scope to models whose path starts with one of the prefixes
	Paths []string
}

// IsEmpty reports whether the selector puts every model in scope.
func (s *SelectorSpec) IsEmpty() bool {
	return s == nil || (strings.TrimSpace(s.Select) == "" && strings.TrimSpace(s.Exclude) == "" && len(s.Paths) == 0)
}

// EffectiveExcludeMatchType returns the match type used for Exclude.
func (s *SelectorSpec) EffectiveExcludeMatchType() MatchType {
	if s.ExcludeMatchType != "" {
		return s.ExcludeMatchType
	}
	return s.MatchType
}

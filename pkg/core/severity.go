package core

import "strings"

// =============================================================================
// Severity
// =============================================================================

// Severity is the priority tier of a governance rule.
type Severity string

// Severity tiers, most important first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// DefaultSeverity is applied to rules that omit a severity when the
// rules file does not configure a default of its own.
const DefaultSeverity = SeverityMedium

// OverallKey is the threshold key for the pass rate across all severities.
const OverallKey = "overall"

// Severities returns all severities in canonical (most important first) order.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known severities.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// Rank orders severities: critical is 0, low is 3, unknown values sort last.
func (s Severity) Rank() int {
	for i, sev := range Severities() {
		if sev == s {
			return i
		}
	}
	return len(Severities())
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or DefaultSeverity and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.IsValid() {
		return sev, true
	}
	return DefaultSeverity, false
}

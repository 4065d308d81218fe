package core

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// Rate
// =============================================================================

// Rate is a pass-rate percentage that is undefined (N/A) when nothing was
// evaluated. N/A is distinct from zero.
type Rate struct {
	value float64
	valid bool
}

// NewRate computes passed/total as a percentage, N/A when total is zero.
func NewRate(passed, total int) Rate {
	if total <= 0 {
		return Rate{}
	}
	// Multiply first so whole-number percentages are exact.
	return Rate{value: float64(passed) * 100 / float64(total), valid: true}
}

// RateOf returns a defined rate with the given value.
func RateOf(v float64) Rate {
	return Rate{value: v, valid: true}
}

// Value returns the percentage and whether it is defined.
func (r Rate) Value() (float64, bool) {
	return r.value, r.valid
}

// IsNA reports whether the rate is undefined.
func (r Rate) IsNA() bool {
	return !r.valid
}

// Meets reports whether the rate reaches threshold. The comparison is
// inclusive, and an N/A rate never fails a threshold.
func (r Rate) Meets(threshold float64) bool {
	if !r.valid {
		return true
	}
	return r.value >= threshold
}

// String formats the rate as "87.50%" or "N/A".
func (r Rate) String() string {
	if !r.valid {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", r.value)
}

// MarshalJSON encodes N/A as null.
func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

// UnmarshalJSON decodes null as N/A.
func (r *Rate) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*r = Rate{}
		return nil
	}
	*r = RateOf(*v)
	return nil
}

// =============================================================================
// Report
// =============================================================================

// SeverityStats summarizes the outcomes of one severity bucket (or of all
// outcomes, for the overall bucket) against its threshold.
type SeverityStats struct {
	Key               string  `json:"key"`
	Evaluated         int     `json:"evaluated"`
	Passed            int     `json:"passed"`
	Failed            int     `json:"failed"`
	PassRate          Rate    `json:"pass_rate"`
	Threshold         float64 `json:"threshold"`
	ThresholdExplicit bool    `json:"threshold_explicit"`
	Met               bool    `json:"met"`
}

// RuleStats counts the outcomes of one rule.
type RuleStats struct {
	Name      string   `json:"name"`
	Severity  Severity `json:"severity"`
	Evaluated int      `json:"evaluated"`
	Passed    int      `json:"passed"`
	Failed    int      `json:"failed"`
}

// PassRate returns the pass rate of the rule.
func (s RuleStats) PassRate() Rate {
	return NewRate(s.Passed, s.Evaluated)
}

// Report is the aggregate governance result of a run. It is derived purely
// from the outcome sequence and the thresholds.
type Report struct {
	Severities       []SeverityStats `json:"severities"`
	Overall          SeverityStats   `json:"overall"`
	Rules            []RuleStats     `json:"rules"`
	TotalEvaluations int             `json:"total_evaluations"`
	TotalPassed      int             `json:"total_passed"`
	TotalFailed      int             `json:"total_failed"`
	Verdict          bool            `json:"verdict"`
}

// Severity returns the stats of sev.
func (r *Report) Severity(sev Severity) (SeverityStats, bool) {
	for _, s := range r.Severities {
		if s.Key == string(sev) {
			return s, true
		}
	}
	return SeverityStats{}, false
}

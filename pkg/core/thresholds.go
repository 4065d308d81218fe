package core

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultPassRateThreshold is the implicit acceptance threshold for any key
// without an explicit or configured fallback value. It is deliberately the
// strictest value: a missing threshold never silently accepts failures.
const DefaultPassRateThreshold = 100.0

// Thresholds holds the acceptance configuration of a run. It is built once
// per run, passed explicitly to the engine and aggregator, and never mutated.
type Thresholds struct {
	// DefaultSeverity is applied to rules that omit a severity
	DefaultSeverity Severity
	// PassRate maps "overall" or a severity to a minimum pass rate in [0,100]
	PassRate map[string]float64
	// Fallback is the threshold for keys missing from PassRate; nil means DefaultPassRateThreshold
	Fallback *float64
}

// For returns the acceptance threshold of key and whether it was set explicitly.
func (t Thresholds) For(key string) (float64, bool) {
	if v, ok := t.PassRate[key]; ok {
		return v, true
	}
	if t.Fallback != nil {
		return *t.Fallback, false
	}
	return DefaultPassRateThreshold, false
}

// EffectiveDefaultSeverity returns the configured default severity or DefaultSeverity.
func (t Thresholds) EffectiveDefaultSeverity() Severity {
	if t.DefaultSeverity == "" {
		return DefaultSeverity
	}
	return t.DefaultSeverity
}

// Validate checks threshold keys, value ranges and the default severity.
func (t Thresholds) Validate() error {
	var errs []error

	if t.DefaultSeverity != "" && !t.DefaultSeverity.IsValid() {
		errs = append(errs, fmt.Errorf("%w: default severity %q", ErrInvalidSeverity, t.DefaultSeverity))
	}

	keys := make([]string, 0, len(t.PassRate))
	for k := range t.PassRate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k != OverallKey && !Severity(k).IsValid() {
			errs = append(errs, fmt.Errorf("unknown threshold key %q (expected %s or a severity)", k, OverallKey))
			continue
		}
		if v := t.PassRate[k]; v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("threshold %q must be within [0,100], got %g", k, v))
		}
	}

	if t.Fallback != nil && (*t.Fallback < 0 || *t.Fallback > 100) {
		errs = append(errs, fmt.Errorf("default pass rate threshold must be within [0,100], got %g", *t.Fallback))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

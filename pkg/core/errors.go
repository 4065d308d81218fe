package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the engine and its collaborators.
var (
	// ErrConfiguration marks any problem scoped to one rule's definition.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnknownRuleType is returned when a rule type is not registered.
	ErrUnknownRuleType = errors.New("unknown rule type")
	// ErrMalformedArgs is returned when rule arguments are missing or ill-typed.
	ErrMalformedArgs = errors.New("malformed rule arguments")
	// ErrSelector is returned for an invalid selector.
	ErrSelector = errors.New("invalid selector")
	// ErrInvalidSeverity is returned for a severity outside critical/high/medium/low.
	ErrInvalidSeverity = errors.New("invalid severity")
	// ErrEvaluation marks a failure while evaluating a rule against one model.
	ErrEvaluation = errors.New("evaluation error")
	// ErrInvalidRuleSet is returned when the rule sequence itself is not well-formed.
	ErrInvalidRuleSet = errors.New("invalid rule set")
)

// ConfigErrorKind classifies a ConfigError for reporting.
type ConfigErrorKind string

// Configuration error kinds.
const (
	KindUnknownRuleType ConfigErrorKind = "unknown_rule_type"
	KindMalformedArgs   ConfigErrorKind = "malformed_args"
	KindInvalidSelector ConfigErrorKind = "invalid_selector"
	KindInvalidSeverity ConfigErrorKind = "invalid_severity"
)

// ConfigError is a configuration problem attributed to a single rule.
// The rule is skipped; the rest of the run proceeds.
type ConfigError struct {
	Rule string
	Kind ConfigErrorKind
	Err  error
}

// NewConfigError wraps err as a configuration error of rule, deriving the
// kind from the sentinel err wraps.
func NewConfigError(rule string, err error) *ConfigError {
	kind := KindMalformedArgs
	switch {
	case errors.Is(err, ErrUnknownRuleType):
		kind = KindUnknownRuleType
	case errors.Is(err, ErrSelector):
		kind = KindInvalidSelector
	case errors.Is(err, ErrInvalidSeverity):
		kind = KindInvalidSeverity
	}
	return &ConfigError{Rule: rule, Kind: kind, Err: err}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
}

// Unwrap exposes both ErrConfiguration and the underlying cause to errors.Is.
func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfiguration, e.Err}
}

// EvaluationError is a failure of a rule type on one specific model.
// It is reported as a failing outcome, never raised to the caller.
type EvaluationError struct {
	Model string
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error on %s: %v", e.Model, e.Err)
}

// Unwrap exposes both ErrEvaluation and the underlying cause to errors.Is.
func (e *EvaluationError) Unwrap() []error {
	return []error{ErrEvaluation, e.Err}
}

// NewSelectorError reports an invalid selector on rule.
func NewSelectorError(rule string, err error) *ConfigError {
	if !errors.Is(err, ErrSelector) {
		err = fmt.Errorf("%w: %w", ErrSelector, err)
	}
	return &ConfigError{Rule: rule, Kind: KindInvalidSelector, Err: err}
}

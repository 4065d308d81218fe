// Package engine applies governance rules to dbt models.
//
// For every enabled rule the engine validates its severity and selector,
// binds its rule type, resolves the in-scope models and runs the check on
// each of them. Problems with one rule are recorded as configuration errors
// and never stop the other rules.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
	"github.com/leapstack-labs/dbt-governance/pkg/selector"
)

// RuleStatus describes what happened to a rule during evaluation.
type RuleStatus string

// Rule statuses.
const (
	StatusEvaluated     RuleStatus = "evaluated"
	StatusDisabled      RuleStatus = "disabled"
	StatusNotApplicable RuleStatus = "not_applicable"
	StatusConfigError   RuleStatus = "config_error"
)

// RuleRun records the evaluation of one rule.
type RuleRun struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Severity core.Severity `json:"severity"`
	Status   RuleStatus    `json:"status"`
	InScope  int           `json:"in_scope"`
}

// Evaluation is the result of running a rule set over a set of models.
type Evaluation struct {
	// Outcomes in rule order, then model order
	Outcomes []core.Outcome
	// Rules in input order, including disabled ones
	Rules []RuleRun
	// ConfigErrors in rule order
	ConfigErrors []*core.ConfigError
}

// NotApplicable returns the names of rules that matched no model.
func (e *Evaluation) NotApplicable() []string {
	return e.namesWithStatus(StatusNotApplicable)
}

// Skipped returns the names of disabled rules.
func (e *Evaluation) Skipped() []string {
	return e.namesWithStatus(StatusDisabled)
}

// HasConfigErrors reports whether any rule was rejected.
func (e *Evaluation) HasConfigErrors() bool {
	return len(e.ConfigErrors) > 0
}

func (e *Evaluation) namesWithStatus(status RuleStatus) []string {
	var names []string
	for _, r := range e.Rules {
		if r.Status == status {
			names = append(names, r.Name)
		}
	}
	return names
}

// Engine evaluates rules using the rule types of a registry.
type Engine struct {
	registry *ruletype.Registry
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine resolving rule types against reg.
// A nil reg uses ruletype.Default().
func New(reg *ruletype.Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = ruletype.Default()
	}
	e := &Engine{
		registry: reg,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs rules against models. Rules without a severity get
// defaultSeverity (core.DefaultSeverity when empty).
//
// The returned error is non-nil only when the rule set itself is malformed
// (blank or duplicate rule names, invalid default severity); no rule is
// evaluated in that case.
func (e *Engine) Evaluate(models []*core.Model, rules []core.Rule, defaultSeverity core.Severity) (*Evaluation, error) {
	if defaultSeverity == "" {
		defaultSeverity = core.DefaultSeverity
	}
	if err := validateRuleSet(rules, defaultSeverity); err != nil {
		return nil, err
	}

	eval := &Evaluation{Rules: make([]RuleRun, 0, len(rules))}

	for i := range rules {
		rule := &rules[i]
		run := RuleRun{
			Name:     rule.Name,
			Type:     rule.Type,
			Severity: rule.EffectiveSeverity(defaultSeverity),
		}

		if !rule.IsEnabled() {
			run.Status = StatusDisabled
			eval.Rules = append(eval.Rules, run)
			e.logger.Debug("rule disabled", "rule", rule.Name)
			continue
		}

		outcomes, inScope, cfgErr := e.evaluateRule(models, rule, run.Severity)
		switch {
		case cfgErr != nil:
			run.Status = StatusConfigError
			eval.ConfigErrors = append(eval.ConfigErrors, cfgErr)
			e.logger.Debug("rule rejected", "rule", rule.Name, "kind", cfgErr.Kind, "error", cfgErr.Err)
		case inScope == 0:
			run.Status = StatusNotApplicable
			e.logger.Debug("rule not applicable", "rule", rule.Name)
		default:
			run.Status = StatusEvaluated
			run.InScope = inScope
			eval.Outcomes = append(eval.Outcomes, outcomes...)
			e.logger.Debug("rule evaluated", "rule", rule.Name, "models", inScope)
		}
		eval.Rules = append(eval.Rules, run)
	}

	return eval, nil
}

// evaluateRule runs one enabled rule. On a configuration problem it returns
// no outcomes and the error.
func (e *Engine) evaluateRule(models []*core.Model, rule *core.Rule, sev core.Severity) ([]core.Outcome, int, *core.ConfigError) {
	if !sev.IsValid() {
		return nil, 0, core.NewConfigError(rule.Name, fmt.Errorf("%w %q", core.ErrInvalidSeverity, rule.Severity))
	}
	if err := selector.Validate(rule.Selector); err != nil {
		return nil, 0, core.NewSelectorError(rule.Name, err)
	}

	typ, err := e.registry.Lookup(rule.Type)
	if err != nil {
		return nil, 0, core.NewConfigError(rule.Name, err)
	}
	check, err := typ.Bind(ruletype.Args(rule.Args))
	if err != nil {
		return nil, 0, core.NewConfigError(rule.Name, err)
	}

	var outcomes []core.Outcome
	for _, m := range models {
		if !selector.Matches(m, rule.Selector) {
			continue
		}

		res, err := runCheck(check, m)
		if err != nil {
			if errors.Is(err, core.ErrMalformedArgs) {
				return nil, 0, core.NewConfigError(rule.Name, err)
			}
			evalErr := &core.EvaluationError{Model: m.Name, Err: err}
			e.logger.Debug("evaluation error", "rule", rule.Name, "model", m.Key(), "error", err)
			res = ruletype.Result{Message: evalErr.Error()}
		}

		outcomes = append(outcomes, core.Outcome{
			RuleName:  rule.Name,
			ModelName: m.Name,
			ProjectID: m.ProjectID,
			UniqueID:  m.UniqueID,
			Severity:  sev,
			Passed:    res.Passed,
			Message:   res.Message,
		})
	}

	return outcomes, len(outcomes), nil
}

// runCheck calls check, converting a panic into an error.
func runCheck(check ruletype.Check, m *core.Model) (res ruletype.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return check(m)
}

func validateRuleSet(rules []core.Rule, defaultSeverity core.Severity) error {
	if !defaultSeverity.IsValid() {
		return fmt.Errorf("%w: default severity %q", core.ErrInvalidRuleSet, defaultSeverity)
	}

	seen := make(map[string]int, len(rules))
	for i, r := range rules {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("%w: rule #%d has no name", core.ErrInvalidRuleSet, i+1)
		}
		if prev, dup := seen[r.Name]; dup {
			return fmt.Errorf("%w: duplicate rule name %q (rules #%d and #%d)", core.ErrInvalidRuleSet, r.Name, prev+1, i+1)
		}
		seen[r.Name] = i
	}
	return nil
}

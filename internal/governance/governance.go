// Package governance runs one evaluation of a rules file against the
// configured dbt projects: load, filter, evaluate, aggregate.
package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/dbt-governance/internal/config"
	"github.com/leapstack-labs/dbt-governance/internal/manifest"
	"github.com/leapstack-labs/dbt-governance/internal/rulesfile"
	"github.com/leapstack-labs/dbt-governance/pkg/aggregate"
	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/engine"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
	_ "github.com/leapstack-labs/dbt-governance/pkg/ruletype/builtin" // register built-in rule types
)

// ErrFailed is returned by Result.Err when a run does not pass.
var ErrFailed = errors.New("governance check failed")

// Options configures a run.
type Options struct {
	// Config supplies the rules file, projects and target directory
	Config *config.Config
	// Severities restricts the run to rules of these severities; empty means all
	Severities []core.Severity
	// Registry resolves rule types; nil uses ruletype.Default()
	Registry *ruletype.Registry
	// Logger receives debug output; nil discards it
	Logger *slog.Logger
	// Version is recorded in the result
	Version string
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Result is everything one run produced.
type Result struct {
	ID          string
	GeneratedAt time.Time
	Version     string
	RuleSet     *rulesfile.RuleSet
	// Rules are the rules that were evaluated, after severity filtering
	Rules      []core.Rule
	Projects   []*manifest.Project
	Models     []*core.Model
	Evaluation *engine.Evaluation
	Report     *core.Report
}

// Passed reports whether every threshold was met and no rule was rejected.
func (r *Result) Passed() bool {
	return r.Report.Verdict && !r.Evaluation.HasConfigErrors()
}

// Err returns nil when the run passed and an ErrFailed describing why
// it did not otherwise.
func (r *Result) Err() error {
	if r.Evaluation.HasConfigErrors() {
		return fmt.Errorf("%w: %d rule(s) have configuration errors", ErrFailed, len(r.Evaluation.ConfigErrors))
	}
	if r.Report.Verdict {
		return nil
	}
	var failing []string
	for _, s := range r.Report.Severities {
		if !s.Met {
			failing = append(failing, fmt.Sprintf("%s %s < %g%%", s.Key, s.PassRate, s.Threshold))
		}
	}
	if !r.Report.Overall.Met {
		o := r.Report.Overall
		failing = append(failing, fmt.Sprintf("%s %s < %g%%", o.Key, o.PassRate, o.Threshold))
	}
	return fmt.Errorf("%w: pass rate below threshold (%s)", ErrFailed, strings.Join(failing, ", "))
}

// Run loads the rules file and the project manifests named by opts.Config
// and evaluates them.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("governance: no configuration")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	rs, err := LoadRules(opts.Config)
	if err != nil {
		return nil, err
	}
	logger.Debug("rules loaded", "path", rs.Path, "rules", len(rs.Rules), "enabled", rs.Enabled())

	dirs, err := opts.Config.Projects()
	if err != nil {
		return nil, err
	}
	projects, err := manifest.LoadAll(ctx, dirs, opts.Config.TargetDir, logger)
	if err != nil {
		return nil, err
	}
	models := manifest.Models(projects)

	rules := FilterBySeverity(rs.Rules, rs.Thresholds.EffectiveDefaultSeverity(), opts.Severities)
	if len(opts.Severities) > 0 {
		logger.Debug("rules filtered by severity", "severities", opts.Severities, "kept", len(rules), "total", len(rs.Rules))
	}

	eng := engine.New(opts.Registry, engine.WithLogger(logger))
	ev, err := eng.Evaluate(models, rules, rs.Thresholds.EffectiveDefaultSeverity())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rs.Path, err)
	}
	report := aggregate.Aggregate(ev.Outcomes, rs.Thresholds)

	logger.Info("evaluation complete",
		"models", len(models),
		"evaluations", report.TotalEvaluations,
		"failed", report.TotalFailed,
		"config_errors", len(ev.ConfigErrors),
		"verdict", report.Verdict)

	return &Result{
		ID:          uuid.New().String(),
		GeneratedAt: now().UTC(),
		Version:     opts.Version,
		RuleSet:     rs,
		Rules:       rules,
		Projects:    projects,
		Models:      models,
		Evaluation:  ev,
		Report:      report,
	}, nil
}

// LoadRules loads the rules file named by cfg.
func LoadRules(cfg *config.Config) (*rulesfile.RuleSet, error) {
	return rulesfile.Load(cfg.Rules())
}

// ParseSeverities parses severity names, case-insensitively. Each value may
// hold several comma-separated names.
func ParseSeverities(values []string) ([]core.Severity, error) {
	var out []core.Severity
	seen := make(map[core.Severity]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			sev, ok := core.ParseSeverity(part)
			if !ok {
				return nil, fmt.Errorf("%w %q (expected one of %s)", core.ErrInvalidSeverity, part, severityList())
			}
			if !seen[sev] {
				seen[sev] = true
				out = append(out, sev)
			}
		}
	}
	return out, nil
}

// FilterBySeverity keeps the rules whose effective severity is in sevs.
// Rules with an unrecognized severity are kept so the engine reports them.
func FilterBySeverity(rules []core.Rule, def core.Severity, sevs []core.Severity) []core.Rule {
	if len(sevs) == 0 {
		return rules
	}
	keep := make(map[core.Severity]bool, len(sevs))
	for _, s := range sevs {
		keep[s] = true
	}
	var out []core.Rule
	for _, r := range rules {
		sev := r.EffectiveSeverity(def)
		if keep[sev] || !sev.IsValid() {
			out = append(out, r)
		}
	}
	return out
}

func severityList() string {
	names := make([]string, 0, 4)
	for _, s := range core.Severities() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

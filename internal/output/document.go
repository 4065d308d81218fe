package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/dbt-governance/internal/governance"
	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/engine"
)

// Document is the JSON result file of a run.
type Document struct {
	Metadata     Metadata             `json:"metadata"`
	Summary      Summary              `json:"summary"`
	Severities   []core.SeverityStats `json:"severities"`
	Overall      core.SeverityStats   `json:"overall"`
	Rules        []RuleSummary        `json:"rules"`
	ConfigErrors []ConfigErrorEntry   `json:"configuration_errors"`
	Results      []core.Outcome       `json:"results"`
}

// Metadata identifies a run.
type Metadata struct {
	GeneratedAt time.Time     `json:"generated_at"`
	ResultUUID  string        `json:"result_uuid"`
	Version     string        `json:"dbt_governance_version"`
	RulesFile   string        `json:"rules_file"`
	Projects    []ProjectInfo `json:"projects"`
}

// ProjectInfo describes one evaluated dbt project.
type ProjectInfo struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	DbtVersion string `json:"dbt_version,omitempty"`
	Models     int    `json:"models"`
}

// Summary holds the run totals.
type Summary struct {
	TotalEvaluations   int       `json:"total_evaluations"`
	TotalPassed        int       `json:"total_passed"`
	TotalFailed        int       `json:"total_failed"`
	OverallPassRate    core.Rate `json:"overall_pass_rate"`
	Verdict            bool      `json:"verdict"`
	Passed             bool      `json:"passed"`
	RulesEvaluated     int       `json:"rules_evaluated"`
	RulesNotApplicable int       `json:"rules_not_applicable"`
	RulesDisabled      int       `json:"rules_disabled"`
	ConfigErrors       int       `json:"configuration_errors"`
}

// RuleSummary is the result of one rule.
type RuleSummary struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Severity core.Severity     `json:"severity"`
	Status   engine.RuleStatus `json:"status"`
	InScope  int               `json:"in_scope"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	PassRate core.Rate         `json:"pass_rate"`
}

// ConfigErrorEntry is a rule rejected before evaluation.
type ConfigErrorEntry struct {
	Rule    string               `json:"rule"`
	Kind    core.ConfigErrorKind `json:"kind"`
	Message string               `json:"message"`
}

// NewDocument builds the result document of res.
func NewDocument(res *governance.Result) *Document {
	doc := &Document{
		Metadata: Metadata{
			GeneratedAt: res.GeneratedAt,
			ResultUUID:  res.ID,
			Version:     res.Version,
			Projects:    make([]ProjectInfo, 0, len(res.Projects)),
		},
		Severities:   res.Report.Severities,
		Overall:      res.Report.Overall,
		Rules:        make([]RuleSummary, 0, len(res.Evaluation.Rules)),
		ConfigErrors: make([]ConfigErrorEntry, 0, len(res.Evaluation.ConfigErrors)),
		Results:      res.Evaluation.Outcomes,
	}
	if doc.Results == nil {
		doc.Results = []core.Outcome{}
	}
	if res.RuleSet != nil {
		doc.Metadata.RulesFile = res.RuleSet.Path
	}
	for _, p := range res.Projects {
		doc.Metadata.Projects = append(doc.Metadata.Projects, ProjectInfo{
			ID:         p.ID,
			Path:       p.Dir,
			DbtVersion: p.DbtVersion,
			Models:     len(p.Models),
		})
	}

	stats := make(map[string]core.RuleStats, len(res.Report.Rules))
	for _, rs := range res.Report.Rules {
		stats[rs.Name] = rs
	}
	var evaluated, notApplicable, disabled int
	for _, rr := range res.Evaluation.Rules {
		st := stats[rr.Name]
		doc.Rules = append(doc.Rules, RuleSummary{
			Name:     rr.Name,
			Type:     rr.Type,
			Severity: rr.Severity,
			Status:   rr.Status,
			InScope:  rr.InScope,
			Passed:   st.Passed,
			Failed:   st.Failed,
			PassRate: st.PassRate(),
		})
		switch rr.Status {
		case engine.StatusEvaluated:
			evaluated++
		case engine.StatusNotApplicable:
			notApplicable++
		case engine.StatusDisabled:
			disabled++
		}
	}
	for _, ce := range res.Evaluation.ConfigErrors {
		doc.ConfigErrors = append(doc.ConfigErrors, ConfigErrorEntry{
			Rule:    ce.Rule,
			Kind:    ce.Kind,
			Message: ce.Err.Error(),
		})
	}

	doc.Summary = Summary{
		TotalEvaluations:   res.Report.TotalEvaluations,
		TotalPassed:        res.Report.TotalPassed,
		TotalFailed:        res.Report.TotalFailed,
		OverallPassRate:    res.Report.Overall.PassRate,
		Verdict:            res.Report.Verdict,
		Passed:             res.Passed(),
		RulesEvaluated:     evaluated,
		RulesNotApplicable: notApplicable,
		RulesDisabled:      disabled,
		ConfigErrors:       len(doc.ConfigErrors),
	}
	return doc
}

// WriteFile writes doc as indented JSON to path, creating parent
// directories. The file is replaced atomically.
func WriteFile(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".governance-results-*.json")
	if err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

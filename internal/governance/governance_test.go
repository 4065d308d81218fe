package governance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbt-governance/internal/config"
	"github.com/leapstack-labs/dbt-governance/internal/manifest"
	"github.com/leapstack-labs/dbt-governance/internal/rulesfile"
	"github.com/leapstack-labs/dbt-governance/internal/testutil"
	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

const rulesYAML = `
rule_evaluation_config:
  default_severity: medium
  pass_rate_acceptance_thresholds:
    high: 80
    overall: 50
rules:
  - name: facts_tagged
    severity: high
    type: has_tag
    args: {required_tag: fact}
    selector: {select: fct_}
  - name: owned
    severity: high
    type: has_owner
  - name: documented_lineage
    severity: low
    type: has_lineage
`

func setup(t *testing.T, rules string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ProjectPath: testutil.WriteProject(t, dir, "jaffle_shop"),
		RulesFile:   testutil.WriteFile(t, dir, "governance-rules.yml", rules),
		TargetDir:   config.DefaultTargetDir,
	}
}

func TestRun(t *testing.T) {
	cfg := setup(t, rulesYAML)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	res, err := Run(context.Background(), Options{
		Config:  cfg,
		Logger:  testutil.NewTestLogger(t),
		Version: "1.2.3",
		Now:     func() time.Time { return fixed },
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, fixed, res.GeneratedAt)
	assert.Equal(t, "1.2.3", res.Version)
	require.Len(t, res.Projects, 1)
	assert.Equal(t, "jaffle_shop", res.Projects[0].ID)
	assert.Len(t, res.Models, 4)

	// facts_tagged: 1/1, owned: 3/4, has_lineage rejected.
	assert.Equal(t, 5, res.Report.TotalEvaluations)
	assert.Equal(t, 4, res.Report.TotalPassed)
	high, ok := res.Report.Severity(core.SeverityHigh)
	require.True(t, ok)
	rate, defined := high.PassRate.Value()
	assert.True(t, defined)
	assert.Equal(t, 80.0, rate)
	assert.True(t, high.Met)
	assert.True(t, res.Report.Verdict)

	require.Len(t, res.Evaluation.ConfigErrors, 1)
	assert.Equal(t, core.KindUnknownRuleType, res.Evaluation.ConfigErrors[0].Kind)
	assert.False(t, res.Passed())
	assert.ErrorIs(t, res.Err(), ErrFailed)
	assert.Contains(t, res.Err().Error(), "configuration errors")
}

func TestRun_SeverityFilter(t *testing.T) {
	cfg := setup(t, rulesYAML)

	res, err := Run(context.Background(), Options{
		Config:     cfg,
		Severities: []core.Severity{core.SeverityLow},
	})
	require.NoError(t, err)

	require.Len(t, res.Rules, 1)
	assert.Equal(t, "documented_lineage", res.Rules[0].Name)
	assert.Equal(t, 0, res.Report.TotalEvaluations)
}

func TestRun_VerdictFailure(t *testing.T) {
	cfg := setup(t, `
rule_evaluation_config:
  pass_rate_acceptance_thresholds:
    critical: 100
rules:
  - name: pk_tested
    severity: critical
    type: has_primary_key_test
`)

	res, err := Run(context.Background(), Options{Config: cfg})
	require.NoError(t, err)

	assert.False(t, res.Report.Verdict)
	assert.False(t, res.Passed())
	err = res.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, err.Error(), "critical 25.00%")
}

func TestRun_Passing(t *testing.T) {
	cfg := setup(t, `
rules:
  - name: facts_tagged
    type: has_tag
    args: {required_tag: fact}
    selector: {select: fct_}
`)

	res, err := Run(context.Background(), Options{Config: cfg})
	require.NoError(t, err)
	assert.True(t, res.Passed())
	assert.NoError(t, res.Err())
}

func TestRun_Errors(t *testing.T) {
	t.Run("no config", func(t *testing.T) {
		_, err := Run(context.Background(), Options{})
		assert.Error(t, err)
	})

	t.Run("missing rules file", func(t *testing.T) {
		cfg := setup(t, rulesYAML)
		cfg.RulesFile = cfg.RulesFile + ".missing"
		_, err := Run(context.Background(), Options{Config: cfg})
		assert.ErrorIs(t, err, rulesfile.ErrNotFound)
	})

	t.Run("no projects", func(t *testing.T) {
		cfg := setup(t, rulesYAML)
		cfg.ProjectPath = ""
		_, err := Run(context.Background(), Options{Config: cfg})
		assert.ErrorIs(t, err, config.ErrNoProjects)
	})

	t.Run("missing manifest", func(t *testing.T) {
		cfg := setup(t, rulesYAML)
		cfg.ProjectPath = t.TempDir()
		_, err := Run(context.Background(), Options{Config: cfg})
		assert.ErrorIs(t, err, manifest.ErrNotFound)
	})

	t.Run("duplicate rule names", func(t *testing.T) {
		cfg := setup(t, "rules:\n  - name: a\n    type: has_owner\n  - name: a\n    type: has_owner\n")
		_, err := Run(context.Background(), Options{Config: cfg})
		assert.ErrorIs(t, err, core.ErrInvalidRuleSet)
	})
}

func TestParseSeverities(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    []core.Severity
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"single", []string{"high"}, []core.Severity{core.SeverityHigh}, false},
		{"comma separated", []string{"Critical, high"}, []core.Severity{core.SeverityCritical, core.SeverityHigh}, false},
		{"repeated flag with duplicate", []string{"low", "low,medium"}, []core.Severity{core.SeverityLow, core.SeverityMedium}, false},
		{"unknown", []string{"urgent"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeverities(tt.values)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidSeverity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterBySeverity(t *testing.T) {
	rules := []core.Rule{
		{Name: "a", Severity: core.SeverityHigh},
		{Name: "b"},
		{Name: "c", Severity: "urgent"},
		{Name: "d", Severity: core.SeverityLow},
	}

	names := func(rs []core.Rule) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.Name)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, names(FilterBySeverity(rules, core.SeverityMedium, nil)))
	assert.Equal(t, []string{"b", "c"}, names(FilterBySeverity(rules, core.SeverityMedium, []core.Severity{core.SeverityMedium})))
	assert.Equal(t, []string{"a", "b", "c"}, names(FilterBySeverity(rules, core.SeverityHigh, []core.Severity{core.SeverityHigh})))
}

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbt-governance/internal/governance"
	"github.com/leapstack-labs/dbt-governance/internal/manifest"
	"github.com/leapstack-labs/dbt-governance/internal/testutil"
	"github.com/leapstack-labs/dbt-governance/pkg/aggregate"
	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/engine"
)

func result(t *testing.T) *governance.Result {
	t.Helper()
	models := testutil.JaffleShop()
	rules := []core.Rule{
		{Name: "owned", Severity: core.SeverityHigh, Type: "has_owner"},
		{Name: "broken", Type: "has_lineage"},
	}
	th := core.Thresholds{PassRate: map[string]float64{"high": 70}}

	ev, err := engine.New(nil).Evaluate(models, rules, core.SeverityMedium)
	require.NoError(t, err)
	return &governance.Result{
		ID:          "run",
		GeneratedAt: time.Unix(1767225600, 0).UTC(),
		Projects:    []*manifest.Project{{ID: "jaffle_shop", Models: models}},
		Models:      models,
		Evaluation:  ev,
		Report:      aggregate.Aggregate(ev.Outcomes, th),
	}
}

func TestObserve(t *testing.T) {
	c := New()
	c.Observe(result(t))

	assert.Equal(t, 75.0, promtestutil.ToFloat64(c.passRate.WithLabelValues("high")))
	assert.Equal(t, 70.0, promtestutil.ToFloat64(c.threshold.WithLabelValues("high")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(c.thresholdMet.WithLabelValues("high")))
	assert.Equal(t, 100.0, promtestutil.ToFloat64(c.threshold.WithLabelValues("overall")))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(c.thresholdMet.WithLabelValues("overall")))
	assert.Equal(t, 3.0, promtestutil.ToFloat64(c.evaluations.WithLabelValues("high", "passed")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(c.evaluations.WithLabelValues("high", "failed")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(c.ruleFailures.WithLabelValues("owned", "high")))
	assert.Equal(t, 4.0, promtestutil.ToFloat64(c.models.WithLabelValues("jaffle_shop")))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(c.verdict))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(c.configErrors))
	assert.Equal(t, 1767225600.0, promtestutil.ToFloat64(c.lastRun))

	// Severities without evaluations export no pass rate.
	assert.Equal(t, 2, promtestutil.CollectAndCount(c.passRate))
}

func TestObserve_ReplacesPreviousRun(t *testing.T) {
	c := New()
	res := result(t)
	c.Observe(res)

	res.Report.Rules = nil
	c.Observe(res)
	assert.Equal(t, 0, promtestutil.CollectAndCount(c.ruleFailures))
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "dbt_governance.prom")

	require.NoError(t, WriteTextfile(path, result(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `dbt_governance_pass_rate_percent{severity="high"} 75`)
	assert.Contains(t, out, `dbt_governance_rule_failures{rule="owned",severity="high"} 1`)
	assert.Contains(t, out, "dbt_governance_verdict 0")
	assert.Contains(t, out, "# HELP dbt_governance_configuration_errors")
}

// Package aggregate turns rule outcomes into a governance report: pass
// rates per severity and overall, compared with acceptance thresholds.
package aggregate

import (
	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

type counts struct {
	passed, failed int
}

func (c *counts) add(passed bool) {
	if passed {
		c.passed++
	} else {
		c.failed++
	}
}

// Aggregate computes the report for outcomes under thresholds.
// Every severity appears in the report, in canonical order, even when it has
// no outcomes. A bucket with no outcomes has an N/A rate and never fails its
// threshold. The verdict holds when every severity and the overall bucket
// meet their thresholds.
func Aggregate(outcomes []core.Outcome, thresholds core.Thresholds) *core.Report {
	bySeverity := make(map[core.Severity]*counts, 4)
	for _, sev := range core.Severities() {
		bySeverity[sev] = &counts{}
	}
	var overall counts

	var ruleOrder []string
	byRule := make(map[string]*core.RuleStats)

	for _, o := range outcomes {
		overall.add(o.Passed)
		if c, ok := bySeverity[o.Severity]; ok {
			c.add(o.Passed)
		}

		rs, ok := byRule[o.RuleName]
		if !ok {
			rs = &core.RuleStats{Name: o.RuleName, Severity: o.Severity}
			byRule[o.RuleName] = rs
			ruleOrder = append(ruleOrder, o.RuleName)
		}
		rs.Evaluated++
		if o.Passed {
			rs.Passed++
		} else {
			rs.Failed++
		}
	}

	report := &core.Report{
		Severities:       make([]core.SeverityStats, 0, 4),
		Rules:            make([]core.RuleStats, 0, len(ruleOrder)),
		TotalEvaluations: overall.passed + overall.failed,
		TotalPassed:      overall.passed,
		TotalFailed:      overall.failed,
		Verdict:          true,
	}

	for _, sev := range core.Severities() {
		stats := bucket(string(sev), *bySeverity[sev], thresholds)
		report.Severities = append(report.Severities, stats)
		report.Verdict = report.Verdict && stats.Met
	}

	report.Overall = bucket(core.OverallKey, overall, thresholds)
	report.Verdict = report.Verdict && report.Overall.Met

	for _, name := range ruleOrder {
		report.Rules = append(report.Rules, *byRule[name])
	}

	return report
}

func bucket(key string, c counts, thresholds core.Thresholds) core.SeverityStats {
	threshold, explicit := thresholds.For(key)
	rate := core.NewRate(c.passed, c.passed+c.failed)
	return core.SeverityStats{
		Key:               key,
		Evaluated:         c.passed + c.failed,
		Passed:            c.passed,
		Failed:            c.failed,
		PassRate:          rate,
		Threshold:         threshold,
		ThresholdExplicit: explicit,
		Met:               rate.Meets(threshold),
	}
}

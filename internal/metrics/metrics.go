// Package metrics exports governance results as Prometheus metrics, written
// to a textfile for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leapstack-labs/dbt-governance/internal/governance"
	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

const namespace = "dbt_governance"

// Collector holds the metrics of the last observed run.
type Collector struct {
	reg *prometheus.Registry

	passRate     *prometheus.GaugeVec
	threshold    *prometheus.GaugeVec
	thresholdMet *prometheus.GaugeVec
	evaluations  *prometheus.GaugeVec
	ruleFailures *prometheus.GaugeVec
	verdict      prometheus.Gauge
	configErrors prometheus.Gauge
	models       *prometheus.GaugeVec
	lastRun      prometheus.Gauge
}

// New creates a collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		reg: reg,
		passRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pass_rate_percent",
			Help:      "Pass rate per severity; absent when nothing was evaluated",
		}, []string{"severity"}),
		threshold: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold_percent",
			Help:      "Acceptance threshold per severity",
		}, []string{"severity"}),
		thresholdMet: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold_met",
			Help:      "1 when the severity met its threshold",
		}, []string{"severity"}),
		evaluations: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluations",
			Help:      "Rule evaluations per severity and result",
		}, []string{"severity", "result"}),
		ruleFailures: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rule",
			Name:      "failures",
			Help:      "Failing models per rule",
		}, []string{"rule", "severity"}),
		verdict: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "verdict",
			Help:      "1 when every threshold was met and no rule was rejected",
		}),
		configErrors: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "configuration_errors",
			Help:      "Rules rejected before evaluation",
		}),
		models: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models",
			Help:      "Models loaded per project",
		}, []string{"project"}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last run",
		}),
	}
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

// Observe replaces the metric values with those of res.
func (c *Collector) Observe(res *governance.Result) {
	c.passRate.Reset()
	c.threshold.Reset()
	c.thresholdMet.Reset()
	c.evaluations.Reset()
	c.ruleFailures.Reset()
	c.models.Reset()

	for _, s := range res.Report.Severities {
		c.observeBucket(s)
	}
	c.observeBucket(res.Report.Overall)
	for _, rs := range res.Report.Rules {
		c.ruleFailures.WithLabelValues(rs.Name, string(rs.Severity)).Set(float64(rs.Failed))
	}
	for _, p := range res.Projects {
		c.models.WithLabelValues(p.ID).Set(float64(len(p.Models)))
	}
	c.verdict.Set(boolValue(res.Passed()))
	c.configErrors.Set(float64(len(res.Evaluation.ConfigErrors)))
	c.lastRun.Set(float64(res.GeneratedAt.Unix()))
}

func (c *Collector) observeBucket(s core.SeverityStats) {
	if v, ok := s.PassRate.Value(); ok {
		c.passRate.WithLabelValues(s.Key).Set(v)
	}
	c.threshold.WithLabelValues(s.Key).Set(s.Threshold)
	c.thresholdMet.WithLabelValues(s.Key).Set(boolValue(s.Met))
	c.evaluations.WithLabelValues(s.Key, "passed").Set(float64(s.Passed))
	c.evaluations.WithLabelValues(s.Key, "failed").Set(float64(s.Failed))
}

// WriteTextfile writes the metrics in the Prometheus text format to path.
func (c *Collector) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// WriteTextfile observes res and writes the metrics to path.
func WriteTextfile(path string, res *governance.Result) error {
	c := New()
	c.Observe(res)
	return c.WriteTextfile(path)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

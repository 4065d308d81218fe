// Package main provides tests for the dbt-governance CLI.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/dbt-governance/internal/cli"
	"github.com/leapstack-labs/dbt-governance/internal/testutil"
)

const rulesYAML = `
rule_evaluation_config:
  pass_rate_acceptance_thresholds:
    critical: 100
rules:
  - name: owned
    severity: critical
    type: has_owner
  - name: facts_tagged
    severity: high
    type: has_tag
    args: {required_tag: fact}
    selector: {select: fct_}
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--global-config", "-"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(out, "dbt-governance") {
		t.Errorf("version output should contain 'dbt-governance', got: %s", out)
	}
}

func TestHelpCommand(t *testing.T) {
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Errorf("help command error = %v", err)
	}

	expectedCommands := []string{"evaluate", "list-rules", "rule-types", "validate-config", "validate-rules", "history", "completion"}
	for _, expected := range expectedCommands {
		if !strings.Contains(out, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, out)
		}
	}
}

func TestEvaluateCommand(t *testing.T) {
	dir := t.TempDir()
	project := testutil.WriteProject(t, dir, "jaffle_shop")
	rules := testutil.WriteFile(t, dir, "governance-rules.yml", rulesYAML)
	results := filepath.Join(dir, "governance-results.json")

	out, err := runCLI(t,
		"--project-path", project,
		"--rules-file", rules,
		"--output-path", results,
		"--output", "json",
		"evaluate")
	// dim/fct/stg_orders are owned, stg_customers is not: critical 75% < 100%.
	if err == nil {
		t.Fatalf("evaluate should fail, output: %s", out)
	}
	if !strings.Contains(err.Error(), "critical 75.00%") {
		t.Errorf("error should name the failing severity, got: %v", err)
	}

	data, err := os.ReadFile(results)
	if err != nil {
		t.Fatalf("results file not written: %v", err)
	}
	var doc struct {
		Summary struct {
			TotalEvaluations int  `json:"total_evaluations"`
			Passed           bool `json:"passed"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("results file is not JSON: %v", err)
	}
	if doc.Summary.TotalEvaluations != 5 {
		t.Errorf("total_evaluations = %d, want 5", doc.Summary.TotalEvaluations)
	}
	if doc.Summary.Passed {
		t.Error("summary should not pass")
	}
}

func TestEvaluateCommandEnv(t *testing.T) {
	dir := t.TempDir()
	project := testutil.WriteProject(t, dir, "jaffle_shop")
	rules := testutil.WriteFile(t, dir, "governance-rules.yml", rulesYAML)
	t.Setenv("DBT_PROJECT_PATHS", project)
	t.Setenv("DBT_GLOBAL_RULES_FILE", rules)

	_, err := runCLI(t, "--output-path", "-", "--output", "json", "evaluate", "--severity", "high")
	if err != nil {
		t.Errorf("high rules should pass, got: %v", err)
	}
}

func TestValidateRulesCommand(t *testing.T) {
	dir := t.TempDir()
	rules := testutil.WriteFile(t, dir, "governance-rules.yml", rulesYAML)

	out, err := runCLI(t, "--output", "text", "validate-rules", rules)
	if err != nil {
		t.Errorf("validate-rules error = %v", err)
	}
	if !strings.Contains(out, "2 rules") {
		t.Errorf("output should count the rules, got: %s", out)
	}
}

func TestInvalidOutputFlag(t *testing.T) {
	_, err := runCLI(t, "--output", "yaml", "list-rules")
	if err == nil {
		t.Fatal("expected error for unknown output mode")
	}
}

func TestCompletionCommand(t *testing.T) {
	shells := []string{"bash", "zsh", "fish", "powershell"}
	for _, shell := range shells {
		t.Run(shell, func(t *testing.T) {
			out, err := runCLI(t, "completion", shell)
			if err != nil {
				t.Errorf("completion %s error = %v", shell, err)
			}
			if out == "" {
				t.Errorf("completion %s produced no output", shell)
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCLI(t, "unknown-command")
	if err == nil {
		t.Error("expected error for unknown command")
	}
}

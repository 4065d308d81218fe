package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/engine"
)

// ReportOptions controls how much of a result is printed.
type ReportOptions struct {
	// Verbose lists passing outcomes as well as failures
	Verbose bool
	// MaxFailures caps the listed failures in text and markdown; 0 lists all
	MaxFailures int
}

var titleCaser = cases.Title(language.English)

// title turns "critical" into "Critical" and "not_applicable" into "Not Applicable".
func title(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

// RenderReport prints doc in the renderer's mode.
func RenderReport(r *Renderer, doc *Document, opts ReportOptions) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return r.JSON(doc)
	case ModeMarkdown:
		renderReportMarkdown(r, doc, opts)
	default:
		renderReportText(r, doc, opts)
	}
	return nil
}

func severityTable(doc *Document) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Severity", "Evaluated", "Passed", "Failed", "Pass Rate", "Threshold", "Status"})
	for _, s := range doc.Severities {
		t.AppendRow(severityRow(title(s.Key), s))
	}
	t.AppendFooter(severityRow(title(doc.Overall.Key), doc.Overall))
	return t
}

func severityRow(label string, s core.SeverityStats) table.Row {
	threshold := fmt.Sprintf("%g%%", s.Threshold)
	if !s.ThresholdExplicit {
		threshold += " (default)"
	}
	return table.Row{label, s.Evaluated, s.Passed, s.Failed, s.PassRate.String(), threshold, metLabel(s)}
}

func metLabel(s core.SeverityStats) string {
	switch {
	case s.PassRate.IsNA():
		return "n/a"
	case s.Met:
		return "met"
	default:
		return "NOT MET"
	}
}

func rulesTable(doc *Document) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Rule", "Type", "Severity", "Status", "Passed", "Failed", "Pass Rate"})
	for _, rs := range doc.Rules {
		rate := rs.PassRate.String()
		if rs.Status != engine.StatusEvaluated {
			rate = "-"
		}
		t.AppendRow(table.Row{rs.Name, rs.Type, title(string(rs.Severity)), title(string(rs.Status)), rs.Passed, rs.Failed, rate})
	}
	return t
}

// listedOutcomes returns the outcomes to print and how many were left out.
func listedOutcomes(doc *Document, opts ReportOptions) ([]core.Outcome, int) {
	var out []core.Outcome
	for _, o := range doc.Results {
		if opts.Verbose || !o.Passed {
			out = append(out, o)
		}
	}
	if opts.MaxFailures > 0 && len(out) > opts.MaxFailures {
		return out[:opts.MaxFailures], len(out) - opts.MaxFailures
	}
	return out, 0
}

func projectLine(doc *Document) string {
	parts := make([]string, 0, len(doc.Metadata.Projects))
	for _, p := range doc.Metadata.Projects {
		parts = append(parts, fmt.Sprintf("%s (%d models)", p.ID, p.Models))
	}
	return strings.Join(parts, ", ")
}

func renderReportText(r *Renderer, doc *Document, opts ReportOptions) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("dbt Governance Report"))
	r.Println(styles.Muted.Render("Projects:   " + projectLine(doc)))
	if doc.Metadata.RulesFile != "" {
		r.Println(styles.Muted.Render("Rules file: " + doc.Metadata.RulesFile))
	}
	r.Println("")

	r.Println(styles.Header2.Render("Severities"))
	st := severityTable(doc)
	st.SetStyle(table.StyleLight)
	r.Println(st.Render())
	r.Println("")

	if len(doc.Rules) > 0 {
		r.Println(styles.Header2.Render("Rules"))
		rt := rulesTable(doc)
		rt.SetStyle(table.StyleLight)
		r.Println(rt.Render())
		r.Println("")
	}

	if len(doc.ConfigErrors) > 0 {
		r.Println(styles.Header2.Render("Configuration Errors"))
		for _, ce := range doc.ConfigErrors {
			r.Println(styles.Error.Render("  ✗ ") + styles.Bold.Render(ce.Rule) + styles.Muted.Render(" ["+string(ce.Kind)+"]"))
			r.Println("    " + ce.Message)
		}
		r.Println("")
	}

	outcomes, more := listedOutcomes(doc, opts)
	if len(outcomes) > 0 {
		heading := "Failures"
		if opts.Verbose {
			heading = "Results"
		}
		r.Println(styles.Header2.Render(heading))
		for _, o := range outcomes {
			mark := styles.Error.Render("  ✗ ")
			if o.Passed {
				mark = styles.Success.Render("  ✓ ")
			}
			line := mark + styles.Bold.Render(o.RuleName) + " " + o.ProjectID + "." + o.ModelName
			if o.Message != "" {
				line += styles.Muted.Render(": " + o.Message)
			}
			r.Println(line)
		}
		if more > 0 {
			r.Println(styles.Muted.Render(fmt.Sprintf("  ... and %d more (see the results file)", more)))
		}
		r.Println("")
	}

	summary := fmt.Sprintf("%d evaluations, %d passed, %d failed", doc.Summary.TotalEvaluations, doc.Summary.TotalPassed, doc.Summary.TotalFailed)
	if doc.Summary.Passed {
		r.Println(styles.Pass.Render("PASS") + " " + summary)
	} else {
		r.Println(styles.Fail.Render("FAIL") + " " + summary)
	}
}

func renderReportMarkdown(r *Renderer, doc *Document, opts ReportOptions) {
	r.Println("# dbt Governance Report")
	r.Println("")
	r.Printf("- **Projects:** %s\n", projectLine(doc))
	if doc.Metadata.RulesFile != "" {
		r.Printf("- **Rules file:** `%s`\n", doc.Metadata.RulesFile)
	}
	verdict := "PASS"
	if !doc.Summary.Passed {
		verdict = "FAIL"
	}
	r.Printf("- **Verdict:** %s (%d evaluations, %d passed, %d failed)\n", verdict,
		doc.Summary.TotalEvaluations, doc.Summary.TotalPassed, doc.Summary.TotalFailed)
	r.Println("")

	r.Println("## Severities")
	r.Println("")
	r.Println(severityTable(doc).RenderMarkdown())
	r.Println("")

	if len(doc.Rules) > 0 {
		r.Println("## Rules")
		r.Println("")
		r.Println(rulesTable(doc).RenderMarkdown())
		r.Println("")
	}

	if len(doc.ConfigErrors) > 0 {
		r.Println("## Configuration Errors")
		r.Println("")
		for _, ce := range doc.ConfigErrors {
			r.Printf("- **%s** (`%s`): %s\n", ce.Rule, ce.Kind, ce.Message)
		}
		r.Println("")
	}

	outcomes, more := listedOutcomes(doc, opts)
	if len(outcomes) > 0 {
		if opts.Verbose {
			r.Println("## Results")
		} else {
			r.Println("## Failures")
		}
		r.Println("")
		for _, o := range outcomes {
			box := "[ ]"
			if o.Passed {
				box = "[x]"
			}
			line := fmt.Sprintf("- %s **%s** `%s.%s`", box, o.RuleName, o.ProjectID, o.ModelName)
			if o.Message != "" {
				line += ": " + o.Message
			}
			r.Println(line)
		}
		if more > 0 {
			r.Printf("- ... and %d more\n", more)
		}
	}
}

package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
)

// RuleEntry is one rule as listed by list-rules.
type RuleEntry struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        string        `json:"type"`
	Severity    core.Severity `json:"severity"`
	Enabled     bool          `json:"enabled"`
	Selector    string        `json:"selector,omitempty"`
}

// NewRuleEntries describes rules, resolving default severities.
func NewRuleEntries(rules []core.Rule, def core.Severity) []RuleEntry {
	out := make([]RuleEntry, 0, len(rules))
	for i := range rules {
		r := &rules[i]
		out = append(out, RuleEntry{
			Name:        r.Name,
			Description: r.Description,
			Type:        r.Type,
			Severity:    r.EffectiveSeverity(def),
			Enabled:     r.IsEnabled(),
			Selector:    DescribeSelector(r.Selector),
		})
	}
	return out
}

// DescribeSelector renders a selector as "select startswith fct_, exclude ...".
func DescribeSelector(s *core.SelectorSpec) string {
	if s.IsEmpty() {
		return ""
	}
	var parts []string
	mt := s.MatchType
	if mt == "" {
		mt = core.DefaultMatchType
	}
	if strings.TrimSpace(s.Select) != "" {
		parts = append(parts, fmt.Sprintf("select %s %q", mt, s.Select))
	}
	if strings.TrimSpace(s.Exclude) != "" {
		emt := s.EffectiveExcludeMatchType()
		if emt == "" {
			emt = mt
		}
		parts = append(parts, fmt.Sprintf("exclude %s %q", emt, s.Exclude))
	}
	if len(s.Paths) > 0 {
		parts = append(parts, "paths "+strings.Join(s.Paths, " "))
	}
	return strings.Join(parts, ", ")
}

// RenderRules prints the rules of a rules file.
func RenderRules(r *Renderer, entries []RuleEntry) error {
	if r.EffectiveMode() == ModeJSON {
		return r.JSON(entries)
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Rule", "Type", "Severity", "Enabled", "Selector"})
	for _, e := range entries {
		enabled := "yes"
		if !e.Enabled {
			enabled = "no"
		}
		sel := e.Selector
		if sel == "" {
			sel = "all models"
		}
		t.AppendRow(table.Row{e.Name, e.Type, title(string(e.Severity)), enabled, sel})
	}

	if r.EffectiveMode() == ModeMarkdown {
		r.Println("# Governance Rules")
		r.Println("")
		r.Println(t.RenderMarkdown())
		return nil
	}
	styles := r.Styles()
	r.Println(styles.Header1.Render(fmt.Sprintf("Governance Rules (%d)", len(entries))))
	t.SetStyle(table.StyleLight)
	r.Println(t.Render())
	return nil
}

// RuleTypeEntry describes a registered rule type.
type RuleTypeEntry struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Args        []string `json:"args"`
	Example     string   `json:"example,omitempty"`
}

// NewRuleTypeEntries describes types in the given order.
func NewRuleTypeEntries(types []ruletype.Type) []RuleTypeEntry {
	out := make([]RuleTypeEntry, 0, len(types))
	for _, t := range types {
		args := t.ArgKeys
		if args == nil {
			args = []string{}
		}
		out = append(out, RuleTypeEntry{ID: t.ID, Description: t.Description, Args: args, Example: t.Example})
	}
	return out
}

// RenderRuleTypes prints rule types. With verbose, examples are included.
func RenderRuleTypes(r *Renderer, entries []RuleTypeEntry, verbose bool) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return r.JSON(entries)
	case ModeMarkdown:
		r.Println("# Rule Types")
		r.Println("")
		for _, e := range entries {
			r.Printf("## %s\n\n%s\n\n", e.ID, e.Description)
			if len(e.Args) > 0 {
				r.Printf("**Arguments:** `%s`\n\n", strings.Join(e.Args, "`, `"))
			}
			if verbose && e.Example != "" {
				r.Printf("```yaml\n%s\n```\n\n", strings.TrimRight(e.Example, "\n"))
			}
		}
		return nil
	}

	styles := r.Styles()
	r.Println(styles.Header1.Render(fmt.Sprintf("Rule Types (%d)", len(entries))))
	r.Println("")
	for _, e := range entries {
		r.Println(styles.Bold.Render(e.ID))
		r.Println("  " + e.Description)
		if len(e.Args) > 0 {
			r.Println(styles.Muted.Render("  args: " + strings.Join(e.Args, ", ")))
		}
		if verbose && e.Example != "" {
			for _, line := range strings.Split(strings.TrimRight(e.Example, "\n"), "\n") {
				r.Println(styles.Muted.Render("    " + line))
			}
		}
		r.Println("")
	}
	return nil
}

package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbt-governance/internal/governance"
	"github.com/leapstack-labs/dbt-governance/internal/output"
	"github.com/leapstack-labs/dbt-governance/internal/rulesfile"
	"github.com/leapstack-labs/dbt-governance/pkg/engine"
)

// ErrInvalidRules is returned by validate-rules when a rule is rejected.
var ErrInvalidRules = errors.New("rules file is invalid")

type rulesReport struct {
	Path     string                    `json:"path"`
	Valid    bool                      `json:"valid"`
	Rules    int                       `json:"rules"`
	Enabled  int                       `json:"enabled"`
	Problems []output.ConfigErrorEntry `json:"problems"`
}

// NewValidateRulesCommand creates the validate-rules command.
func NewValidateRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-rules [rules-file]",
		Short: "Check a rules file without evaluating it",
		Long: `Check the rules file against its schema and check every rule: the rule
type exists, its arguments are valid, its severity and selector are well
formed. No dbt project is needed.`,
		Example: `  dbt-governance validate-rules
  dbt-governance validate-rules governance/rules.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)

			var (
				rs  *rulesfile.RuleSet
				err error
			)
			if len(args) == 1 {
				rs, err = rulesfile.Load(args[0])
			} else {
				rs, err = governance.LoadRules(cmdCtx.Cfg)
			}
			if err != nil {
				return err
			}

			report, err := validateRules(rs)
			if err != nil {
				return err
			}
			renderRulesReport(cmdCtx.Renderer, report)
			if !report.Valid {
				return fmt.Errorf("%w: %d rule(s) rejected", ErrInvalidRules, len(report.Problems))
			}
			return nil
		},
	}
	return cmd
}

// validateRules binds every enabled rule without any model in scope, which
// surfaces all configuration errors.
func validateRules(rs *rulesfile.RuleSet) (*rulesReport, error) {
	ev, err := engine.New(nil).Evaluate(nil, rs.Rules, rs.Thresholds.EffectiveDefaultSeverity())
	if err != nil {
		return nil, err
	}
	report := &rulesReport{
		Path:     rs.Path,
		Rules:    len(rs.Rules),
		Enabled:  rs.Enabled(),
		Problems: make([]output.ConfigErrorEntry, 0, len(ev.ConfigErrors)),
	}
	for _, ce := range ev.ConfigErrors {
		report.Problems = append(report.Problems, output.ConfigErrorEntry{Rule: ce.Rule, Kind: ce.Kind, Message: ce.Err.Error()})
	}
	report.Valid = len(report.Problems) == 0
	return report, nil
}

func renderRulesReport(r *output.Renderer, report *rulesReport) {
	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(report)
		return
	}
	styles := r.Styles()
	summary := fmt.Sprintf("%s: %d rules (%d enabled)", report.Path, report.Rules, report.Enabled)
	if report.Valid {
		r.Println(styles.Success.Render("✓ ") + summary)
		return
	}
	r.Println(styles.Error.Render("✗ ") + summary)
	for _, p := range report.Problems {
		r.Printf("  %s [%s]: %s\n", styles.Bold.Render(p.Rule), p.Kind, p.Message)
	}
}

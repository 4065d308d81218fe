package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbt-governance/internal/governance"
	"github.com/leapstack-labs/dbt-governance/internal/output"
)

// NewListRulesCommand creates the list-rules command.
func NewListRulesCommand() *cobra.Command {
	var severities []string
	cmd := &cobra.Command{
		Use:   "list-rules",
		Short: "List the rules of the rules file",
		Long: `List the rules defined in the rules file with their type, effective
severity and selector.`,
		Example: `  dbt-governance list-rules
  dbt-governance list-rules --severity critical -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)

			sevs, err := governance.ParseSeverities(severities)
			if err != nil {
				return err
			}
			rs, err := governance.LoadRules(cmdCtx.Cfg)
			if err != nil {
				return err
			}

			def := rs.Thresholds.EffectiveDefaultSeverity()
			rules := governance.FilterBySeverity(rs.Rules, def, sevs)
			return output.RenderRules(cmdCtx.Renderer, output.NewRuleEntries(rules, def))
		},
	}
	cmd.Flags().StringSliceVarP(&severities, "severity", "s", nil, "Only list rules of these severities")
	return cmd
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbt-governance/internal/output"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
	_ "github.com/leapstack-labs/dbt-governance/pkg/ruletype/builtin" // register built-in rule types
)

// NewRuleTypesCommand creates the rule-types command.
func NewRuleTypesCommand() *cobra.Command {
	var examples bool
	cmd := &cobra.Command{
		Use:   "rule-types [type]",
		Short: "List available rule types",
		Long: `List the rule types a rule can reference with "type", with the arguments
each accepts. Pass a type to show only that one.`,
		Example: `  dbt-governance rule-types
  dbt-governance rule-types has_meta --examples`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return ruletype.Default().IDs(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			reg := ruletype.Default()

			types := reg.All()
			if len(args) == 1 {
				t, err := reg.Lookup(args[0])
				if err != nil {
					return err
				}
				types = []ruletype.Type{t}
				examples = true
			}
			return output.RenderRuleTypes(cmdCtx.Renderer, output.NewRuleTypeEntries(types), examples)
		},
	}
	cmd.Flags().BoolVarP(&examples, "examples", "e", false, "Show a rules file example for each type")
	return cmd
}

// Package cli provides the command-line interface for dbt-governance.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbt-governance/internal/cli/commands"
	"github.com/leapstack-labs/dbt-governance/internal/config"
	"github.com/leapstack-labs/dbt-governance/internal/logging"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// commands that run without loading configuration
var skipConfig = map[string]bool{
	"help":             true,
	"completion":       true,
	"__complete":       true,
	"__completeNoDesc": true,
	"version":          true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile    string
		globalFile string
	)

	rootCmd := &cobra.Command{
		Use:   "dbt-governance",
		Short: "Governance rules for dbt projects",
		Long: `dbt-governance evaluates governance rules against the metadata of one or
more dbt projects (models, tags, meta, tests) and reports pass rates per
severity against acceptance thresholds.

It reads target/manifest.json and never runs dbt or touches the warehouse.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfig[cmd.Name()] {
				return nil
			}

			loader, err := config.NewLoader(config.Options{
				ConfigFile:       cfgFile,
				GlobalConfigFile: globalFile,
				Flags:            cmd.Root().PersistentFlags(),
			})
			if err != nil {
				return err
			}
			cfg, err := loader.Config()
			if err != nil {
				return err
			}

			// validate-config reports problems itself
			level, format := cfg.Log.Level, cfg.Log.Format
			if cmd.Name() != "validate-config" {
				if err := cfg.Validate(); err != nil {
					return err
				}
			} else if cfg.Validate() != nil {
				level, format = config.DefaultLogLevel, config.DefaultLogFormat
			}
			logger, err := logging.New(cmd.ErrOrStderr(), level, format)
			if err != nil {
				return err
			}
			if len(cfg.Sources) > 0 {
				logger.Debug("configuration loaded", "sources", cfg.Sources)
			}

			ctx := commands.WithConfig(cmd.Context(), cfg, loader)
			ctx = logging.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./dbt-governance.yml)")
	pf.StringVar(&globalFile, "global-config", "", `global config file (default: ~/.dbt-governance/config.yml, "-" to disable)`)
	pf.String("project-path", "", "dbt project directory (overrides project_paths)")
	pf.StringSlice("project-paths", nil, "dbt project directories evaluated together")
	pf.StringP("rules-file", "r", "", "governance rules file (default: governance-rules.yml)")
	pf.String("target-dir", "", "dbt target directory, relative to each project (default: target)")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	pf.String("output-path", "", "JSON results file (default: governance-results.json, \"-\" to skip)")
	pf.String("history-path", "", "SQLite database recording run history")
	pf.String("metrics-file", "", "Prometheus textfile to write metrics to")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.String("log-format", "", "Log format (text|logfmt|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.OutputModes, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return logging.AllLevels, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return logging.AllFormats, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewEvaluateCommand(Version))
	rootCmd.AddCommand(commands.NewListRulesCommand())
	rootCmd.AddCommand(commands.NewRuleTypesCommand())
	rootCmd.AddCommand(commands.NewValidateConfigCommand())
	rootCmd.AddCommand(commands.NewValidateRulesCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for dbt-governance.

To load completions:

Bash:
  $ source <(dbt-governance completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ dbt-governance completion bash > /etc/bash_completion.d/dbt-governance
  # macOS:
  $ dbt-governance completion bash > $(brew --prefix)/etc/bash_completion.d/dbt-governance

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ dbt-governance completion zsh > "${fpath[1]}/_dbt-governance"

Fish:
  $ dbt-governance completion fish | source

  # To load completions for each session, execute once:
  $ dbt-governance completion fish > ~/.config/fish/completions/dbt-governance.fish

PowerShell:
  PS> dbt-governance completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}

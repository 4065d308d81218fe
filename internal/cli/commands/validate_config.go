package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbt-governance/internal/output"
)

// ErrInvalidConfig is returned by validate-config when problems were found.
var ErrInvalidConfig = errors.New("configuration is invalid")

type setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type configReport struct {
	Valid    bool      `json:"valid"`
	Sources  []string  `json:"sources"`
	Settings []setting `json:"settings"`
	Problems []string  `json:"problems"`
}

// NewValidateConfigCommand creates the validate-config command.
func NewValidateConfigCommand() *cobra.Command {
	var skipPaths bool
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Check the tool configuration",
		Long: `Show the effective configuration and where it was read from, and report
unknown keys, invalid values and missing project directories or rules file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			report := validateConfig(cmdCtx, skipPaths)
			if err := renderConfigReport(cmdCtx.Renderer, report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("%w: %d problem(s)", ErrInvalidConfig, len(report.Problems))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipPaths, "skip-paths", false, "Do not check that projects and the rules file exist")
	return cmd
}

func validateConfig(cmdCtx *CommandContext, skipPaths bool) *configReport {
	cfg := cmdCtx.Cfg
	report := &configReport{Sources: cfg.Sources, Problems: []string{}}
	if report.Sources == nil {
		report.Sources = []string{}
	}

	if cmdCtx.Loader != nil {
		if _, err := cmdCtx.Loader.Strict(); err != nil {
			report.Problems = append(report.Problems, err.Error())
		}
	}
	if err := cfg.Validate(); err != nil {
		report.Problems = append(report.Problems, splitJoined(err)...)
	}
	if !skipPaths {
		if err := cfg.ValidatePaths(); err != nil {
			report.Problems = append(report.Problems, splitJoined(err)...)
		}
	}

	projects, _ := cfg.Projects()
	report.Settings = []setting{
		{"projects", strings.Join(projects, ", ")},
		{"rules_file", cfg.Rules()},
		{"target_dir", cfg.TargetDir},
		{"output", cfg.Output},
		{"output_path", cfg.OutputPath},
		{"history_path", cfg.HistoryPath},
		{"metrics_file", cfg.MetricsFile},
		{"log.level", cfg.Log.Level},
		{"log.format", cfg.Log.Format},
	}
	report.Valid = len(report.Problems) == 0
	return report
}

// splitJoined flattens an errors.Join result into its messages.
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func renderConfigReport(r *output.Renderer, report *configReport) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(report)
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Setting", "Value"})
	for _, s := range report.Settings {
		v := s.Value
		if v == "" {
			v = "-"
		}
		t.AppendRow(table.Row{s.Key, v})
	}

	sources := "defaults only"
	if len(report.Sources) > 0 {
		sources = strings.Join(report.Sources, ", ")
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println("# Configuration")
		r.Println("")
		r.Printf("Sources: %s\n\n", sources)
		r.Println(t.RenderMarkdown())
		r.Println("")
		for _, p := range report.Problems {
			r.Printf("- %s\n", p)
		}
		if report.Valid {
			r.Println("Configuration is valid.")
		}
		return nil
	}

	styles := r.Styles()
	r.Println(styles.Header1.Render("Configuration"))
	r.Println(styles.Muted.Render("Sources: " + sources))
	t.SetStyle(table.StyleLight)
	r.Println(t.Render())
	if report.Valid {
		r.Println(styles.Success.Render("✓ Configuration is valid"))
		return nil
	}
	for _, p := range report.Problems {
		r.Println(styles.Error.Render("✗ ") + p)
	}
	return nil
}

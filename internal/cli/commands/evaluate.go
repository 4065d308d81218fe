package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbt-governance/internal/governance"
	"github.com/leapstack-labs/dbt-governance/internal/manifest"
	"github.com/leapstack-labs/dbt-governance/internal/metrics"
	"github.com/leapstack-labs/dbt-governance/internal/output"
	"github.com/leapstack-labs/dbt-governance/internal/state"
	"github.com/leapstack-labs/dbt-governance/internal/watch"
	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

// EvaluateOptions holds options for the evaluate command.
type EvaluateOptions struct {
	Severities  []string // Only evaluate rules of these severities
	Watch       bool     // Re-evaluate when manifests or the rules file change
	Verbose     bool     // List passing outcomes too
	MaxFailures int      // Cap on listed failures; 0 lists all
	NoFail      bool     // Exit zero even when governance fails
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(version string) *cobra.Command {
	opts := &EvaluateOptions{}
	cmd := &cobra.Command{
		Use:     "evaluate",
		Aliases: []string{"eval", "check"},
		Short:   "Evaluate governance rules against dbt projects",
		Long: `Evaluate the rules of the rules file against the models of every configured
dbt project and report pass rates per severity.

Models are read from target/manifest.json of each project, so run
` + "`dbt parse`" + ` first. The run fails (non-zero exit) when a pass rate is below
its threshold or a rule has a configuration error.

The full result is written as JSON to output_path (default
governance-results.json).`,
		Example: `  # Evaluate the project in the current directory
  dbt-governance evaluate --project-path .

  # Only critical and high rules
  dbt-governance evaluate --severity critical,high

  # Re-evaluate on every dbt parse
  dbt-governance evaluate --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvaluate(cmd, opts, version)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Severities, "severity", "s", nil, "Only evaluate rules of these severities (critical, high, medium, low)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-evaluate when a manifest or the rules file changes")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "V", false, "List passing results as well as failures")
	cmd.Flags().IntVar(&opts.MaxFailures, "max-failures", 50, "Maximum failures to list (0 lists all)")
	cmd.Flags().BoolVar(&opts.NoFail, "no-fail", false, "Exit with status 0 even when governance fails")

	_ = cmd.RegisterFlagCompletionFunc("severity", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"critical", "high", "medium", "low"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runEvaluate(cmd *cobra.Command, opts *EvaluateOptions, version string) error {
	cmdCtx := NewCommandContext(cmd)

	sevs, err := governance.ParseSeverities(opts.Severities)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !opts.Watch {
		return evaluateOnce(ctx, cmdCtx, opts, sevs, version)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchAndEvaluate(ctx, cmdCtx, opts, sevs, version)
}

// evaluateOnce runs one evaluation and publishes its result.
func evaluateOnce(ctx context.Context, cmdCtx *CommandContext, opts *EvaluateOptions, sevs []core.Severity, version string) error {
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	res, err := governance.Run(ctx, governance.Options{
		Config:     cfg,
		Severities: sevs,
		Logger:     logger,
		Version:    version,
	})
	if err != nil {
		return err
	}

	doc := output.NewDocument(res)
	if cfg.OutputPath != "" && cfg.OutputPath != "-" {
		if err := output.WriteFile(cfg.OutputPath, doc); err != nil {
			return err
		}
		logger.Info("results written", "path", cfg.OutputPath)
	}

	if err := output.RenderReport(cmdCtx.Renderer, doc, output.ReportOptions{
		Verbose:     opts.Verbose,
		MaxFailures: opts.MaxFailures,
	}); err != nil {
		return err
	}

	// History and metrics are best effort; they never change the verdict.
	if cfg.HistoryPath != "" {
		if err := recordHistory(ctx, cfg.HistoryPath, res, cmdCtx); err != nil {
			cmdCtx.Renderer.Warnf("failed to record run history: %v", err)
		}
	}
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile, res); err != nil {
			cmdCtx.Renderer.Warnf("%v", err)
		}
	}

	if opts.NoFail {
		return nil
	}
	return res.Err()
}

func recordHistory(ctx context.Context, path string, res *governance.Result, cmdCtx *CommandContext) error {
	store, err := state.Open(ctx, path, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return store.SaveRun(ctx, state.RunFromResult(res))
}

// watchAndEvaluate evaluates once, then again whenever an input changes,
// until ctx is cancelled.
func watchAndEvaluate(ctx context.Context, cmdCtx *CommandContext, opts *EvaluateOptions, sevs []core.Severity, version string) error {
	files, err := watchedFiles(cmdCtx)
	if err != nil {
		return err
	}
	w, err := watch.New(files, watch.WithLogger(cmdCtx.Logger))
	if err != nil {
		return err
	}

	run := func(ctx context.Context) {
		if err := evaluateOnce(ctx, cmdCtx, opts, sevs, version); err != nil && !errors.Is(err, governance.ErrFailed) {
			cmdCtx.Renderer.Warnf("%v", err)
		}
	}

	run(ctx)
	styles := cmdCtx.Renderer.Styles()
	cmdCtx.Renderer.Println(styles.Muted.Render(fmt.Sprintf("Watching %d file(s) for changes. Press Ctrl+C to stop.", len(files))))

	return w.Run(ctx, func(ctx context.Context, changed []string) {
		for _, f := range changed {
			cmdCtx.Renderer.Println(styles.Muted.Render("Changed: " + f))
		}
		run(ctx)
	})
}

// watchedFiles returns the rules file and the manifest of every project.
func watchedFiles(cmdCtx *CommandContext) ([]string, error) {
	dirs, err := cmdCtx.Cfg.Projects()
	if err != nil {
		return nil, err
	}
	files := []string{cmdCtx.Cfg.Rules()}
	for _, dir := range dirs {
		files = append(files, manifest.Path(dir, cmdCtx.Cfg.TargetDir))
	}
	return files, nil
}

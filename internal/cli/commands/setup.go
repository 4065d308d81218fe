// Package commands implements the dbt-governance subcommands.
package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbt-governance/internal/config"
	"github.com/leapstack-labs/dbt-governance/internal/logging"
	"github.com/leapstack-labs/dbt-governance/internal/output"
)

type (
	configKey struct{}
	loaderKey struct{}
)

// WithConfig stores the loaded configuration and its loader in ctx.
func WithConfig(ctx context.Context, cfg *config.Config, loader *config.Loader) context.Context {
	ctx = context.WithValue(ctx, configKey{}, cfg)
	return context.WithValue(ctx, loaderKey{}, loader)
}

// CommandContext holds what a command needs to run.
type CommandContext struct {
	Cfg      *config.Config
	Loader   *config.Loader
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the configuration, logger and renderer
// prepared by the root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	if cfg == nil {
		// Commands run without the root command (tests) get the defaults.
		cfg = &config.Config{
			OutputPath: config.DefaultOutputPath,
			Output:     config.DefaultOutput,
			TargetDir:  config.DefaultTargetDir,
			Log:        config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat},
		}
	}
	loader, _ := ctx.Value(loaderKey{}).(*config.Loader)

	mode, err := output.ParseMode(cfg.Output)
	if err != nil {
		mode = output.ModeAuto
	}
	return &CommandContext{
		Cfg:      cfg,
		Loader:   loader,
		Logger:   logging.FromContext(ctx),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbt-governance/internal/output"
	"github.com/leapstack-labs/dbt-governance/internal/state"
)

// ErrNoHistory is returned when no history database is configured.
var ErrNoHistory = errors.New("run history is not enabled")

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		limit int
		prune int
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded governance runs",
		Long: `List recent governance runs recorded in the history database, or show
one run in detail. Runs are recorded by evaluate when history_path is set.`,
		Example: `  dbt-governance history --history-path .dbt-governance/history.db
  dbt-governance history 3f1c1a7e-...
  dbt-governance history --prune 100`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			if cmdCtx.Cfg.HistoryPath == "" {
				return fmt.Errorf("%w\nHint: set history_path in the config or pass --history-path", ErrNoHistory)
			}

			ctx := cmd.Context()
			store, err := state.Open(ctx, cmdCtx.Cfg.HistoryPath, cmdCtx.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if prune > 0 {
				n, err := store.PruneRuns(ctx, prune)
				if err != nil {
					return err
				}
				cmdCtx.Renderer.Printf("Deleted %d run(s).\n", n)
				return nil
			}

			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				return renderRun(cmdCtx.Renderer, run, time.Now())
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			return renderRuns(cmdCtx.Renderer, runs, time.Now())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list (0 lists all)")
	cmd.Flags().IntVar(&prune, "prune", 0, "Delete all but the given number of most recent runs")
	return cmd
}

type runEntry struct {
	ID               string    `json:"id"`
	GeneratedAt      time.Time `json:"generated_at"`
	Version          string    `json:"version"`
	Projects         []string  `json:"projects"`
	Passed           bool      `json:"passed"`
	TotalEvaluations int       `json:"total_evaluations"`
	TotalFailed      int       `json:"total_failed"`
	ConfigErrors     int       `json:"configuration_errors"`
}

func newRunEntry(r *state.Run) runEntry {
	projects := r.Projects
	if projects == nil {
		projects = []string{}
	}
	return runEntry{
		ID:               r.ID,
		GeneratedAt:      r.GeneratedAt,
		Version:          r.Version,
		Projects:         projects,
		Passed:           r.Passed,
		TotalEvaluations: r.TotalEvaluations,
		TotalFailed:      r.TotalFailed,
		ConfigErrors:     r.ConfigErrors,
	}
}

func passLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func renderRuns(r *output.Renderer, runs []*state.Run, now time.Time) error {
	if r.EffectiveMode() == output.ModeJSON {
		entries := make([]runEntry, 0, len(runs))
		for _, run := range runs {
			entries = append(entries, newRunEntry(run))
		}
		return r.JSON(entries)
	}

	if len(runs) == 0 {
		r.Println("No runs recorded.")
		return nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Run", "When", "Projects", "Result", "Pass Rate", "Failed", "Config Errors"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			shortID(run.ID),
			humanize.RelTime(run.GeneratedAt, now, "ago", "from now"),
			strings.Join(run.Projects, ", "),
			passLabel(run.Passed),
			run.PassRate().String(),
			run.TotalFailed,
			run.ConfigErrors,
		})
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(t.RenderMarkdown())
		return nil
	}
	t.SetStyle(table.StyleLight)
	r.Println(t.Render())
	return nil
}

func renderRun(r *output.Renderer, run *state.Run, now time.Time) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			runEntry
			Severities []state.SeverityResult `json:"severities"`
			Rules      []state.RuleResult     `json:"rules"`
		}{newRunEntry(run), run.Severities, run.Rules})
	}

	styles := r.Styles()
	r.Println(styles.Header1.Render("Run " + run.ID))
	r.Println(styles.Muted.Render(fmt.Sprintf("%s (%s), dbt-governance %s",
		run.GeneratedAt.Local().Format(time.DateTime), humanize.RelTime(run.GeneratedAt, now, "ago", "from now"), run.Version)))
	if run.RulesFile != "" {
		r.Println(styles.Muted.Render("Rules file: " + run.RulesFile))
	}
	r.Println(styles.Muted.Render("Projects: " + strings.Join(run.Projects, ", ")))
	r.Println("")

	st := table.NewWriter()
	st.AppendHeader(table.Row{"Severity", "Evaluated", "Passed", "Failed", "Pass Rate", "Threshold", "Met"})
	for _, s := range run.Severities {
		met := "yes"
		if !s.Met {
			met = "NO"
		}
		st.AppendRow(table.Row{s.Severity, s.Evaluated, s.Passed, s.Failed, s.PassRate.String(), fmt.Sprintf("%g%%", s.Threshold), met})
	}

	rt := table.NewWriter()
	rt.AppendHeader(table.Row{"Rule", "Severity", "Evaluated", "Passed", "Failed"})
	for _, rr := range run.Rules {
		rt.AppendRow(table.Row{rr.Name, rr.Severity, rr.Evaluated, rr.Passed, rr.Failed})
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(st.RenderMarkdown())
		r.Println("")
		r.Println(rt.RenderMarkdown())
	} else {
		st.SetStyle(table.StyleLight)
		rt.SetStyle(table.StyleLight)
		r.Println(st.Render())
		r.Println(rt.Render())
	}
	r.Println("")
	r.Printf("%s %d evaluations, %d passed, %d failed, %d configuration error(s)\n",
		passLabel(run.Passed), run.TotalEvaluations, run.TotalPassed, run.TotalFailed, run.ConfigErrors)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

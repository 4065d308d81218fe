package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/dbt-governance/internal/governance"
	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

// timeLayout is fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded governance run.
type Run struct {
	ID               string
	GeneratedAt      time.Time
	Version          string
	RulesFile        string
	Projects         []string
	Verdict          bool
	Passed           bool
	TotalEvaluations int
	TotalPassed      int
	TotalFailed      int
	ConfigErrors     int
	// Severities and Rules are only loaded by GetRun
	Severities []SeverityResult
	Rules      []RuleResult
}

// SeverityResult is the stats of one severity bucket of a run.
type SeverityResult struct {
	Severity  string    `json:"severity"`
	Evaluated int       `json:"evaluated"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	PassRate  core.Rate `json:"pass_rate"`
	Threshold float64   `json:"threshold"`
	Met       bool      `json:"met"`
}

// RuleResult is the stats of one rule of a run.
type RuleResult struct {
	Name      string        `json:"name"`
	Severity  core.Severity `json:"severity"`
	Evaluated int           `json:"evaluated"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
}

// PassRate returns the overall pass rate of the run.
func (r *Run) PassRate() core.Rate {
	return core.NewRate(r.TotalPassed, r.TotalEvaluations)
}

// RunFromResult converts an evaluation result into a history record.
func RunFromResult(res *governance.Result) *Run {
	run := &Run{
		ID:               res.ID,
		GeneratedAt:      res.GeneratedAt,
		Version:          res.Version,
		Verdict:          res.Report.Verdict,
		Passed:           res.Passed(),
		TotalEvaluations: res.Report.TotalEvaluations,
		TotalPassed:      res.Report.TotalPassed,
		TotalFailed:      res.Report.TotalFailed,
		ConfigErrors:     len(res.Evaluation.ConfigErrors),
	}
	if res.RuleSet != nil {
		run.RulesFile = res.RuleSet.Path
	}
	for _, p := range res.Projects {
		run.Projects = append(run.Projects, p.ID)
	}
	buckets := append(append([]core.SeverityStats(nil), res.Report.Severities...), res.Report.Overall)
	for _, s := range buckets {
		run.Severities = append(run.Severities, SeverityResult{
			Severity:  s.Key,
			Evaluated: s.Evaluated,
			Passed:    s.Passed,
			Failed:    s.Failed,
			PassRate:  s.PassRate,
			Threshold: s.Threshold,
			Met:       s.Met,
		})
	}
	for _, rs := range res.Report.Rules {
		run.Rules = append(run.Rules, RuleResult{
			Name:      rs.Name,
			Severity:  rs.Severity,
			Evaluated: rs.Evaluated,
			Passed:    rs.Passed,
			Failed:    rs.Failed,
		})
	}
	return run
}

// SaveRun records a run with its severity and rule stats.
func (s *Store) SaveRun(ctx context.Context, run *Run) (err error) {
	if s.db == nil {
		return ErrNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, generated_at, version, rules_file, projects, verdict, passed,
			total_evaluations, total_passed, total_failed, config_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.GeneratedAt.UTC().Format(timeLayout), run.Version, run.RulesFile,
		strings.Join(run.Projects, ","), run.Verdict, run.Passed,
		run.TotalEvaluations, run.TotalPassed, run.TotalFailed, run.ConfigErrors,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, sev := range run.Severities {
		var rate sql.NullFloat64
		if v, ok := sev.PassRate.Value(); ok {
			rate = sql.NullFloat64{Float64: v, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_severities (run_id, severity, evaluated, passed, failed, pass_rate, threshold, met)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, sev.Severity, sev.Evaluated, sev.Passed, sev.Failed, rate, sev.Threshold, sev.Met,
		)
		if err != nil {
			return fmt.Errorf("failed to insert severity %s: %w", sev.Severity, err)
		}
	}

	for i, rr := range run.Rules {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_rules (run_id, position, name, severity, evaluated, passed, failed)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, rr.Name, string(rr.Severity), rr.Evaluated, rr.Passed, rr.Failed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rule %s: %w", rr.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("run recorded", "id", run.ID, "passed", run.Passed)
	return nil
}

const runColumns = `id, generated_at, version, rules_file, projects, verdict, passed,
	total_evaluations, total_passed, total_failed, config_errors`

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY generated_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its severity and rule stats.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if run.Severities, err = s.runSeverities(ctx, id); err != nil {
		return nil, err
	}
	if run.Rules, err = s.runRules(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun returns the most recent run, or nil when there is none.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return s.GetRun(ctx, runs[0].ID)
}

// PruneRuns deletes all but the keep most recent runs and returns how many
// were deleted.
func (s *Store) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY generated_at DESC, id LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) runSeverities(ctx context.Context, id string) ([]SeverityResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, evaluated, passed, failed, pass_rate, threshold, met
		FROM run_severities WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run severities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SeverityResult
	for rows.Next() {
		var sev SeverityResult
		var rate sql.NullFloat64
		if err := rows.Scan(&sev.Severity, &sev.Evaluated, &sev.Passed, &sev.Failed, &rate, &sev.Threshold, &sev.Met); err != nil {
			return nil, fmt.Errorf("failed to scan run severity: %w", err)
		}
		if rate.Valid {
			sev.PassRate = core.RateOf(rate.Float64)
		}
		out = append(out, sev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run severities: %w", err)
	}
	sortSeverities(out)
	return out, nil
}

func (s *Store) runRules(ctx context.Context, id string) ([]RuleResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, severity, evaluated, passed, failed FROM run_rules WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RuleResult
	for rows.Next() {
		var rr RuleResult
		var sev string
		if err := rows.Scan(&rr.Name, &sev, &rr.Evaluated, &rr.Passed, &rr.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run rule: %w", err)
		}
		rr.Severity = core.Severity(sev)
		out = append(out, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run rules: %w", err)
	}
	return out, nil
}

// sortSeverities orders buckets critical, high, medium, low, overall.
func sortSeverities(s []SeverityResult) {
	rank := func(key string) int {
		if key == core.OverallKey {
			return len(core.Severities()) + 1
		}
		return core.Severity(key).Rank()
	}
	sort.SliceStable(s, func(i, j int) bool {
		return rank(s[i].Severity) < rank(s[j].Severity)
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run       Run
		generated string
		projects  string
	)
	err := sc.Scan(&run.ID, &generated, &run.Version, &run.RulesFile, &projects, &run.Verdict, &run.Passed,
		&run.TotalEvaluations, &run.TotalPassed, &run.TotalFailed, &run.ConfigErrors)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.GeneratedAt, err = time.Parse(timeLayout, generated)
	if err != nil {
		return nil, fmt.Errorf("run %s: invalid generated_at %q: %w", run.ID, generated, err)
	}
	if projects != "" {
		run.Projects = strings.Split(projects, ",")
	}
	return &run, nil
}

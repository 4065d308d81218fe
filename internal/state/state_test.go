package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbt-governance/internal/testutil"
	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history", "governance.db"), testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id string, at time.Time, passed bool) *Run {
	return &Run{
		ID:               id,
		GeneratedAt:      at,
		Version:          "0.3.0",
		RulesFile:        "governance-rules.yml",
		Projects:         []string{"jaffle_shop", "analytics"},
		Verdict:          passed,
		Passed:           passed,
		TotalEvaluations: 4,
		TotalPassed:      3,
		TotalFailed:      1,
		Severities: []SeverityResult{
			{Severity: "overall", Evaluated: 4, Passed: 3, Failed: 1, PassRate: core.RateOf(75), Threshold: 100},
			{Severity: "high", Evaluated: 4, Passed: 3, Failed: 1, PassRate: core.RateOf(75), Threshold: 70, Met: true},
			{Severity: "critical", Threshold: 100, Met: true},
		},
		Rules: []RuleResult{
			{Name: "owned", Severity: core.SeverityHigh, Evaluated: 4, Passed: 3, Failed: 1},
		},
	}
}

func TestOpen_Migrates(t *testing.T) {
	s := openTestStore(t)

	v, err := s.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	// Migrating again is a no-op.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSaveAndGetRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Date(2026, 5, 4, 3, 2, 1, 500, time.UTC)

	require.NoError(t, s.SaveRun(ctx, sampleRun("run-1", at, false)))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)

	assert.True(t, at.Equal(got.GeneratedAt))
	assert.Equal(t, []string{"jaffle_shop", "analytics"}, got.Projects)
	assert.False(t, got.Passed)
	assert.Equal(t, 4, got.TotalEvaluations)

	require.Len(t, got.Severities, 3)
	assert.Equal(t, "critical", got.Severities[0].Severity)
	assert.True(t, got.Severities[0].PassRate.IsNA())
	assert.Equal(t, "high", got.Severities[1].Severity)
	assert.Equal(t, "overall", got.Severities[2].Severity)
	v, ok := got.Severities[2].PassRate.Value()
	assert.True(t, ok)
	assert.Equal(t, 75.0, v)

	require.Len(t, got.Rules, 1)
	assert.Equal(t, RuleResult{Name: "owned", Severity: core.SeverityHigh, Evaluated: 4, Passed: 3, Failed: 1}, got.Rules[0])

	assert.Equal(t, "75.00%", got.PassRate().String())
}

func TestGetRun_NotFound(t *testing.T) {
	_, err := openTestStore(t).GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.SaveRun(ctx, sampleRun("a", base, true)))
	require.NoError(t, s.SaveRun(ctx, sampleRun("b", base.Add(2*time.Hour), false)))
	require.NoError(t, s.SaveRun(ctx, sampleRun("c", base.Add(time.Hour+time.Millisecond), true)))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, "c", runs[1].ID)
	assert.Equal(t, "a", runs[2].ID)
	assert.Empty(t, runs[0].Severities, "list does not load details")

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	latest, err = s.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "b", latest.ID)
	assert.Len(t, latest.Severities, 3)

	n, err := s.PruneRuns(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	runs, err = s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)
}

func TestSaveRun_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	run := sampleRun("dup", time.Now(), true)

	require.NoError(t, s.SaveRun(ctx, run))
	assert.Error(t, s.SaveRun(ctx, run))
}

func TestStore_NotOpen(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.SaveRun(ctx, sampleRun("x", time.Now(), true)), ErrNotOpen)
	_, err := s.ListRuns(ctx, 1)
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.GetRun(ctx, "x")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, s.Migrate(ctx), ErrNotOpen)
	assert.NoError(t, s.Close())
}

func TestSaveRun_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		errMsg    string
	}{
		{
			name: "begin fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(assert.AnError)
			},
			errMsg: "failed to begin transaction",
		},
		{
			name: "run insert fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO runs").WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			errMsg: "failed to insert run",
		},
		{
			name: "severity insert fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec("INSERT INTO run_severities").WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			errMsg: "failed to insert severity overall",
		},
		{
			name: "commit fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
				for range 3 {
					mock.ExpectExec("INSERT INTO run_severities").WillReturnResult(sqlmock.NewResult(1, 1))
				}
				mock.ExpectExec("INSERT INTO run_rules").WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit().WillReturnError(assert.AnError)
			},
			errMsg: "failed to commit run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.setupMock(mock)

			err = New(db, nil).SaveRun(context.Background(), sampleRun("r", time.Now(), true))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestListRuns_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT (.+) FROM runs").WillReturnError(assert.AnError)

	_, err = New(db, nil).ListRuns(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

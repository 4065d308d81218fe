package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/expr"
)

func testModel() *core.Model {
	return &core.Model{
		Name:      "fct_orders",
		ProjectID: "shop",
		Path:      "models/marts/fct_orders.sql",
		Tags:      []string{"finance", "daily"},
		Meta: map[string]any{
			"owner":       "data-team",
			"blank":       "  ",
			"primary_key": []any{"order_id"},
			"empty_list":  []any{},
			"rows":        10,
		},
		Tests: []core.TestDescriptor{
			{Type: "unique", Column: "order_id"},
			{Type: "not_null", Column: "order_id"},
		},
	}
}

func TestCompileAndEval(t *testing.T) {
	t.Parallel()

	env, err := expr.NewEnvironment()
	require.NoError(t, err)

	tests := []struct {
		name       string
		expression string
		expected   bool
	}{
		{"name prefix", `name.startsWith("fct_")`, true},
		{"tag membership", `"finance" in tags`, true},
		{"missing tag", `"pii" in tags`, false},
		{"meta value", `"owner" in meta && meta.owner == "data-team"`, true},
		{"nonEmpty string", `nonEmpty(meta.owner)`, true},
		{"nonEmpty blank", `nonEmpty(meta.blank)`, false},
		{"nonEmpty list", `nonEmpty(meta.primary_key)`, true},
		{"nonEmpty empty list", `nonEmpty(meta.empty_list)`, false},
		{"hasTest", `hasTest(tests, "unique")`, true},
		{"hasTest missing", `hasTest(tests, "relationships")`, false},
		{"tests exists", `tests.exists(t, t["type"] == "not_null" && t.column == "order_id")`, true},
		{"path", `path.contains("/marts/")`, true},
		{"project", `project == "shop"`, true},
	}

	m := testModel()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prg, err := env.Compile(tt.expression)
			require.NoError(t, err)

			got, err := prg.Eval(m)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	env := expr.MustNewEnvironment()

	_, err := env.Compile(`name.startsWith(`)
	require.Error(t, err)

	_, err = env.Compile(`name`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must return bool")

	_, err = env.Compile(`unknownVar == 1`)
	require.Error(t, err)
}

func TestEvalRuntimeError(t *testing.T) {
	t.Parallel()

	env := expr.MustNewEnvironment()
	prg, err := env.Compile(`meta.missing == "x"`)
	require.NoError(t, err)

	_, err = prg.Eval(testModel())
	require.Error(t, err)
	assert.Equal(t, `meta.missing == "x"`, prg.String())
}

func TestActivation_NilCollections(t *testing.T) {
	t.Parallel()

	env := expr.MustNewEnvironment()
	prg, err := env.Compile(`size(tags) == 0 && size(meta) == 0 && size(tests) == 0`)
	require.NoError(t, err)

	got, err := prg.Eval(&core.Model{Name: "bare"})
	require.NoError(t, err)
	assert.True(t, got)
}

package selector

import (
	"testing"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func model(name string) *core.Model {
	return &core.Model{Name: name, ProjectID: "shop", Path: "models/" + name + ".sql"}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name  string
		model string
		spec  *core.SelectorSpec
		want  bool
	}{
		{"nil spec", "fct_orders", nil, true},
		{"empty spec", "fct_orders", &core.SelectorSpec{}, true},
		{"default startswith", "fct_orders", &core.SelectorSpec{Select: "fct_"}, true},
		{"default startswith miss", "stg_orders", &core.SelectorSpec{Select: "fct_"}, false},
		{"exact", "fct_orders", &core.SelectorSpec{Select: "fct_orders", MatchType: core.MatchExact}, true},
		{"exact miss", "fct_orders_v2", &core.SelectorSpec{Select: "fct_orders", MatchType: core.MatchExact}, false},
		{"contains", "dim_customer_daily", &core.SelectorSpec{Select: "customer", MatchType: core.MatchContains}, true},
		{"endswith", "orders_snapshot", &core.SelectorSpec{Select: "_snapshot", MatchType: core.MatchEndsWith}, true},
		{"case sensitive", "FCT_orders", &core.SelectorSpec{Select: "fct_"}, false},
		{"negated", "stg_orders", &core.SelectorSpec{Select: "fct_", MatchType: "not startswith"}, true},
		{"negated miss", "fct_orders", &core.SelectorSpec{Select: "fct_", MatchType: "not startswith"}, false},
		{"multiple terms", "dim_customers", &core.SelectorSpec{Select: "fct_ dim_"}, true},
		{"exclude only", "stg_orders", &core.SelectorSpec{Exclude: "stg_"}, false},
		{"exclude only keeps others", "fct_orders", &core.SelectorSpec{Exclude: "stg_"}, true},
		{"exclude wins", "fct_orders_tmp", &core.SelectorSpec{Select: "fct_", Exclude: "_tmp", ExcludeMatchType: core.MatchEndsWith}, false},
		{"exclude inherits match type", "fct_orders", &core.SelectorSpec{Select: "orders", Exclude: "fct_orders", MatchType: core.MatchContains}, false},
		{"exclude own match type", "fct_orders", &core.SelectorSpec{Select: "orders", Exclude: "orders", MatchType: core.MatchContains, ExcludeMatchType: core.MatchExact}, true},
		{"unknown match type", "fct_orders", &core.SelectorSpec{Select: "fct_", MatchType: "regex"}, false},
		{"path prefix", "fct_orders", &core.SelectorSpec{Paths: []string{"models/"}}, true},
		{"path prefix miss", "fct_orders", &core.SelectorSpec{Paths: []string{"models/marts/"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(model(tt.model), tt.spec))
		})
	}
}

func TestMatches_WindowsPaths(t *testing.T) {
	m := &core.Model{Name: "fct_orders", Path: `models\marts\fct_orders.sql`}
	assert.True(t, Matches(m, &core.SelectorSpec{Paths: []string{"models/marts"}}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    *core.SelectorSpec
		wantErr bool
	}{
		{"nil", nil, false},
		{"defaults", &core.SelectorSpec{Select: "fct_"}, false},
		{"negated", &core.SelectorSpec{Select: "fct_", MatchType: "not contains"}, false},
		{"unknown match type", &core.SelectorSpec{Select: "fct_", MatchType: "glob"}, true},
		{"unknown exclude match type", &core.SelectorSpec{Exclude: "x", ExcludeMatchType: "fuzzy"}, true},
		{"blank path", &core.SelectorSpec{Paths: []string{" "}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrSelector)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFilter(t *testing.T) {
	ms := []*core.Model{model("stg_a"), model("fct_b"), model("stg_c")}
	got := Filter(ms, &core.SelectorSpec{Select: "stg_"})
	require.Len(t, got, 2)
	assert.Equal(t, "stg_a", got[0].Name)
	assert.Equal(t, "stg_c", got[1].Name)
}

package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
)

// run binds rule type id with args and checks m.
func run(t *testing.T, id string, args ruletype.Args, m *core.Model) (ruletype.Result, error) {
	t.Helper()

	reg := ruletype.NewRegistry()
	require.NoError(t, RegisterAll(reg))

	typ, err := reg.Lookup(id)
	require.NoError(t, err)

	check, err := typ.Bind(args)
	require.NoError(t, err)
	return check(m)
}

func TestDefaultRegistry(t *testing.T) {
	for _, id := range []string{HasMeta, HasTag, HasTest, HasOwner, HasPrimaryKeyTest, Expression} {
		assert.True(t, ruletype.Default().Has(id), id)
	}
}

func TestRegisterAll_Twice(t *testing.T) {
	reg := ruletype.NewRegistry()
	require.NoError(t, RegisterAll(reg))
	assert.Error(t, RegisterAll(reg))
}

func TestTypesDocumented(t *testing.T) {
	for _, typ := range Types() {
		assert.NotEmpty(t, typ.Description, typ.ID)
		assert.NotEmpty(t, typ.ArgKeys, typ.ID)
		assert.NotEmpty(t, typ.Example, typ.ID)
	}
}

func TestHasMeta(t *testing.T) {
	tests := []struct {
		name   string
		args   ruletype.Args
		meta   map[string]any
		passed bool
	}{
		{"present", ruletype.Args{"required_property": "owner"}, map[string]any{"owner": "data-team"}, true},
		{"missing", ruletype.Args{"required_property": "owner"}, map[string]any{}, false},
		{"nil meta", ruletype.Args{"required_property": "owner"}, nil, false},
		{"null value", ruletype.Args{"required_property": "owner"}, map[string]any{"owner": nil}, false},
		{"blank string", ruletype.Args{"required_property": "owner"}, map[string]any{"owner": "  "}, false},
		{"empty list", ruletype.Args{"required_property": "owner"}, map[string]any{"owner": []any{}}, false},
		{"false is a value", ruletype.Args{"required_property": "contains_pii"}, map[string]any{"contains_pii": false}, true},
		{"zero is a value", ruletype.Args{"required_property": "tier"}, map[string]any{"tier": 0.0}, true},
		{"required value match", ruletype.Args{"required_property": "tier", "required_value": 1}, map[string]any{"tier": 1.0}, true},
		{"required value mismatch", ruletype.Args{"required_property": "tier", "required_value": "gold"}, map[string]any{"tier": "silver"}, false},
		{"allowed value", ruletype.Args{"required_property": "owner", "allowed_values": []any{"a", "b"}}, map[string]any{"owner": "b"}, true},
		{"disallowed value", ruletype.Args{"required_property": "owner", "allowed_values": []any{"a", "b"}}, map[string]any{"owner": "c"}, false},
		{"string is not bool", ruletype.Args{"required_property": "pii", "required_value": true}, map[string]any{"pii": "true"}, false},
		{"bool match", ruletype.Args{"required_property": "pii", "required_value": true}, map[string]any{"pii": true}, true},
		{"string is not number", ruletype.Args{"required_property": "tier", "required_value": 1}, map[string]any{"tier": "1"}, false},
		{"number is not string", ruletype.Args{"required_property": "tier", "required_value": "1"}, map[string]any{"tier": 1.0}, false},
		{"fractional number mismatch", ruletype.Args{"required_property": "tier", "required_value": 1}, map[string]any{"tier": 1.5}, false},
		{"allowed number across types", ruletype.Args{"required_property": "tier", "allowed_values": []any{1, 2}}, map[string]any{"tier": 2.0}, true},
		{"allowed values are typed", ruletype.Args{"required_property": "tier", "allowed_values": []any{1, 2}}, map[string]any{"tier": "2"}, false},
		{"allowed value as string", ruletype.Args{"required_property": "owner", "allowed_values": "a"}, map[string]any{"owner": "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := run(t, HasMeta, tt.args, &core.Model{Name: "stg_customers", Meta: tt.meta})
			require.NoError(t, err)
			assert.Equal(t, tt.passed, res.Passed)
			if !tt.passed {
				assert.Contains(t, res.Message, "stg_customers")
			}
		})
	}
}

func TestHasTag(t *testing.T) {
	m := &core.Model{Name: "fct_orders", Tags: []string{"fact", "finance"}}

	res, err := run(t, HasTag, ruletype.Args{"required_tag": "fact"}, m)
	require.NoError(t, err)
	assert.True(t, res.Passed)

	res, err = run(t, HasTag, ruletype.Args{"required_tag": "fac"}, m)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, `"fac"`)
}

func TestHasTest(t *testing.T) {
	m := &core.Model{
		Name: "fct_orders",
		Tests: []core.TestDescriptor{
			{Type: "unique", Column: "order_id"},
			{Type: "not_null", Column: "customer_id"},
			{Type: "expression_is_true", Namespace: "dbt_utils"},
		},
	}

	tests := []struct {
		name   string
		args   ruletype.Args
		passed bool
	}{
		{"type only", ruletype.Args{"test_type": "unique"}, true},
		{"type and column", ruletype.Args{"test_type": "unique", "column": "order_id"}, true},
		{"wrong column", ruletype.Args{"test_type": "unique", "column": "customer_id"}, false},
		{"missing type", ruletype.Args{"test_type": "relationships"}, false},
		{"namespaced", ruletype.Args{"test_type": "dbt_utils.expression_is_true"}, true},
		{"bare name of namespaced", ruletype.Args{"test_type": "expression_is_true"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := run(t, HasTest, tt.args, m)
			require.NoError(t, err)
			assert.Equal(t, tt.passed, res.Passed)
		})
	}
}

func TestHasOwner(t *testing.T) {
	res, err := run(t, HasOwner, nil, &core.Model{Name: "a", Meta: map[string]any{"owner": "x"}})
	require.NoError(t, err)
	assert.True(t, res.Passed)

	res, err = run(t, HasOwner, ruletype.Args{"property": "team"}, &core.Model{Name: "a", Meta: map[string]any{"owner": "x"}})
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, "meta.team")
}

func TestHasPrimaryKeyTest(t *testing.T) {
	tests := []struct {
		name    string
		args    ruletype.Args
		model   *core.Model
		passed  bool
		wantErr bool
	}{
		{
			name:   "no primary key",
			model:  &core.Model{Name: "m"},
			passed: false,
		},
		{
			name: "unique test on key",
			model: &core.Model{Name: "m", Meta: map[string]any{"primary_key": "id"},
				Tests: []core.TestDescriptor{{Type: "unique", Column: "id"}}},
			passed: true,
		},
		{
			name: "unique test on other column",
			model: &core.Model{Name: "m", Meta: map[string]any{"primary_key": "id"},
				Tests: []core.TestDescriptor{{Type: "unique", Column: "email"}}},
			passed: false,
		},
		{
			name: "model level primary_key test",
			model: &core.Model{Name: "m", Meta: map[string]any{"primary_key": []any{"a", "b"}},
				Tests: []core.TestDescriptor{{Type: "primary_key", Namespace: "dbt_constraints"}}},
			passed: true,
		},
		{
			name: "restricted test types",
			args: ruletype.Args{"test_types": []any{"primary_key"}},
			model: &core.Model{Name: "m", Meta: map[string]any{"primary_key": "id"},
				Tests: []core.TestDescriptor{{Type: "unique", Column: "id"}}},
			passed: false,
		},
		{
			name:    "ill-shaped key",
			model:   &core.Model{Name: "m", Meta: map[string]any{"primary_key": map[string]any{"col": "id"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := run(t, HasPrimaryKeyTest, tt.args, tt.model)
			if tt.wantErr {
				require.Error(t, err)
				assert.NotErrorIs(t, err, core.ErrMalformedArgs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.passed, res.Passed)
		})
	}
}

func TestExpression(t *testing.T) {
	m := &core.Model{Name: "fct_orders", Description: "Orders", Meta: map[string]any{"owner": "x"}}

	res, err := run(t, Expression, ruletype.Args{"expression": `size(description) > 0 && "owner" in meta`}, m)
	require.NoError(t, err)
	assert.True(t, res.Passed)

	res, err = run(t, Expression, ruletype.Args{"expression": `"pii" in tags`, "message": "needs pii tag"}, m)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, "model fct_orders: needs pii tag", res.Message)

	_, err = run(t, Expression, ruletype.Args{"expression": `meta.team == "x"`}, m)
	require.Error(t, err)
}

func TestBindErrors(t *testing.T) {
	tests := []struct {
		name string
		id   string
		args ruletype.Args
	}{
		{"has_meta missing property", HasMeta, ruletype.Args{}},
		{"has_meta unknown arg", HasMeta, ruletype.Args{"required_property": "owner", "required_propery": "x"}},
		{"has_tag missing tag", HasTag, nil},
		{"has_tag ill-typed", HasTag, ruletype.Args{"required_tag": 42}},
		{"has_test missing type", HasTest, ruletype.Args{"column": "id"}},
		{"primary key empty test types", HasPrimaryKeyTest, ruletype.Args{"test_types": []any{}}},
		{"expression missing", Expression, ruletype.Args{}},
		{"expression syntax", Expression, ruletype.Args{"expression": "name ==="}},
		{"expression not bool", Expression, ruletype.Args{"expression": "name"}},
	}

	reg := ruletype.NewRegistry()
	require.NoError(t, RegisterAll(reg))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, err := reg.Lookup(tt.id)
			require.NoError(t, err)

			_, err = typ.Bind(tt.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrMalformedArgs)
		})
	}
}

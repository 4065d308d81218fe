package builtin

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
)

type primaryKeyArgs struct {
	Property  string   `mapstructure:"property"`
	TestTypes []string `mapstructure:"test_types"`
}

func hasPrimaryKeyTestType() ruletype.Type {
	return ruletype.Type{
		ID:          HasPrimaryKeyTest,
		Description: "Model must declare meta.primary_key and test it",
		ArgKeys:     []string{"property", "test_types"},
		Bind:        bindPrimaryKeyTest,
		Example: `- name: primary_key_test
  severity: critical
  type: has_primary_key_test
  args:
    test_types: [primary_key, unique]`,
	}
}

func bindPrimaryKeyTest(args ruletype.Args) (ruletype.Check, error) {
	a := primaryKeyArgs{Property: "primary_key"}
	if err := ruletype.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	if _, given := args["test_types"]; !given {
		a.TestTypes = []string{"primary_key", "unique"}
	}
	if a.Property == "" {
		return nil, ruletype.MissingArg("property")
	}
	if len(a.TestTypes) == 0 {
		return nil, ruletype.MissingArg("test_types")
	}

	return func(m *core.Model) (ruletype.Result, error) {
		raw := m.Meta[a.Property]
		if isEmpty(raw) {
			return ruletype.Fail("model %s does not define meta.%s", m.Name, a.Property), nil
		}

		columns, ok := stringList(raw)
		if !ok {
			return ruletype.Result{}, fmt.Errorf("meta.%s must be a string or a list of strings, got %T", a.Property, raw)
		}

		for _, t := range m.Tests {
			if !slices.ContainsFunc(a.TestTypes, func(want string) bool { return testTypeMatches(t, want) }) {
				continue
			}
			// Model-level tests (e.g. a primary_key test over several columns)
			// have no column and cover the key as a whole.
			if t.Column == "" || slices.Contains(columns, t.Column) {
				return ruletype.Pass(), nil
			}
		}

		return ruletype.Fail("model %s has no %s test on primary key %s",
			m.Name, strings.Join(a.TestTypes, "/"), strings.Join(columns, ", ")), nil
	}, nil
}

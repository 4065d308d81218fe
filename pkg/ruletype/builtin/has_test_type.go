package builtin

import (
	"strings"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
)

type hasTestArgs struct {
	TestType string `mapstructure:"test_type"`
	Column   string `mapstructure:"column"`
}

func hasTestType() ruletype.Type {
	return ruletype.Type{
		ID:          HasTest,
		Description: "Model must have a test of a given type, optionally on a given column",
		ArgKeys:     []string{"test_type", "column"},
		Bind:        bindHasTest,
		Example: `- name: orders_id_unique
  severity: critical
  type: has_test
  args:
    test_type: unique
    column: order_id
  selector:
    select: fct_orders
    match_type: exact`,
	}
}

func bindHasTest(args ruletype.Args) (ruletype.Check, error) {
	var a hasTestArgs
	if err := ruletype.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.TestType) == "" {
		return nil, ruletype.MissingArg("test_type")
	}

	return func(m *core.Model) (ruletype.Result, error) {
		for _, t := range m.Tests {
			if !testTypeMatches(t, a.TestType) {
				continue
			}
			if a.Column == "" || t.Column == a.Column {
				return ruletype.Pass(), nil
			}
		}
		if a.Column != "" {
			return ruletype.Fail("model %s has no %q test on column %q", m.Name, a.TestType, a.Column), nil
		}
		return ruletype.Fail("model %s has no %q test", m.Name, a.TestType), nil
	}, nil
}

// testTypeMatches compares the bare or namespaced test name with want.
func testTypeMatches(t core.TestDescriptor, want string) bool {
	return t.Type == want || t.QualifiedType() == want
}

package builtin

import (
	"slices"
	"strings"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
)

type hasMetaArgs struct {
	RequiredProperty string `mapstructure:"required_property"`
	RequiredValue    any    `mapstructure:"required_value"`
	AllowedValues    []any  `mapstructure:"allowed_values"`
}

func hasMetaType() ruletype.Type {
	return ruletype.Type{
		ID:          HasMeta,
		Description: "Model meta must define a property, optionally with a required or allowed value",
		ArgKeys:     []string{"required_property", "required_value", "allowed_values"},
		Bind:        bindHasMeta,
		Example: `- name: model_owner
  severity: high
  type: has_meta
  args:
    required_property: owner
    allowed_values: [data-eng, analytics]`,
	}
}

func bindHasMeta(args ruletype.Args) (ruletype.Check, error) {
	var a hasMetaArgs
	if err := ruletype.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.RequiredProperty) == "" {
		return nil, ruletype.MissingArg("required_property")
	}

	_, hasRequired := args["required_value"]

	return func(m *core.Model) (ruletype.Result, error) {
		value, ok := m.Meta[a.RequiredProperty]
		if !ok || isEmpty(value) {
			return ruletype.Fail("model %s is missing required meta property %q", m.Name, a.RequiredProperty), nil
		}
		if hasRequired && !equalValues(value, a.RequiredValue) {
			return ruletype.Fail("model %s meta property %q is %s, expected %s",
				m.Name, a.RequiredProperty, describe(value), describe(a.RequiredValue)), nil
		}
		if len(a.AllowedValues) > 0 && !slices.ContainsFunc(a.AllowedValues, func(v any) bool { return equalValues(value, v) }) {
			return ruletype.Fail("model %s has an invalid %q meta property value: %s",
				m.Name, a.RequiredProperty, describe(value)), nil
		}
		return ruletype.Pass(), nil
	}, nil
}

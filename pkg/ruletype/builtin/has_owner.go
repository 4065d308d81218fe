package builtin

import (
	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
)

type hasOwnerArgs struct {
	Property string `mapstructure:"property"`
}

func hasOwnerType() ruletype.Type {
	return ruletype.Type{
		ID:          HasOwner,
		Description: "Model must declare an owner in its meta",
		ArgKeys:     []string{"property"},
		Bind:        bindHasOwner,
		Example: `- name: owner_metadata
  severity: high
  type: has_owner`,
	}
}

func bindHasOwner(args ruletype.Args) (ruletype.Check, error) {
	a := hasOwnerArgs{Property: "owner"}
	if err := ruletype.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Property == "" {
		return nil, ruletype.MissingArg("property")
	}

	return func(m *core.Model) (ruletype.Result, error) {
		if isEmpty(m.Meta[a.Property]) {
			return ruletype.Fail("model %s has no owner (meta.%s)", m.Name, a.Property), nil
		}
		return ruletype.Pass(), nil
	}, nil
}

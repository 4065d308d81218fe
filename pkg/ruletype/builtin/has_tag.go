package builtin

import (
	"strings"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
)

type hasTagArgs struct {
	RequiredTag string `mapstructure:"required_tag"`
}

func hasTagType() ruletype.Type {
	return ruletype.Type{
		ID:          HasTag,
		Description: "Model must carry a tag",
		ArgKeys:     []string{"required_tag"},
		Bind:        bindHasTag,
		Example: `- name: facts_have_fact_tag
  type: has_tag
  args:
    required_tag: fact
  selector:
    select: fct_
    match_type: startswith`,
	}
}

func bindHasTag(args ruletype.Args) (ruletype.Check, error) {
	var a hasTagArgs
	if err := ruletype.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.RequiredTag) == "" {
		return nil, ruletype.MissingArg("required_tag")
	}

	return func(m *core.Model) (ruletype.Result, error) {
		if m.HasTag(a.RequiredTag) {
			return ruletype.Pass(), nil
		}
		return ruletype.Fail("model %s is missing required tag %q", m.Name, a.RequiredTag), nil
	}, nil
}

package builtin

import (
	"fmt"
	"strings"
	"sync"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
	"github.com/leapstack-labs/dbt-governance/pkg/expr"
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
)

type expressionArgs struct {
	Expression string `mapstructure:"expression"`
	Message    string `mapstructure:"message"`
}

func expressionType() ruletype.Type {
	return ruletype.Type{
		ID:          Expression,
		Description: "Model must satisfy a CEL boolean expression",
		ArgKeys:     []string{"expression", "message"},
		Bind:        bindExpression,
		Example: `- name: marts_documented
  severity: low
  type: expression
  args:
    expression: size(description) > 0 && "owner" in meta
    message: mart models need a description and an owner
  selector:
    paths: [models/marts/]`,
	}
}

var (
	envOnce sync.Once
	env     *expr.Environment
	envErr  error
)

func environment() (*expr.Environment, error) {
	envOnce.Do(func() {
		env, envErr = expr.NewEnvironment()
	})
	return env, envErr
}

func bindExpression(args ruletype.Args) (ruletype.Check, error) {
	var a expressionArgs
	if err := ruletype.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Expression) == "" {
		return nil, ruletype.MissingArg("expression")
	}

	e, err := environment()
	if err != nil {
		return nil, err
	}
	prg, err := e.Compile(a.Expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrMalformedArgs, err)
	}

	return func(m *core.Model) (ruletype.Result, error) {
		ok, err := prg.Eval(m)
		if err != nil {
			return ruletype.Result{}, err
		}
		if ok {
			return ruletype.Pass(), nil
		}
		if a.Message != "" {
			return ruletype.Fail("model %s: %s", m.Name, a.Message), nil
		}
		return ruletype.Fail("model %s does not satisfy %s", m.Name, prg), nil
	}, nil
}

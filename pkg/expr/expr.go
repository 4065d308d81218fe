package expr

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

// Environment provides a thread-safe wrapper around a [*cel.Env].
type Environment struct {
	env *cel.Env
}

// NewEnvironment creates a new [Environment] with the model variables declared.
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	opts = append(opts, cel.Lib(&lib{}))

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &Environment{env: env}, nil
}

// MustNewEnvironment creates a new [Environment] and panics on error.
func MustNewEnvironment(opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(opts...)
	if err != nil {
		panic(err)
	}

	return env
}

// Program is a compiled boolean expression over one model.
type Program struct {
	source  string
	program cel.Program
}

// Compile compiles a CEL expression that must evaluate to a boolean.
func (e *Environment) Compile(expression string) (*Program, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	return &Program{source: expression, program: program}, nil
}

// String returns the expression source.
func (p *Program) String() string {
	return p.source
}

// Eval evaluates the program against m.
func (p *Program) Eval(m *core.Model) (bool, error) {
	result, _, err := p.program.Eval(Activation(m))
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", p.source, err)
	}

	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: result is %s, not bool", p.source, result.Type().TypeName())
	}
	return b, nil
}

// Activation returns the CEL variables describing m.
func Activation(m *core.Model) map[string]any {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	meta := m.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	tests := make([]map[string]string, 0, len(m.Tests))
	for _, t := range m.Tests {
		tests = append(tests, map[string]string{
			"type":      t.Type,
			"namespace": t.Namespace,
			"column":    t.Column,
			"unique_id": t.UniqueID,
		})
	}

	return map[string]any{
		"name":        m.Name,
		"project":     m.ProjectID,
		"dbt_package": m.Package,
		"path":        m.Path,
		"description": m.Description,
		"tags":        tags,
		"meta":        meta,
		"tests":       tests,
	}
}

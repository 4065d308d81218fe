// Package ruletype defines rule types and the registry that resolves them.
//
// A rule type is a named check family (has_meta, has_tag, ...). Binding a
// type to the arguments of one rule validates those arguments once and
// yields a Check that is then applied to every in-scope model.
package ruletype

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

// Args are the type-specific arguments of a rule, as read from the rules file.
type Args map[string]any

// Result is the verdict of a check on one model.
type Result struct {
	Passed  bool
	Message string
}

// Pass returns a passing result.
func Pass() Result {
	return Result{Passed: true}
}

// Fail returns a failing result with a formatted message.
func Fail(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// Check evaluates one model. A returned error is an evaluation error for that
// model; an error wrapping core.ErrMalformedArgs invalidates the whole rule.
type Check func(m *core.Model) (Result, error)

// BindFunc validates args and returns the check for one rule.
type BindFunc func(args Args) (Check, error)

// Type is a registered rule type.
type Type struct {
	ID          string   // Identifier referenced by rules, e.g., "has_meta"
	Description string   // Human-readable description
	ArgKeys     []string // Arguments the type accepts
	Bind        BindFunc // Validates arguments and builds the check

	Example string // Rules file snippet shown by the rule-types command
}

// DecodeArgs decodes args into the struct pointed to by out using
// `mapstructure` tags. Unknown keys and ill-typed values are rejected.
func DecodeArgs(args Args, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
		DecodeHook:  mapstructure.DecodeHookFuncType(scalarToSlice),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrMalformedArgs, err)
	}
	if err := dec.Decode(map[string]any(args)); err != nil {
		return fmt.Errorf("%w: %w", core.ErrMalformedArgs, err)
	}
	return nil
}

// MissingArg returns the error for an absent required argument.
func MissingArg(name string) error {
	return fmt.Errorf("%w: missing required argument %q", core.ErrMalformedArgs, name)
}

// scalarToSlice lets a single value stand in for a one-element list,
// e.g. `allowed_values: gold`.
func scalarToSlice(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Slice {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return []any{data}, nil
	default:
		return data, nil
	}
}

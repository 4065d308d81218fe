package expr

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"
)

var testType = cel.MapType(cel.StringType, cel.StringType)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Strings(),
		ext.Lists(),

		cel.Variable("name", cel.StringType),
		cel.Variable("project", cel.StringType),
		cel.Variable("dbt_package", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("meta", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("tests", cel.ListType(testType)),

		// `nonEmpty` applies the same emptiness notion as the has_meta rule type.
		// Example: "owner" in meta && nonEmpty(meta.owner).
		cel.Function("nonEmpty",
			cel.Overload("non_empty_dyn", []*cel.Type{cel.DynType}, cel.BoolType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					return types.Bool(nonEmpty(v))
				}),
			),
		),

		// `hasTest` reports whether a test of the given type is attached.
		// Example: hasTest(tests, "unique").
		cel.Function("hasTest",
			cel.Overload("has_test_list_string", []*cel.Type{cel.ListType(testType), cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(list, name ref.Val) ref.Val {
					want, ok := name.Value().(string)
					if !ok {
						return types.NewErr("hasTest: invalid test type")
					}
					lister, ok := list.(traits.Lister)
					if !ok {
						return types.NewErr("hasTest: invalid tests list")
					}

					it := lister.Iterator()
					for it.HasNext() == types.True {
						item, ok := it.Next().(traits.Mapper)
						if !ok {
							return types.NewErr("hasTest: invalid test entry")
						}
						if v, found := item.Find(types.String("type")); found && v.Equal(types.String(want)) == types.True {
							return types.True
						}
					}
					return types.False
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return nil
}

func nonEmpty(v ref.Val) bool {
	switch val := v.(type) {
	case types.Null:
		return false
	case types.String:
		return strings.TrimSpace(string(val)) != ""
	case traits.Sizer:
		size, ok := val.Size().(types.Int)
		return ok && size > 0
	default:
		return true
	}
}

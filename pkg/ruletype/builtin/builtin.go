// Package builtin registers the built-in governance rule types.
// Import this package to register them with ruletype.Default().
package builtin

import (
	"github.com/leapstack-labs/dbt-governance/pkg/ruletype"
)

// Rule type identifiers.
const (
	HasMeta           = "has_meta"
	HasTag            = "has_tag"
	HasTest           = "has_test"
	HasOwner          = "has_owner"
	HasPrimaryKeyTest = "has_primary_key_test"
	Expression        = "expression"
)

func init() {
	if err := RegisterAll(ruletype.Default()); err != nil {
		panic(err)
	}
}

// Types returns the built-in rule types.
func Types() []ruletype.Type {
	return []ruletype.Type{
		hasMetaType(),
		hasTagType(),
		hasTestType(),
		hasOwnerType(),
		hasPrimaryKeyTestType(),
		expressionType(),
	}
}

// RegisterAll adds the built-in rule types to reg.
func RegisterAll(reg *ruletype.Registry) error {
	for _, t := range Types() {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

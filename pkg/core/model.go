package core

// Model is one modeled entity of a dbt project, as seen by the rule engine.
// Models are created once per run by the metadata loader and are treated
// as immutable for the duration of an evaluation.
type Model struct {
	// Name is the model name, unique within a project (e.g., "stg_customers")
	Name string
	// ProjectID identifies the dbt project the model was loaded from
	ProjectID string
	// UniqueID is the dbt node id (e.g., "model.jaffle_shop.stg_customers")
	UniqueID string
	// Package is the dbt package that defines the model
	Package string
	// Path is the model file path relative to the project root
	Path string
	// Description is the documented model description
	Description string
	// Tags are labels attached to the model
	Tags []string
	// Meta contains the model's meta properties
	Meta map[string]any
	// Tests are the data tests attached to the model, in manifest order
	Tests []TestDescriptor
}

// TestDescriptor describes one data test attached to a model.
type TestDescriptor struct {
	// Type is the generic test name (e.g., "unique", "not_null")
	Type string
	// Namespace is the package that provides the test, empty for dbt built-ins
	Namespace string
	// Column is the column the test applies to, empty for model-level tests
	Column string
	// UniqueID is the dbt node id of the test
	UniqueID string
}

// Key returns the identity of the model within one evaluation run.
func (m *Model) Key() string {
	if m.ProjectID == "" {
		return m.Name
	}
	return m.ProjectID + "." + m.Name
}

// HasTag reports whether the model carries the given tag (exact match).
func (m *Model) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// QualifiedType returns the test type prefixed by its namespace, if any.
func (t TestDescriptor) QualifiedType() string {
	if t.Namespace == "" {
		return t.Type
	}
	return t.Namespace + "." + t.Type
}

// Package expr provides CEL (Common Expression Language) functionality
// for evaluating governance expressions against dbt models.
//
// CEL expressions have access to variables:
//   - `name` (string): The model name
//   - `project` (string): The project the model belongs to
//   - `dbt_package` (string): The dbt package that defines the model
//   - `path` (string): The model file path
//   - `description` (string): The model description
//   - `tags` (list<string>): The model tags
//   - `meta` (map<string, dyn>): The model meta properties
//   - `tests` (list<map<string, string>>): Attached tests with keys
//     `type`, `namespace`, `column` and `unique_id`
//
// In addition to the CEL standard library and the strings and lists
// extensions, the environment defines:
//   - nonEmpty(dyn): false for null, blank strings, empty lists and maps
//   - hasTest(tests, string): true if a test of the given type is attached
package expr

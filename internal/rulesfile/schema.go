package rulesfile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const schemaURL = "https://github.com/leapstack-labs/dbt-governance/rules.schema.json"

//go:embed rules.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Schema returns the JSON schema of the rules file.
func Schema() []byte {
	return schemaJSON
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
		if err != nil {
			schemaErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// SchemaError lists every schema violation of a rules file.
type SchemaError struct {
	Issues []string
}

func (e *SchemaError) Error() string {
	return "rules file does not match schema:\n  " + strings.Join(e.Issues, "\n  ")
}

// Unwrap makes errors.Is(err, ErrSchema) hold.
func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// validateSchema checks a decoded YAML document against the schema.
func validateSchema(doc any) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	err = s.Validate(inst)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("schema validation: %w", err)
	}

	printer := message.NewPrinter(language.English)
	issues := leafIssues(ve, printer)
	sort.Strings(issues)
	return &SchemaError{Issues: dedupe(issues)}
}

// leafIssues collects the most specific violations under ve.
func leafIssues(ve *jsonschema.ValidationError, p *message.Printer) []string {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(p))}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, leafIssues(c, p)...)
	}
	return out
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/covidanalytics/ventdash/internal/scenario"
)

const schemaURL = "https://covidanalytics.io/schemas/catalog_v1.json"

//go:embed schema/catalog_v1.json
var schemaJSON []byte

// Validator checks catalog documents against the embedded JSON schema and
// the rules the schema cannot express.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded schema
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// Load reads and validates a catalog file. An empty path returns the
// built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	v, err := NewValidator()
	if err != nil {
		return nil, err
	}

	c, errs := v.Parse(path, data)
	if len(errs) > 0 {
		return nil, errs
	}
	return c, nil
}

// Parse validates data and decodes it. file is only used in messages.
func (v *Validator) Parse(file string, data []byte) (*Catalog, ValidationErrors) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ValidationErrors{{File: file, Message: fmt.Sprintf("failed to parse YAML: %v", err)}}
	}

	if err := v.schema.Validate(raw); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return nil, extractSchemaErrors(file, validationErr)
		}
		return nil, ValidationErrors{{File: file, Message: err.Error()}}
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, ValidationErrors{{File: file, Message: fmt.Sprintf("failed to decode catalog: %v", err)}}
	}

	if errs := validateExtraRules(file, &c); len(errs) > 0 {
		return nil, errs
	}

	return &c, nil
}

// extractSchemaErrors flattens nested JSON schema errors
func extractSchemaErrors(file string, err *jsonschema.ValidationError) ValidationErrors {
	var errs ValidationErrors

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}

	errs = append(errs, ValidationError{
		File:    file,
		Path:    path,
		Message: err.Error(),
	})

	for _, cause := range err.Causes {
		errs = append(errs, extractSchemaErrors(file, cause)...)
	}

	return errs
}

// validateExtraRules: model ids must be supported and unique, at most one
// model is default, defaults must parse as a scenario selection.
func validateExtraRules(file string, c *Catalog) ValidationErrors {
	var errs ValidationErrors

	seen := make(map[string]bool)
	defaults := 0
	for i, m := range c.Models {
		path := fmt.Sprintf("models[%d].id", i)
		if !scenario.Model(m.ID).Valid() {
			errs = append(errs, ValidationError{File: file, Path: path, Message: fmt.Sprintf("unsupported model %q", m.ID)})
		}
		if seen[m.ID] {
			errs = append(errs, ValidationError{File: file, Path: path, Message: fmt.Sprintf("duplicate model %q", m.ID)})
		}
		seen[m.ID] = true
		if m.Default {
			defaults++
		}
	}
	if defaults > 1 {
		errs = append(errs, ValidationError{File: file, Path: "models", Message: "more than one default model"})
	}

	if c.Defaults.Date != "" {
		if _, err := scenario.ParseDate(scenario.DateLayout, c.Defaults.Date); err != nil {
			errs = append(errs, ValidationError{File: file, Path: "defaults.date", Message: err.Error()})
		}
	}
	for i, p := range c.Defaults.Params {
		if _, err := scenario.ParseParam(p); err != nil {
			errs = append(errs, ValidationError{File: file, Path: fmt.Sprintf("defaults.params[%d]", i), Message: err.Error()})
		}
	}

	return errs
}

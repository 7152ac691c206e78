// Package schema validates project files against the embedded projects schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed project.schema.yaml
var projectSchema []byte

const projectSchemaURI = "acurast://schemas/project.schema.json"

// Validator handles JSON schema validation
type Validator struct {
	projectsSchema *jsonschema.Schema
}

// NewValidator creates a validator from the embedded schema
func NewValidator() (*Validator, error) {
	s, err := loadSchema(projectSchemaURI, projectSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to load projects schema: %w", err)
	}
	return &Validator{projectsSchema: s}, nil
}

// ValidateProjects validates a decoded projects document. The document must
// hold JSON values as produced by Decode.
func (v *Validator) ValidateProjects(doc interface{}) error {
	if v.projectsSchema == nil {
		return fmt.Errorf("projects schema not loaded")
	}
	return v.projectsSchema.Validate(doc)
}

// ValidateBytes decodes a JSON or YAML projects file and validates it
func (v *Validator) ValidateBytes(data []byte) error {
	doc, err := Decode(data)
	if err != nil {
		return err
	}
	return v.ValidateProjects(doc)
}

// Decode parses JSON or YAML into the generic JSON value model the
// validator expects. Numbers are kept as json.Number.
func Decode(data []byte) (interface{}, error) {
	// Parse YAML to interface{} (supports both YAML and JSON)
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document to JSON: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// Problems flattens a validation error into one line per failing location,
// sorted. Errors that are not validation errors yield their message.
func Problems(err error) []string {
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}

	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", location, e.Message))
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	sort.Strings(out)
	return out
}

// loadSchema compiles a schema document (JSON or YAML) under uri
func loadSchema(uri string, data []byte) (*jsonschema.Schema, error) {
	var schemaData interface{}
	if err := yaml.Unmarshal(data, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	// Convert to JSON for schema compiler
	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == uri {
			return io.NopCloser(strings.NewReader(string(jsonData))), nil
		}
		return nil, fmt.Errorf("external schema reference not supported: %s", url)
	}

	schema, err := compiler.Compile(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}

package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("config.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// ValidateDocument checks the shape of a raw YAML config: known keys only,
// right types. Range checks are left to Validate.
func ValidateDocument(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	// The validator expects encoding/json types (float64 numbers, string keys).
	b, err := json.Marshal(doc)
	if err != nil {
		return &Error{Problems: []string{fmt.Sprintf("config is not a plain mapping: %v", err)}}
	}
	var normalized any
	if err := json.Unmarshal(b, &normalized); err != nil {
		return fmt.Errorf("normalize config: %w", err)
	}

	if err := s.Validate(normalized); err != nil {
		return &Error{Problems: []string{err.Error()}}
	}
	return nil
}

// Package schema provides JSON schema generation and validation utilities.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	jsvalidate "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/credprobe-dev/credprobe/domain/errors"
)

// GenerateSchema creates a JSON schema from a Go struct.
// It uses the `invopop/jsonschema` library to reflect on the struct
// and generate a standard JSON Schema (Draft 2020-12).
func GenerateSchema(v interface{}) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, &errors.SchemaError{Type: fmt.Sprintf("%T", v), Err: err}
	}

	return jsonBytes, nil
}

// ValidateDocument checks a JSON document against a schema produced by
// GenerateSchema (or any valid JSON Schema). Both arguments are raw JSON.
func ValidateDocument(schemaJSON, document []byte) error {
	compiler := jsvalidate.NewCompiler()
	if err := compiler.AddResource("config.json", bytes.NewReader(schemaJSON)); err != nil {
		return &errors.SchemaError{Err: err}
	}

	sch, err := compiler.Compile("config.json")
	if err != nil {
		return &errors.SchemaError{Err: err}
	}

	var obj interface{}
	if err := json.Unmarshal(document, &obj); err != nil {
		return &errors.SchemaError{Err: fmt.Errorf("document is not valid JSON: %w", err)}
	}

	if err := sch.Validate(obj); err != nil {
		return &errors.SchemaError{Err: err}
	}
	return nil
}

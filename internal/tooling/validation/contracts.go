// Package validation checks structured model output against embedded JSON
// schemas and lints the deck and persona files sessions load.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNoObject reports model output that carries no JSON object.
var ErrNoObject = errors.New("no JSON object in response")

// CompileSchema compiles one schema document registered under url.
func CompileSchema(url string, doc []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// MustCompileSchema is CompileSchema for package-level embedded schemas.
func MustCompileSchema(url string, doc []byte) *jsonschema.Schema {
	schema, err := CompileSchema(url, doc)
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", url, err))
	}
	return schema
}

// ExtractObject returns the span from the first '{' to the last '}' of raw.
func ExtractObject(raw string) ([]byte, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, ErrNoObject
	}
	return []byte(raw[start : end+1]), nil
}

// DecodeObject extracts the JSON object embedded in raw, validates it against
// schema, and decodes it into target.
func DecodeObject(raw string, schema *jsonschema.Schema, target any) error {
	data, err := ExtractObject(raw)
	if err != nil {
		return err
	}
	if err := validateAgainstSchema(schema, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode object: %w", err)
	}
	return nil
}

func validateAgainstSchema(schema *jsonschema.Schema, raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode object: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

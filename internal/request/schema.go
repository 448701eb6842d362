package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	maxExpenses   = 500
	maxIDLen      = 64
	maxJobNoLen   = 120
	maxDetailsLen = 2000
	maxLabelLen   = 120
	maxNameLen    = 200
	schemaURL     = "compile_request.json"
)

// compileRequestSchema describes the boundary request body.
var compileRequestSchema = map[string]any{
	"$schema":  "http://json-schema.org/draft-07/schema#",
	"type":     "object",
	"required": []any{"expenses"},
	"properties": map[string]any{
		"expenses": map[string]any{
			"type":     "array",
			"minItems": 1,
			"maxItems": maxExpenses,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id"},
				"properties": map[string]any{
					"id":      map[string]any{"type": "string", "minLength": 1, "maxLength": maxIDLen},
					"job_no":  map[string]any{"type": []any{"string", "null"}, "maxLength": maxJobNoLen},
					"date":    map[string]any{"type": []any{"string", "null"}},
					"details": map[string]any{"type": []any{"string", "null"}, "maxLength": maxDetailsLen},
				},
			},
		},
		"periodLabel": map[string]any{"type": "string", "maxLength": maxLabelLen},
		"subjectName": map[string]any{"type": []any{"string", "null"}, "maxLength": maxNameLen},
		"subjectId":   map[string]any{"type": []any{"string", "null"}, "maxLength": maxIDLen},
		"authToken":   map[string]any{"type": "string"},
	},
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(compileRequestSchema)
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// validateJSON checks data against the compile request schema.
func validateJSON(data []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

package assemble

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// resultSchema constrains the persisted JSON form of a Result.
func resultSchema() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"required": []string{
			"documentId", "filename", "status", "method", "records", "count", "totalValue",
		},
		"properties": map[string]any{
			"documentId": map[string]any{"type": "string"},
			"filename":   map[string]any{"type": "string", "minLength": 1},
			"status": map[string]any{"enum": []string{
				string(constants.StatusStructured),
				string(constants.StatusUnstructured),
				string(constants.StatusFailed),
			}},
			"method": map[string]any{"enum": []string{
				constants.MethodTable, constants.MethodHeuristic, constants.MethodNone,
			}},
			"count":      map[string]any{"type": "integer", "minimum": 0},
			"totalValue": map[string]any{"type": "number"},
			"records": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category": map[string]any{"enum": constants.AsStringSlice()},
					},
					"additionalProperties": map[string]any{"type": []string{"string", "number", "boolean"}},
				},
			},
			"errorCode": map[string]any{"type": "string"},
		},
		"allOf": []any{
			map[string]any{
				"if":   map[string]any{"properties": map[string]any{"status": map[string]any{"const": string(constants.StatusFailed)}}},
				"then": map[string]any{"required": []string{"errorCode", "error"}},
			},
			map[string]any{
				"if":   map[string]any{"properties": map[string]any{"status": map[string]any{"const": string(constants.StatusStructured)}}},
				"then": map[string]any{"properties": map[string]any{"records": map[string]any{"minItems": 1}}},
			},
		},
	}
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(resultSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("result.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("result.json")
	})
	return schema, schemaErr
}

// Validate checks r's JSON form against the result schema and count consistency.
func Validate(r Result) error {
	if r.Count != len(r.Records) {
		return fmt.Errorf("%w: count %d does not match %d records", common.ErrValidation, r.Count, len(r.Records))
	}
	s, err := compiled()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: result does not match schema: %v", common.ErrValidation, err)
	}
	return nil
}

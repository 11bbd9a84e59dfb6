package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
)

// BuildSubmissionJSONSchema returns the JSON-Schema (draft 2020-12) for a submission body.
func BuildSubmissionJSONSchema() map[string]any {
	stage := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stage_name":            map[string]any{"type": "string", "enum": constants.StageNames()},
			"completion_percentage": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			"work_description":      map[string]any{"type": "string", "minLength": 1},
			"materials_used":        map[string]any{"type": "string"},
			"labor_count":           map[string]any{"type": "integer", "minimum": 0},
			"work_start_date":       map[string]any{"type": "string"},
			"work_end_date":         map[string]any{"type": "string"},
			"quality_check":         map[string]any{"type": "boolean"},
			"safety_compliance":     map[string]any{"type": "boolean"},
			"percentage_of_total":   map[string]any{"type": "number", "minimum": 0},
		},
		"required": []string{"stage_name", "work_description"},
	}
	custom := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request_title":    map[string]any{"type": "string", "minLength": 1, "maxLength": 255},
			"request_reason":   map[string]any{"type": "string", "minLength": 1},
			"category":         map[string]any{"type": "string", "maxLength": 100},
			"urgency_level":    map[string]any{"type": "string", "enum": []string{"", "low", "medium", "high", "urgent"}},
			"work_description": map[string]any{"type": "string"},
		},
		"required": []string{"request_title", "request_reason"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"project_ref":      map[string]any{"type": "integer", "minimum": 1},
			"kind":             map[string]any{"type": "string", "enum": []string{"stage", "custom"}},
			"requested_amount": map[string]any{"type": "number", "exclusiveMinimum": 0},
			"contractor_notes": map[string]any{"type": "string"},
			"stage":            stage,
			"custom":           custom,
		},
		"required": []string{"project_ref", "kind", "requested_amount"},
		"allOf": []any{
			map[string]any{
				"if":   map[string]any{"properties": map[string]any{"kind": map[string]any{"const": "stage"}}},
				"then": map[string]any{"required": []string{"stage"}},
			},
			map[string]any{
				"if":   map[string]any{"properties": map[string]any{"kind": map[string]any{"const": "custom"}}},
				"then": map[string]any{"required": []string{"custom"}},
			},
		},
	}
}

var (
	submissionSchemaOnce sync.Once
	submissionSchema     *jsonschema.Schema
	submissionSchemaErr  error
)

func compileSubmissionSchema() (*jsonschema.Schema, error) {
	submissionSchemaOnce.Do(func() {
		b, err := json.Marshal(BuildSubmissionJSONSchema())
		if err != nil {
			submissionSchemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("submission.json", bytes.NewReader(b)); err != nil {
			submissionSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		submissionSchema, submissionSchemaErr = compiler.Compile("submission.json")
	})
	return submissionSchema, submissionSchemaErr
}

// ValidateSubmission checks a raw submission body before it is bound.
func ValidateSubmission(data []byte) error {
	schema, err := compileSubmissionSchema()
	if err != nil {
		return common.WrapError(err, "compile submission schema")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return common.NewAppError("INVALID_INPUT", "request body is not valid JSON", common.ErrInvalidInput)
	}
	if err := schema.Validate(v); err != nil {
		return common.ValidationErrorf("body does not match schema: %v", err)
	}
	return nil
}

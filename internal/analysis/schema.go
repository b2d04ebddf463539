package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ks2178o2/callharbor/constants"
)

// BuildCategorizeSchema returns the JSON-Schema the categorization response
// must satisfy. We pass it to the model as a constraint and validate locally.
func BuildCategorizeSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"category":   map[string]any{"type": "string", "enum": constants.CategoriesAsStrings()},
			"call_type":  map[string]any{"type": "string", "enum": constants.CallTypesAsStrings()},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"reasoning":  map[string]any{"type": "string"},
		},
		"required": []string{"category", "call_type", "confidence"},
	}
}

// BuildObjectionsSchema constrains the objection-detection response: an
// object with an array of objections (possibly empty).
func BuildObjectionsSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"objections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"objection_type":     map[string]any{"type": "string", "enum": constants.ObjectionTypesAsStrings()},
						"objection_text":     map[string]any{"type": "string", "minLength": 1},
						"speaker":            map[string]any{"type": "string"},
						"confidence":         map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
						"transcript_segment": map[string]any{"type": "string"},
					},
					"required": []string{"objection_type", "objection_text"},
				},
			},
		},
		"required": []string{"objections"},
	}
}

// BuildOvercomeSchema constrains the overcome-analysis response.
func BuildOvercomeSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"overcome_details": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"objection_index":  map[string]any{"type": "integer", "minimum": 0},
						"overcome_method":  map[string]any{"type": "string", "minLength": 1},
						"transcript_quote": map[string]any{"type": "string"},
						"speaker":          map[string]any{"type": "string"},
						"confidence":       map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					},
					"required": []string{"objection_index", "overcome_method"},
				},
			},
		},
		"required": []string{"overcome_details"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ExtractJSONObject strips markdown code fences and surrounding prose, leaving
// the outermost JSON object. Models wrap JSON in ```json fences often enough
// that validating the raw completion directly fails spuriously.
func ExtractJSONObject(raw string) []byte {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimSpace(s)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return []byte(s)
}

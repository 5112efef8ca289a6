package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Confidence levels accepted by workflow tools, lowest to highest.
var confidenceLevels = []string{
	"exploring", "low", "medium", "high", "very_high", "almost_certain", "certain",
}

var thinkingModes = []string{"minimal", "low", "medium", "high", "max"}

func commonProperties() map[string]any {
	return map[string]any{
		"model": map[string]any{
			"type":        "string",
			"description": "Model name or alias. Omit to use the server default.",
		},
		"temperature": map[string]any{
			"type":        "number",
			"minimum":     0,
			"maximum":     1,
			"description": "Sampling temperature, clamped to the model's supported range.",
		},
		"thinking_mode": map[string]any{
			"type":        "string",
			"enum":        thinkingModes,
			"description": "Extended reasoning depth for models that support it.",
		},
		"use_websearch": map[string]any{
			"type":        "boolean",
			"description": "Allow the assistant to request web searches via the host (default true).",
		},
		"continuation_id": map[string]any{
			"type":        "string",
			"description": "Thread id from a previous response to continue that conversation.",
		},
		"images": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Absolute image paths or data URIs for visual context.",
		},
		"locale": map[string]any{
			"type":        "string",
			"description": "BCP-47 language tag for the response language.",
		},
	}
}

func workflowProperties() map[string]any {
	props := commonProperties()
	props["step"] = map[string]any{
		"type":        "string",
		"description": "Description of the current investigation step.",
	}
	props["step_number"] = map[string]any{
		"type":        "integer",
		"minimum":     1,
		"description": "Index of this step, starting at 1.",
	}
	props["total_steps"] = map[string]any{
		"type":        "integer",
		"minimum":     1,
		"description": "Current estimate of total steps; may be revised.",
	}
	props["next_step_required"] = map[string]any{
		"type":        "boolean",
		"description": "True if another investigation step follows this one.",
	}
	props["findings"] = map[string]any{
		"type":        "string",
		"description": "What was discovered during this step.",
	}
	props["files_checked"] = map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "All files examined so far, including dead ends.",
	}
	props["relevant_files"] = map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Absolute paths of files relevant to the task.",
	}
	props["relevant_context"] = map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Methods or functions central to the findings.",
	}
	props["confidence"] = map[string]any{
		"type":        "string",
		"enum":        confidenceLevels,
		"description": "Confidence in the current assessment.",
	}
	props["issues_found"] = map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"severity":    map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
			},
			"required": []string{"severity", "description"},
		},
		"description": "Issues identified so far, each with a severity.",
	}
	props["hypothesis"] = map[string]any{
		"type":        "string",
		"description": "Current working theory based on the evidence.",
	}
	props["backtrack_from_step"] = map[string]any{
		"type":        "integer",
		"minimum":     1,
		"description": "Discard findings from this step onward and revise.",
	}
	return props
}

// BuildSchema assembles the tool's JSON schema and compiles the validator.
// autoMode makes the model field required on provider-backed tools. Call once
// per tool at startup.
func (t *Tool) BuildSchema(autoMode bool) error {
	var props map[string]any
	var required []string

	switch t.Kind {
	case KindSimple:
		props = commonProperties()
		props["files"] = map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Absolute file or directory paths to embed as context.",
		}
		primary := t.PrimaryField
		if primary == "" {
			primary = "prompt"
		}
		if _, ok := props[primary]; !ok {
			props[primary] = map[string]any{
				"type":        "string",
				"description": "The main request text.",
			}
		}
		required = []string{primary}
	case KindWorkflow:
		props = workflowProperties()
		required = []string{"step", "step_number", "total_steps", "next_step_required", "findings"}
	default:
		props = map[string]any{}
	}

	for name, def := range t.ExtraProperties {
		props[name] = def
	}
	required = append(required, t.ExtraRequired...)

	if autoMode && t.Kind != KindLocal {
		required = append(required, "model")
	}

	schema := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	if t.StrictSchema {
		schema["additionalProperties"] = false
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal %s schema: %w", t.Name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := t.Name + ".schema.json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("register %s schema: %w", t.Name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile %s schema: %w", t.Name, err)
	}
	t.schema = compiled
	t.rawSchema = raw
	return nil
}

// RawSchema returns the JSON schema bytes for MCP registration.
func (t *Tool) RawSchema() []byte { return t.rawSchema }

// ValidateArgs checks raw request arguments against the compiled schema.
func (t *Tool) ValidateArgs(args map[string]any) error {
	if t.schema == nil {
		return fmt.Errorf("tool %s has no compiled schema", t.Name)
	}
	if err := t.schema.Validate(normalizeForSchema(args)); err != nil {
		var ve *jsonschema.ValidationError
		if ok := asValidationError(err, &ve); ok {
			field, msg := flattenValidation(ve)
			return &ValidationError{Field: field, Message: msg}
		}
		return &ValidationError{Field: "", Message: err.Error()}
	}
	return nil
}

func asValidationError(err error, target **jsonschema.ValidationError) bool {
	ve, ok := err.(*jsonschema.ValidationError)
	if ok {
		*target = ve
	}
	return ok
}

// flattenValidation extracts the deepest cause and its instance location.
func flattenValidation(ve *jsonschema.ValidationError) (field, msg string) {
	cur := ve
	for len(cur.Causes) > 0 {
		cur = cur.Causes[0]
	}
	field = strings.TrimPrefix(cur.InstanceLocation, "/")
	field = strings.ReplaceAll(field, "/", ".")
	return field, cur.Message
}

// normalizeForSchema round-trips values through JSON so numbers carry the
// types the validator expects regardless of how the transport decoded them.
func normalizeForSchema(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}

// decodeInto maps raw arguments onto a typed request struct.
func decodeInto(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ValidationError{Field: "", Message: err.Error()}
	}
	return nil
}

package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// renderSchemaJSON pretty-prints a schema map for prompt embedding
func renderSchemaJSON(schema map[string]interface{}) string {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// StripCodeFences removes a leading/trailing markdown code fence from model
// output. Models wrap JSON in ```json fences often enough that stripping is
// cheaper than prompting it away.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}

	// Drop the opening fence (with optional language tag) and the closing one
	lines = lines[1:]
	if last := len(lines) - 1; last >= 0 && strings.HasPrefix(strings.TrimSpace(lines[last]), "```") {
		lines = lines[:last]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ValidateAgainstSchema performs structural validation of a decoded JSON
// value against a schema map: types, required properties, enum membership
// and item bounds. It is deliberately minimal; the stage engines apply
// domain validation on top.
func ValidateAgainstSchema(value interface{}, schema map[string]interface{}) error {
	return validateNode(value, schema, "$")
}

func validateNode(value interface{}, schema map[string]interface{}, path string) error {
	typeStr, _ := schema["type"].(string)

	switch strings.ToLower(typeStr) {
	case "object":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, value)
		}
		for _, req := range requiredList(schema) {
			if _, present := obj[req]; !present {
				return fmt.Errorf("%s: missing required property %q", path, req)
			}
		}
		props, _ := schema["properties"].(map[string]interface{})
		for name, raw := range obj {
			propSchema, ok := props[name].(map[string]interface{})
			if !ok {
				continue // unknown properties tolerated
			}
			if err := validateNode(raw, propSchema, path+"."+name); err != nil {
				return err
			}
		}

	case "array":
		arr, ok := value.([]interface{})
		if !ok {
			return fmt.Errorf("%s: expected array, got %T", path, value)
		}
		if min, ok := toInt64(schema["minItems"]); ok && int64(len(arr)) < min {
			return fmt.Errorf("%s: expected at least %d items, got %d", path, min, len(arr))
		}
		if max, ok := toInt64(schema["maxItems"]); ok && int64(len(arr)) > max {
			return fmt.Errorf("%s: expected at most %d items, got %d", path, max, len(arr))
		}
		if items, ok := schema["items"].(map[string]interface{}); ok {
			for i, item := range arr {
				if err := validateNode(item, items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}

	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %T", path, value)
		}
		if enum := enumList(schema); len(enum) > 0 {
			found := false
			for _, e := range enum {
				if e == s {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%s: %q not in enum %v", path, s, enum)
			}
		}

	case "number", "integer":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("%s: expected number, got %T", path, value)
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean, got %T", path, value)
		}
	}

	return nil
}

func requiredList(schema map[string]interface{}) []string {
	var out []string
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []interface{}:
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func enumList(schema map[string]interface{}) []string {
	var out []string
	switch enum := schema["enum"].(type) {
	case []string:
		return enum
	case []interface{}:
		for _, v := range enum {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

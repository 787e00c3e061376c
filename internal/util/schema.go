package util

// ObjectSchema builds a minimal JSON Schema object from property name/schema
// pairs, marking every property as required. Used for the constrained-output
// shapes the selector and termination predicate rely on.
func ObjectSchema(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// StringProp returns a string property schema with a description.
func StringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// BoolProp returns a boolean property schema with a description.
func BoolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

// EnumProp returns a string property schema constrained to the given values.
func EnumProp(description string, values []string) map[string]any {
	enum := make([]any, 0, len(values))
	for _, v := range values {
		enum = append(enum, v)
	}
	return map[string]any{"type": "string", "description": description, "enum": enum}
}

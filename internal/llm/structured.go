package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSchemaValidation is the sentinel wrapped by every *SchemaError.
var ErrSchemaValidation = errors.New("schema validation failed")

// SchemaError reports a model reply that does not satisfy its schema.
type SchemaError struct {
	Schema string
	Reason string
	Raw    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrSchemaValidation, e.Schema, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchemaValidation }

// Schema is a named JSON Schema that a structured reply must satisfy.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Required lists the keys the definition marks as required.
func (s *Schema) Required() []string {
	switch r := s.Definition["required"].(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, v := range r {
			if str, ok := v.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// JSON returns the definition as indented JSON for prompt embedding.
func (s *Schema) JSON() string {
	b, err := json.MarshalIndent(s.Definition, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ObjectSchema builds a strict object schema where every property is
// required.
func ObjectSchema(name string, properties map[string]any) *Schema {
	required := make([]string, 0, len(properties))
	for k := range properties {
		required = append(required, k)
	}
	sort.Strings(required)
	return &Schema{
		Name: name,
		Definition: map[string]any{
			"type":                 "object",
			"properties":           properties,
			"required":             required,
			"additionalProperties": false,
		},
	}
}

// Validator is implemented by decode targets that check their own
// value constraints (enums, ranges) after decoding.
type Validator interface {
	Validate() error
}

// Decode parses a structured reply into dst and validates it against
// schema. Markdown code fences around the JSON are tolerated. Any
// failure is a *SchemaError.
func Decode(content string, schema *Schema, dst any) error {
	raw := stripCodeFence(content)

	fail := func(format string, args ...any) error {
		return &SchemaError{Schema: schema.Name, Reason: fmt.Sprintf(format, args...), Raw: content}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return fail("reply is not a JSON object: %v", err)
	}
	for _, key := range schema.Required() {
		if _, ok := fields[key]; !ok {
			return fail("missing required field %q", key)
		}
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fail("%v", err)
	}
	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fail("%v", err)
		}
	}
	return nil
}

// stripCodeFence removes a surrounding ```json ... ``` block.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

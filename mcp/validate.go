package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Validate checks raw tool arguments against the tool's declared input
// schema. It either accepts the whole argument object or rejects it with a
// *ValidationError listing every offending field; absent or null arguments
// are treated as an empty object.
func Validate(tool *Tool, raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	// Numbers stay json.Number so that values outside the float64 range are
	// accepted here exactly as they are inside string-encoded content.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return nil, &ValidationError{Tool: tool.Name, Problems: []FieldError{{
			Field:    "arguments",
			Expected: "object",
			Message:  fmt.Sprintf("arguments are not valid JSON: %v", err),
		}}}
	}
	args, ok := instance.(map[string]any)
	if !ok {
		return nil, &ValidationError{Tool: tool.Name, Problems: []FieldError{{
			Field:    "arguments",
			Expected: "object",
			Got:      jsonType(instance),
			Message:  "arguments must be an object",
		}}}
	}

	if problems := fieldProblems(tool.InputSchema, args); len(problems) > 0 {
		return nil, &ValidationError{Tool: tool.Name, Problems: problems}
	}

	if tool.resolved != nil {
		if err := tool.resolved.Validate(schemaInstance(args)); err != nil {
			return nil, &ValidationError{Tool: tool.Name, Problems: []FieldError{{Message: err.Error()}}}
		}
	}

	return args, nil
}

// fieldProblems reports missing required properties and properties whose
// JSON type is not one the schema allows
func fieldProblems(schema *jsonschema.Schema, args map[string]any) []FieldError {
	if schema == nil {
		return nil
	}

	var problems []FieldError
	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			problems = append(problems, FieldError{
				Field:    name,
				Expected: describe(schema.Properties[name]),
				Message:  "required field is missing",
			})
		}
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, ok := args[name]
		if !ok {
			continue
		}
		prop := schema.Properties[name]
		if !accepts(prop, value) {
			problems = append(problems, FieldError{
				Field:    name,
				Expected: describe(prop),
				Got:      jsonType(value),
				Message:  fmt.Sprintf("expected %s, got %s", describe(prop), jsonType(value)),
			})
		}
	}

	return problems
}

// accepts reports whether value has one of the JSON types allowed by s.
// Constraints other than type are left to the resolved schema.
func accepts(s *jsonschema.Schema, value any) bool {
	allowed := allowedTypes(s)
	if len(allowed) == 0 {
		return true
	}
	got := jsonType(value)
	for _, t := range allowed {
		if t == got || (t == "number" && got == "integer") {
			return true
		}
	}
	return false
}

func allowedTypes(s *jsonschema.Schema) []string {
	if s == nil {
		return nil
	}
	var types []string
	if s.Type != "" {
		types = append(types, s.Type)
	}
	types = append(types, s.Types...)
	for _, alt := range s.AnyOf {
		sub := allowedTypes(alt)
		if len(sub) == 0 {
			return nil
		}
		types = append(types, sub...)
	}
	return types
}

func describe(s *jsonschema.Schema) string {
	types := allowedTypes(s)
	if len(types) == 0 {
		return "any"
	}
	return strings.Join(types, " | ")
}

func jsonType(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return "integer"
		}
		if _, frac := math.Modf(numberValue(x)); frac == 0 {
			return "integer"
		}
		return "number"
	case float64:
		if _, frac := math.Modf(x); frac == 0 {
			return "integer"
		}
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// numberValue converts n to a float64, clamping magnitudes beyond the
// float64 range to the largest finite value of the same sign
func numberValue(n json.Number) float64 {
	f, _ := strconv.ParseFloat(n.String(), 64)
	if math.IsInf(f, 0) {
		return math.Copysign(math.MaxFloat64, f)
	}
	return f
}

// schemaInstance copies v with every json.Number replaced by its float64
// value, the numeric form the schema validator understands
func schemaInstance(v any) any {
	switch x := v.(type) {
	case json.Number:
		return numberValue(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = schemaInstance(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = schemaInstance(e)
		}
		return out
	default:
		return v
	}
}

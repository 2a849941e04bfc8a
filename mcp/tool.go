package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolHandler executes a tool with arguments that already passed
// validation. Returning a result with IsError set reports a failure of the
// operation; returning an error rejects the call at the protocol level.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*CallToolResult, error)

// Tool is a named operation exposed to clients together with the schema of
// the arguments it accepts. Tools are immutable once registered.
type Tool struct {
	Name        string
	Title       string
	Description string
	InputSchema *jsonschema.Schema

	handler  ToolHandler
	resolved *jsonschema.Resolved
}

// NewTool creates a tool whose handler receives its arguments decoded into
// In. Decoding happens only after the arguments validated against schema.
func NewTool[In any](name, title, description string, schema *jsonschema.Schema, fn func(ctx context.Context, in In) (*CallToolResult, error)) *Tool {
	t := &Tool{
		Name:        name,
		Title:       title,
		Description: description,
		InputSchema: schema,
	}
	t.handler = func(ctx context.Context, args json.RawMessage) (*CallToolResult, error) {
		var in In
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, &ValidationError{Tool: t.Name, Problems: []FieldError{{Message: err.Error()}}}
		}
		return fn(ctx, in)
	}
	return t
}

// Info returns the catalogue entry for the tool
func (t *Tool) Info() ToolInfo {
	return ToolInfo{
		Name:        t.Name,
		Title:       t.Title,
		Description: t.Description,
		InputSchema: t.InputSchema,
	}
}

// Call validates args and runs the tool. Results are checked to hold at
// least one content block.
func (t *Tool) Call(ctx context.Context, args json.RawMessage) (*CallToolResult, error) {
	if _, err := Validate(t, args); err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(args); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		args = json.RawMessage("{}")
	}

	result, err := t.handler(ctx, args)
	if err != nil {
		return nil, err
	}
	if result == nil || len(result.Content) == 0 {
		return nil, fmt.Errorf("tool %s returned no content", t.Name)
	}
	return result, nil
}

// prepare checks the definition and resolves its schema for validation
func (t *Tool) prepare() error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}
	if t.InputSchema == nil {
		t.InputSchema = &jsonschema.Schema{Type: "object"}
	}
	if t.InputSchema.Type != "object" {
		return fmt.Errorf("tool %s: input schema must have type \"object\"", t.Name)
	}

	resolved, err := t.InputSchema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %s: resolving input schema: %w", t.Name, err)
	}
	t.resolved = resolved
	return nil
}

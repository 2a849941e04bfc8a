package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/asif-nvc/mcp-chat-visualizer/mcp"
)

// JSONContent is a diagram argument that clients may send either as a
// string holding JSON or as an inline object
type JSONContent struct {
	data     json.RawMessage
	isString bool
	text     string
}

// UnmarshalJSON accepts a JSON string or a JSON object and nothing else
func (c *JSONContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = JSONContent{isString: true, text: s}
	case '{':
		*c = JSONContent{data: append(json.RawMessage(nil), data...)}
	default:
		return fmt.Errorf("expected a JSON string or object, got %s", preview(data))
	}
	return nil
}

// IsString reports whether the content arrived as a string
func (c JSONContent) IsString() bool {
	return c.isString
}

// Object returns the content as a JSON object. Both representations go
// through the same decoder, so equal documents yield equal objects and
// numbers keep their original spelling. A string that does not hold a
// single JSON object is reported as *mcp.MalformedJSONError.
func (c JSONContent) Object(field string) (map[string]any, error) {
	src := []byte(c.data)
	if c.isString {
		src = []byte(c.text)
	}

	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if err == io.EOF {
			err = errors.New("empty document")
		}
		return nil, &mcp.MalformedJSONError{Field: field, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &mcp.MalformedJSONError{Field: field, Err: errors.New("unexpected data after the JSON value")}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &mcp.MalformedJSONError{Field: field, Err: fmt.Errorf("expected an object, got %s", kind(v))}
	}
	return obj, nil
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number:
		return "number"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func preview(data []byte) string {
	const max = 32
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

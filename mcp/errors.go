package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asif-nvc/mcp-chat-visualizer/jsonrpc"
)

// ErrRegistrySealed is returned when a tool is registered after the
// registry has been handed to a Server
var ErrRegistrySealed = errors.New("tool registry is sealed")

// DuplicateToolError reports a second registration under an existing name
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownToolError reports a call to a tool that is not registered
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// FieldError describes one argument that does not match the declared schema
type FieldError struct {
	Field    string `json:"field"`
	Expected string `json:"expected,omitempty"`
	Got      string `json:"got,omitempty"`
	Message  string `json:"message"`
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return f.Field + ": " + f.Message
}

// ValidationError reports that tool arguments were rejected before the tool
// ran
type ValidationError struct {
	Tool     string       `json:"tool"`
	Problems []FieldError `json:"problems"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, strings.Join(parts, "; "))
}

// MalformedJSONError reports a string argument that was expected to hold a
// JSON object but could not be decoded as one
type MalformedJSONError struct {
	Field string
	Err   error
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("%s is not a valid JSON object: %v", e.Field, e.Err)
}

func (e *MalformedJSONError) Unwrap() error {
	return e.Err
}

// rpcError maps a dispatch failure onto the JSON-RPC error it is reported
// as. Client input faults become invalid-params errors; everything else is
// internal.
func rpcError(err error) *jsonrpc.Error {
	var (
		unknown    *UnknownToolError
		validation *ValidationError
		malformed  *MalformedJSONError
		rpcErr     *jsonrpc.Error
	)
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.As(err, &unknown):
		return jsonrpc.NewErrorWithMessage(jsonrpc.ErrInvalidParams, unknown.Error(), map[string]string{"tool": unknown.Name})
	case errors.As(err, &validation):
		return jsonrpc.NewErrorWithMessage(jsonrpc.ErrInvalidParams, validation.Error(), validation)
	case errors.As(err, &malformed):
		return jsonrpc.NewErrorWithMessage(jsonrpc.ErrInvalidParams, malformed.Error(), map[string]string{"field": malformed.Field})
	default:
		return jsonrpc.NewError(jsonrpc.ErrInternal, nil)
	}
}

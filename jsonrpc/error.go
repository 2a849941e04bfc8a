package jsonrpc

import "fmt"

// ErrorCode is a JSON-RPC 2.0 error code
type ErrorCode int

// Codes reserved by JSON-RPC 2.0
const (
	ErrParse          ErrorCode = -32700 // invalid JSON
	ErrInvalidRequest ErrorCode = -32600 // not a valid Request object
	ErrMethodNotFound ErrorCode = -32601
	ErrInvalidParams  ErrorCode = -32602 // arguments rejected before any work is done
	ErrInternal       ErrorCode = -32603 // unexpected fault while handling a request

	// ErrServer is the first of the implementation-defined server codes
	// (-32000 through -32099)
	ErrServer ErrorCode = -32000
)

// IsServerError reports whether c falls in the implementation-defined range
func (c ErrorCode) IsServerError() bool {
	return c <= ErrServer && c >= -32099
}

// String returns the standard message for c
func (c ErrorCode) String() string {
	switch c {
	case ErrParse:
		return "Parse error"
	case ErrInvalidRequest:
		return "Invalid Request"
	case ErrMethodNotFound:
		return "Method not found"
	case ErrInvalidParams:
		return "Invalid params"
	case ErrInternal:
		return "Internal error"
	}
	if c.IsServerError() {
		return "Server error"
	}
	return "Unknown error"
}

// Error is the error member of a response
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NewError returns an error carrying the standard message for code
func NewError(code ErrorCode, data any) *Error {
	return &Error{Code: code, Message: code.String(), Data: data}
}

// NewErrorWithMessage is like NewError but replaces the standard message
// when message is not empty
func NewErrorWithMessage(code ErrorCode, message string, data any) *Error {
	e := NewError(code, data)
	if message != "" {
		e.Message = message
	}
	return e
}

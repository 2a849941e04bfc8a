package jsonrpc

import "encoding/json"

// Version is the JSON-RPC protocol version
const Version = "2.0"

// Request represents a JSON-RPC request or notification object
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      ID              `json:"id"`
}

// NewRequest creates a new Request object. A nil id creates a notification
func NewRequest(method string, params json.RawMessage, id interface{}) Request {
	reqID, _ := NewID(id)
	return Request{
		Version: Version,
		Method:  method,
		Params:  params,
		ID:      reqID,
	}
}

// IsNotification reports whether the request carries no id and therefore
// expects no response
func (r Request) IsNotification() bool {
	return r.ID.IsNil()
}

// Validate checks the envelope fields that every request must carry
func (r Request) Validate() *Error {
	if r.Version != Version {
		return NewErrorWithMessage(ErrInvalidRequest, "Invalid Request: jsonrpc must be \"2.0\"", nil)
	}
	if r.Method == "" {
		return NewErrorWithMessage(ErrInvalidRequest, "Invalid Request: method is required", nil)
	}
	return nil
}

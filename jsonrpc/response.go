package jsonrpc

// Result is any JSON-encodable result value
type Result any

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is
// set; an error raised before the request id was known carries a null ID
type Response struct {
	Version string `json:"jsonrpc"`
	Result  Result `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      ID     `json:"id"`
}

// NewResponse builds a response for id. An id that is neither a string
// nor a number is answered with a null id
func NewResponse(id any, result Result, err *Error) Response {
	respID, _ := NewID(id)
	return Response{Version: Version, Result: result, Error: err, ID: respID}
}

// NewErrorResponse builds a failed response for id
func NewErrorResponse(id any, err *Error) Response {
	return NewResponse(id, nil, err)
}

// Failed reports whether the response carries an error
func (r Response) Failed() bool {
	return r.Error != nil
}

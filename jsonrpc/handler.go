package jsonrpc

import "context"

// Handler defines the interface for handling JSON-RPC requests.
// The reply function is called at most once; it is never called for
// notifications
type Handler interface {
	Handle(ctx context.Context, request Request, reply func(Response) error) error
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/asif-nvc/mcp-chat-visualizer/jsonrpc"
)

// SessionState is a step in the lifecycle of a Session
type SessionState int

const (
	StateCreated SessionState = iota
	StateConnected
	StateDispatching
	StateIdle
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateDispatching:
		return "dispatching"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// ErrSessionClosed is returned when a closed session is asked to handle a
// message
var ErrSessionClosed = errors.New("session is closed")

// Session binds one client connection to a Server. A session handles one
// message at a time: the reply to a message is flushed before the next
// message is accepted.
type Session struct {
	server *Server

	mu         sync.Mutex
	state      SessionState
	clientInfo *Implementation
	version    string
}

var _ jsonrpc.Handler = (*Session)(nil)

// State returns the current lifecycle state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClientInfo returns the client implementation announced in initialize, if
// any
func (s *Session) ClientInfo() *Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientInfo
}

// Connect marks the transport handshake as complete
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreated {
		return fmt.Errorf("cannot connect session in state %s", s.state)
	}
	s.state = StateConnected
	return nil
}

// Close ends the session. Closing is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
}

func (s *Session) transition(from []SessionState, to SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range from {
		if s.state == f {
			s.state = to
			return nil
		}
	}
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	return fmt.Errorf("cannot enter %s from %s", to, s.state)
}

// Handle dispatches one inbound message. For requests, reply is called
// with the response; the session stays in StateDispatching until reply
// returns. A reply error closes the session and is returned.
func (s *Session) Handle(ctx context.Context, request jsonrpc.Request, reply func(jsonrpc.Response) error) error {
	if err := s.transition([]SessionState{StateConnected, StateIdle}, StateDispatching); err != nil {
		return err
	}

	response, ok := s.dispatch(ctx, request)
	if ok {
		if response.Failed() {
			s.server.logger.Debug("request failed", "method", request.Method, "id", request.ID, "code", response.Error.Code)
		}
		if err := reply(response); err != nil {
			s.Close()
			return fmt.Errorf("writing response: %w", err)
		}
	}

	// A concurrent Close wins over returning to idle.
	_ = s.transition([]SessionState{StateDispatching}, StateIdle)
	return nil
}

// dispatch computes the response for request. The boolean is false for
// notifications, which are never answered.
func (s *Session) dispatch(ctx context.Context, request jsonrpc.Request) (jsonrpc.Response, bool) {
	logger := s.server.logger

	if request.IsNotification() {
		switch request.Method {
		case MethodInitialized:
			logger.Debug("client initialized")
		default:
			logger.Debug("ignoring notification", "method", request.Method)
		}
		return jsonrpc.Response{}, false
	}

	if rpcErr := request.Validate(); rpcErr != nil {
		return jsonrpc.NewErrorResponse(request.ID, rpcErr), true
	}

	switch request.Method {
	case MethodInitialize:
		return s.handleInitialize(request), true
	case MethodPing:
		return jsonrpc.NewResponse(request.ID, struct{}{}, nil), true
	case MethodToolsList:
		return jsonrpc.NewResponse(request.ID, ListToolsResult{Tools: s.server.registry.List()}, nil), true
	case MethodToolsCall:
		return s.handleToolsCall(ctx, request), true
	default:
		return jsonrpc.NewErrorResponse(request.ID, jsonrpc.NewError(jsonrpc.ErrMethodNotFound, request.Method)), true
	}
}

func (s *Session) handleInitialize(request jsonrpc.Request) jsonrpc.Response {
	var params InitializeParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return jsonrpc.NewErrorResponse(request.ID, jsonrpc.NewError(jsonrpc.ErrInvalidParams, err.Error()))
		}
	}

	version := negotiateVersion(params.ProtocolVersion)

	s.mu.Lock()
	s.clientInfo = &params.ClientInfo
	s.version = version
	s.mu.Unlock()

	s.server.logger.Info("client connected",
		"client", params.ClientInfo.Name,
		"clientVersion", params.ClientInfo.Version,
		"protocolVersion", version)

	return jsonrpc.NewResponse(request.ID, InitializeResult{
		ProtocolVersion: version,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{ListChanged: false},
		},
		ServerInfo:   s.server.info,
		Instructions: s.server.instructions,
	}, nil)
}

func (s *Session) handleToolsCall(ctx context.Context, request jsonrpc.Request) jsonrpc.Response {
	var params CallToolParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(request.ID, jsonrpc.NewError(jsonrpc.ErrInvalidParams, err.Error()))
	}

	start := time.Now()
	result, err := s.callTool(ctx, params)
	elapsed := time.Since(start)

	logger := s.server.logger.With("tool", params.Name, "duration", elapsed)
	if err != nil {
		rpcErr := rpcError(err)
		outcome := OutcomeRejected
		if rpcErr.Code == jsonrpc.ErrInternal {
			outcome = OutcomeFailed
			logger.Error("tool call failed", "error", err)
		} else {
			logger.Info("tool call rejected", "error", err)
		}
		s.server.metrics.record(ctx, metricToolName(err, params.Name), outcome, elapsed)
		return jsonrpc.NewErrorResponse(request.ID, rpcErr)
	}

	outcome := OutcomeOK
	if result.IsError {
		outcome = OutcomeSoftError
		logger.Warn("tool reported an error")
	} else {
		logger.Debug("tool call completed")
	}
	s.server.metrics.record(ctx, params.Name, outcome, elapsed)

	return jsonrpc.NewResponse(request.ID, result, nil)
}

// metricToolName is the tool attribute recorded for a call. Names that are
// not registered share one value so clients cannot mint new series
func metricToolName(err error, name string) string {
	var unknown *UnknownToolError
	if errors.As(err, &unknown) {
		return UnknownToolMetricName
	}
	return name
}

// callTool runs a tool, turning a handler panic into an error so a single
// faulty call cannot take the process down
func (s *Session) callTool(ctx context.Context, params CallToolParams) (result *CallToolResult, err error) {
	tool, err := s.server.registry.Lookup(params.Name)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			s.server.logger.Error("tool panicked", "tool", params.Name, "panic", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("tool %s panicked: %v", params.Name, r)
		}
	}()

	return tool.Call(ctx, params.Arguments)
}

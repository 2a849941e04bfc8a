package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/asif-nvc/mcp-chat-visualizer/jsonrpc"
)

// Paths served by the HTTP front door
const (
	EndpointPath = "/mcp"
	HealthPath   = "/health"
)

// DefaultMaxBodySize bounds a single /mcp request body
const DefaultMaxBodySize = 16 * 1024 * 1024

// corsHeaders are attached to every response
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":   "*",
	"Access-Control-Allow-Methods":  "GET, POST, DELETE, OPTIONS",
	"Access-Control-Allow-Headers":  "Content-Type, Accept, Authorization, Mcp-Session-Id, Mcp-Protocol-Version",
	"Access-Control-Expose-Headers": "Mcp-Session-Id",
}

// HTTPTransport serves the protocol over stateless HTTP request/response
// cycles. Every request to the endpoint gets a fresh session; no session
// identifier is issued, so no state survives between requests.
type HTTPTransport struct {
	addr        string
	serviceName string
	logger      *slog.Logger

	maxBodySize       int64
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
}

var _ Transport = (*HTTPTransport)(nil)

// HTTPOption configures an HTTPTransport
type HTTPOption func(*HTTPTransport)

// WithServiceName sets the name reported by the health check
func WithServiceName(name string) HTTPOption {
	return func(t *HTTPTransport) {
		t.serviceName = name
	}
}

// WithHTTPLogger sets the logger for request and fault logging
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithShutdownTimeout bounds how long in-flight requests may take to drain
func WithShutdownTimeout(d time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		t.shutdownTimeout = d
	}
}

// WithMaxBodySize bounds the size of a request body to the endpoint
func WithMaxBodySize(n int64) HTTPOption {
	return func(t *HTTPTransport) {
		if n > 0 {
			t.maxBodySize = n
		}
	}
}

// NewHTTPTransport creates a transport listening on addr
func NewHTTPTransport(addr string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		addr:              addr,
		serviceName:       "mcp-server",
		logger:            slog.Default(),
		maxBodySize:       DefaultMaxBodySize,
		readHeaderTimeout: 10 * time.Second,
		shutdownTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully
func (t *HTTPTransport) Serve(ctx context.Context, server *Server) error {
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", t.addr, err)
	}
	return t.ServeListener(ctx, ln, server)
}

// ServeListener is like Serve but accepts connections on ln
func (t *HTTPTransport) ServeListener(ctx context.Context, ln net.Listener, server *Server) error {
	srv := &http.Server{
		Handler:           t.Handler(server),
		ReadHeaderTimeout: t.readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		t.logger.Info("listening", "addr", ln.Addr().String(), "endpoint", EndpointPath)
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the front door: CORS, pre-flight, health check, the
// protocol endpoint, and fault translation
func (t *HTTPTransport) Handler(server *Server) http.Handler {
	endpoint := &endpointHandler{server: server, logger: t.logger, maxBodySize: t.maxBodySize}
	health, _ := json.Marshal(map[string]string{"status": "ok", "name": t.serviceName})

	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case EndpointPath:
			endpoint.ServeHTTP(w, r)
		case HealthPath, "/":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(health)
		default:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, "Not Found")
		}
	})

	return t.logRequests(recoverFaults(t.logger, cors(mux)))
}

// cors attaches the CORS headers and answers pre-flight requests
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for key, value := range corsHeaders {
			w.Header().Set(key, value)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code and
// whether anything has been written yet
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.statusCode = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.statusCode = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		r.written = true
		f.Flush()
	}
}

// recoverFaults turns a panic into a 500 response if the response has not
// started yet; otherwise the fault can only be logged
func recoverFaults(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := w.(*statusRecorder)
		if !ok {
			rec = &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		}

		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
			if rec.written {
				return
			}
			rec.Header().Set("Content-Type", "application/json")
			rec.WriteHeader(http.StatusInternalServerError)
			io.WriteString(rec, `{"error":"Internal server error"}`)
		}()

		next.ServeHTTP(rec, r)
	})
}

// logRequests logs the completion of every request
func (t *HTTPTransport) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		t.logger.LogAttrs(r.Context(), slog.LevelDebug, "request completed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.statusCode),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// endpointHandler serves the protocol endpoint, one session per request
type endpointHandler struct {
	server      *Server
	logger      *slog.Logger
	maxBodySize int64
}

func (h *endpointHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.servePost(w, r)
	case http.MethodDelete:
		// Sessions end with their request, so there is nothing to terminate.
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		w.Header().Set("Allow", "POST, DELETE, OPTIONS")
		writeRPCError(w, http.StatusMethodNotAllowed,
			jsonrpc.NewErrorWithMessage(jsonrpc.ErrServer, "Method not allowed: this server does not offer a standalone event stream", nil))
	default:
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		writeRPCError(w, http.StatusMethodNotAllowed,
			jsonrpc.NewErrorWithMessage(jsonrpc.ErrServer, "Method not allowed", nil))
	}
}

func (h *endpointHandler) servePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.logger.Debug("reading request body", "error", err, "status", status)
		writeRPCError(w, status, jsonrpc.NewError(jsonrpc.ErrInvalidRequest, err.Error()))
		return
	}

	requests, batch, err := decodeMessages(body)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, jsonrpc.NewError(jsonrpc.ErrParse, err.Error()))
		return
	}

	session := h.server.NewSession()
	if err := session.Connect(); err != nil {
		panic(err)
	}
	defer session.Close()

	var responses []jsonrpc.Response
	collect := func(resp jsonrpc.Response) error {
		responses = append(responses, resp)
		return nil
	}
	for _, req := range requests {
		if err := session.Handle(r.Context(), req, collect); err != nil {
			panic(err)
		}
	}

	if len(responses) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	var payload interface{} = responses[0]
	if batch {
		payload = responses
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Errorf("encoding response: %w", err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("client went away before the response was written", "error", err)
	}
}

// decodeMessages accepts a single JSON-RPC message or a batch
func decodeMessages(body []byte) ([]jsonrpc.Request, bool, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false, errors.New("empty request body")
	}

	if body[0] == '[' {
		var batch []jsonrpc.Request
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, true, err
		}
		if len(batch) == 0 {
			return nil, true, errors.New("empty batch")
		}
		return batch, true, nil
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, false, err
	}
	return []jsonrpc.Request{req}, false, nil
}

func writeRPCError(w http.ResponseWriter, status int, rpcErr *jsonrpc.Error) {
	data, _ := json.Marshal(jsonrpc.NewErrorResponse(nil, rpcErr))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

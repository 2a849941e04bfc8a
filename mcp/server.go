package mcp

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Server holds the process-wide state shared by every session: the tool
// registry and the identity reported during initialization. It is safe
// for concurrent use once constructed.
type Server struct {
	registry     *Registry
	info         Implementation
	instructions string
	logger       *slog.Logger
	meter        metric.MeterProvider
	metrics      *toolMetrics
}

// ServerOption configures a Server
type ServerOption func(*Server) error

// NewServer creates a Server for registry. The registry is sealed; no
// tools may be added afterwards.
func NewServer(registry *Registry, opts ...ServerOption) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	s := &Server{
		registry: registry,
		info:     Implementation{Name: "mcp-server", Version: "dev"},
		logger:   slog.Default(),
		meter:    otel.GetMeterProvider(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	m, err := newToolMetrics(s.meter)
	if err != nil {
		return nil, err
	}
	s.metrics = m

	registry.Seal()
	return s, nil
}

// WithServerInfo sets the name and version reported to clients
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) error {
		s.info.Name = name
		s.info.Version = version
		return nil
	}
}

// WithInstructions sets the usage hint returned from initialize
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) error {
		s.instructions = instructions
		return nil
	}
}

// WithLogger sets the logger used by the server and its sessions
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithMeterProvider sets the provider tool metrics are recorded with
func WithMeterProvider(mp metric.MeterProvider) ServerOption {
	return func(s *Server) error {
		if mp == nil {
			return fmt.Errorf("meter provider cannot be nil")
		}
		s.meter = mp
		return nil
	}
}

// Registry returns the server's tool registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// Info returns the implementation details reported to clients
func (s *Server) Info() Implementation {
	return s.info
}

// Logger returns the server's logger
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// NewSession creates a session bound to this server. Sessions are cheap and
// must not be shared between connections.
func (s *Server) NewSession() *Session {
	return &Session{server: s, state: StateCreated}
}

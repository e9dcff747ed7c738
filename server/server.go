// Package server provides the MCP tool server: a registry of named tools and
// the JSON-RPC dispatch that exposes them, independent of transport.
package server

import (
	"log/slog"
	"sync"

	"github.com/localrivet/calcmcp/logx"
	"github.com/localrivet/calcmcp/protocol"
)

// DefaultVersion is reported in serverInfo when none is configured.
const DefaultVersion = "1.0.0"

// Server holds the registered tools and answers MCP requests.
type Server struct {
	name         string
	version      string
	instructions string
	logger       *slog.Logger

	mu    sync.RWMutex
	tools map[string]*Tool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version reported during initialization.
func WithVersion(version string) Option {
	return func(s *Server) {
		if version != "" {
			s.version = version
		}
	}
}

// WithInstructions sets the instructions returned during initialization.
func WithInstructions(instructions string) Option {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// NewServer creates a Server named name.
func NewServer(name string, opts ...Option) *Server {
	s := &Server{
		name:    name,
		version: DefaultVersion,
		logger:  logx.Discard(),
		tools:   make(map[string]*Tool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Info("MCP server created", "name", name, "version", s.version)
	return s
}

// Name returns the server name.
func (s *Server) Name() string {
	return s.name
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Info describes the server implementation.
func (s *Server) Info() protocol.Implementation {
	return protocol.Implementation{Name: s.name, Version: s.version}
}

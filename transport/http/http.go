// Package http provides the calculator's HTTP surface: health checks, the
// plain tool endpoint, and the MCP endpoint (JSON-RPC over POST, a streaming
// placeholder over GET, and WebSocket).
package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localrivet/calcmcp/auth"
	"github.com/localrivet/calcmcp/logx"
	"github.com/localrivet/calcmcp/server"
	"github.com/localrivet/calcmcp/transport/ws"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown
const DefaultShutdownTimeout = 10 * time.Second

// Route prefixes guarded by the access-control gate.
const (
	PrefixMCP   = "/mcp"
	PrefixTools = "/tools"
)

// Config configures the HTTP transport.
type Config struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string
	// MaxBodyBytes caps request bodies. Zero means no cap.
	MaxBodyBytes int64
	// HealthRequireAuth puts the health routes behind the gate.
	HealthRequireAuth bool
}

// Transport serves the MCP server over HTTP.
type Transport struct {
	cfg    Config
	srv    *server.Server
	gate   *auth.Gate
	logger *slog.Logger

	engine     *gin.Engine
	ws         *ws.Handler
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewTransport creates a transport for srv guarded by gate.
func NewTransport(cfg Config, srv *server.Server, gate *auth.Gate, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = logx.Discard()
	}
	if gate == nil {
		gate = &auth.Gate{}
	}
	t := &Transport{
		cfg:    cfg,
		srv:    srv,
		gate:   gate,
		logger: logger,
	}
	t.ws = ws.NewHandler(srv.HandleMessage, logger)
	t.engine = t.newEngine()
	return t
}

// Handler returns the HTTP handler serving every route.
func (t *Transport) Handler() http.Handler {
	return t.engine
}

// Start listens on the configured address and serves in the background.
func (t *Transport) Start() error {
	ln, err := net.Listen("tcp", t.cfg.Addr)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.listener = ln
	t.httpServer = &http.Server{
		Handler:           t.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	hs := t.httpServer
	t.mu.Unlock()

	go func() {
		t.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the address the transport listens on, or "" before Start.
func (t *Transport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
// Open WebSocket connections are closed.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	hs := t.httpServer
	t.mu.Unlock()
	if hs == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
	}

	t.logger.Info("shutting down HTTP server", "websocket_conns", t.ws.Len())
	wsErr := t.ws.Close()
	if err := hs.Shutdown(ctx); err != nil {
		return err
	}
	return wsErr
}

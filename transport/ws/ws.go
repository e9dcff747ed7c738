// Package ws serves MCP JSON-RPC over WebSocket connections.
//
// Each text or binary frame from the client is one JSON-RPC message (or
// batch); replies are written back on the same connection.
package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/localrivet/calcmcp/logx"
	"github.com/localrivet/calcmcp/transport"
)

// Handler upgrades HTTP requests to WebSocket and serves messages on them.
type Handler struct {
	handle transport.MessageHandler
	logger *slog.Logger

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// NewHandler creates a Handler that passes every message to handle.
func NewHandler(handle transport.MessageHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logx.Discard()
	}
	return &Handler{
		handle: handle,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// ServeHTTP upgrades the connection and serves it until the client goes away.
// The request context is handed to every message, so values stored on it by
// middleware (request ID, principal) remain visible.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	// Server read/write timeouts outlive the hijack; a session has none.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		h.logger.Warn("clearing websocket deadlines", "error", err)
	}
	h.track(conn)
	defer h.untrack(conn)

	h.serve(r.Context(), conn)
}

func (h *Handler) serve(ctx context.Context, conn net.Conn) {
	h.logger.Debug("websocket connected", "remote", conn.RemoteAddr().String())
	for {
		msg, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			h.logger.Debug("websocket closed", "remote", conn.RemoteAddr().String(), "error", err)
			return
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}

		reply, err := h.handle(ctx, msg)
		if err != nil {
			h.logger.Error("handling websocket message", "error", err)
			continue
		}
		if reply == nil {
			continue
		}
		if err := wsutil.WriteServerMessage(conn, ws.OpText, reply); err != nil {
			h.logger.Warn("writing websocket reply", "error", err)
			return
		}
	}
}

// Close closes all open connections.
func (h *Handler) Close() error {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()

	var firstErr error
	for conn := range h.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(h.conns, conn)
	}
	return firstErr
}

// Len returns the number of open connections.
func (h *Handler) Len() int {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	return len(h.conns)
}

func (h *Handler) track(conn net.Conn) {
	h.connsMu.Lock()
	h.conns[conn] = struct{}{}
	h.connsMu.Unlock()
}

func (h *Handler) untrack(conn net.Conn) {
	h.connsMu.Lock()
	delete(h.conns, conn)
	h.connsMu.Unlock()
	conn.Close()
}

package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/localrivet/calcmcp/auth"
	"github.com/localrivet/calcmcp/protocol"
	"github.com/localrivet/calcmcp/server"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

const requestIDKey = "request_id"

// writeError is the single place errors become HTTP responses.
func (t *Transport) writeError(c *gin.Context, err error) {
	kind := protocol.KindOf(err)
	status := protocol.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		t.logger.Error("request failed", "request_id", c.GetString(requestIDKey),
			"kind", kind.String(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": protocol.PublicMessage(err)})
}

// recovery turns panics into generic 500 responses.
func (t *Transport) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		t.writeError(c, protocol.Internal(fmt.Errorf("panic: %v", recovered)))
	})
}

// requestID tags the request with an ID taken from the X-Request-ID header
// or freshly generated.
func (t *Transport) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(server.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLog logs one line per request.
func (t *Transport) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		t.logger.Info("HTTP request",
			"request_id", c.GetString(requestIDKey),
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

// bodyLimit caps request bodies.
func (t *Transport) bodyLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if t.cfg.MaxBodyBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, t.cfg.MaxBodyBytes)
		}
		c.Next()
	}
}

// security enforces the API key and origin policy.
func (t *Transport) security() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.authorize(c) {
			return
		}
		c.Next()
	}
}

// guardPrefixes applies security to requests under the protected prefixes
// that matched no route, so unknown paths there are not probed for free.
func (t *Transport) guardPrefixes() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isProtected(c.Request.URL.Path) && !t.authorize(c) {
			return
		}
		c.Next()
	}
}

// authorize runs the gate, aborting with an error response on failure.
func (t *Transport) authorize(c *gin.Context) bool {
	ctx, err := t.gate.Check(c.Request.Context(), c.GetHeader(auth.HeaderAPIKey), c.GetHeader("Origin"))
	if err != nil {
		if protocol.KindOf(err) == protocol.KindAuth {
			t.logger.Warn("access denied", "request_id", c.GetString(requestIDKey),
				"path", c.Request.URL.Path, "reason", err.Error())
		}
		t.writeError(c, err)
		return false
	}
	c.Request = c.Request.WithContext(ctx)
	return true
}

func isProtected(path string) bool {
	for _, prefix := range []string{PrefixMCP, PrefixTools} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

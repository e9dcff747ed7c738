package server

import (
	"context"
	"log/slog"
	"time"
)

// Context carries per-call information into a tool handler.
type Context struct {
	ctx context.Context

	// Logger for this call, already tagged with the request ID.
	Logger *slog.Logger

	// RequestID identifies the call for tracing.
	RequestID string

	// ToolName is the tool being invoked.
	ToolName string
}

// NewContext creates a handler context.
func NewContext(ctx context.Context, requestID, toolName string, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	if requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	return &Context{
		ctx:       ctx,
		Logger:    logger,
		RequestID: requestID,
		ToolName:  toolName,
	}
}

// Context returns the underlying context.Context.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Done returns a channel that's closed when this context is canceled.
func (c *Context) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Deadline returns the time when this context will be canceled, if any.
func (c *Context) Deadline() (time.Time, bool) {
	return c.ctx.Deadline()
}

// Err returns nil if Done is not yet closed, otherwise it returns the reason.
func (c *Context) Err() error {
	return c.ctx.Err()
}

// Value returns the value associated with this context for key, or nil.
func (c *Context) Value(key any) any {
	return c.ctx.Value(key)
}

var _ context.Context = (*Context)(nil)

type requestIDKey struct{}

// ContextWithRequestID returns ctx tagged with a request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

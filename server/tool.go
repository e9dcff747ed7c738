package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/localrivet/calcmcp/protocol"
	"github.com/localrivet/calcmcp/util/schema"
)

// ToolHandler executes a tool call. Errors should be *protocol.Error values;
// anything else is reported to the caller as an internal error.
type ToolHandler func(ctx *Context, args map[string]any) (any, error)

// Tool represents a tool registered with the server.
type Tool struct {
	Name        string
	Description string
	Handler     ToolHandler
	InputSchema protocol.ToolInputSchema
	Annotations *protocol.ToolAnnotations
}

// Tool registers a tool. argsType is a struct (or pointer to one) whose json
// tags describe the tool's parameters; it is only used to build the input
// schema. Registering a name twice replaces the earlier tool.
func (s *Server) Tool(name, description string, handler ToolHandler, argsType any) *Server {
	if name == "" || handler == nil {
		s.logger.Error("invalid tool registration", "name", name)
		return s
	}

	inputSchema := protocol.ToolInputSchema{Type: "object"}
	if argsType != nil {
		inputSchema = schema.FromStruct(argsType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[name]; exists {
		s.logger.Warn("tool already registered, overwriting", "name", name)
	}
	s.tools[name] = &Tool{
		Name:        name,
		Description: description,
		Handler:     handler,
		InputSchema: inputSchema,
	}
	s.logger.Debug("registered tool", "name", name)
	return s
}

// WithAnnotations attaches behavior hints to a registered tool.
func (s *Server) WithAnnotations(name string, annotations protocol.ToolAnnotations) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	tool, ok := s.tools[name]
	if !ok {
		s.logger.Error("tool not found for annotations", "name", name)
		return s
	}
	tool.Annotations = &annotations
	return s
}

// Tools lists the registered tools sorted by name.
func (s *Server) Tools() []protocol.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]protocol.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, protocol.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
			Annotations: t.Annotations,
		})
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// CallTool runs the named tool with args.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (result any, err error) {
	s.mu.RLock()
	tool, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		return nil, protocol.Validation(fmt.Sprintf("Unknown tool '%s'", name))
	}

	callCtx := NewContext(ctx, RequestIDFromContext(ctx), name, s.logger)
	defer func() {
		if r := recover(); r != nil {
			callCtx.Logger.Error("tool handler panicked", "tool", name, "panic", r)
			result, err = nil, protocol.Internal(fmt.Errorf("tool %s panicked: %v", name, r))
		}
	}()

	result, err = tool.Handler(callCtx, args)
	if err != nil {
		kind := protocol.KindOf(err)
		if kind == protocol.KindInternal || kind == protocol.KindConfig {
			callCtx.Logger.Error("tool call failed", "tool", name, "kind", kind.String(), "error", err)
		} else {
			callCtx.Logger.Info("tool call rejected", "tool", name, "kind", kind.String(), "error", err)
		}
		return nil, err
	}
	return result, nil
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"

	"github.com/localrivet/calcmcp/protocol"
	"github.com/localrivet/calcmcp/util/conversion"
)

// HandleMessage processes one raw JSON-RPC message (or a batch) and returns
// the encoded response. Notifications produce a nil response.
func (s *Server) HandleMessage(ctx context.Context, raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return s.handleBatch(ctx, trimmed)
	}

	resp := s.handleSingle(ctx, trimmed)
	if resp == nil {
		return nil, nil
	}
	return json.Marshal(resp)
}

func (s *Server) handleBatch(ctx context.Context, raw []byte) ([]byte, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return json.Marshal(protocol.NewErrorResponse(nil, protocol.CodeParseError, "Parse error", err.Error()))
	}
	if len(items) == 0 {
		return json.Marshal(protocol.NewErrorResponse(nil, protocol.CodeInvalidRequest, "Invalid Request", "empty batch"))
	}

	responses := make([]*protocol.Response, 0, len(items))
	for _, item := range items {
		if resp := s.handleSingle(ctx, item); resp != nil {
			responses = append(responses, resp)
		}
	}
	if len(responses) == 0 {
		return nil, nil
	}
	return json.Marshal(responses)
}

func (s *Server) handleSingle(ctx context.Context, raw []byte) *protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return protocol.NewErrorResponse(nil, protocol.CodeParseError, "Parse error", err.Error())
	}
	if req.JSONRPC != protocol.JSONRPCVersion || req.Method == "" {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidRequest, "Invalid Request", nil)
	}

	if req.IsNotification() {
		s.logger.Debug("notification received", "method", req.Method)
		return nil
	}

	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(&req)
	case protocol.MethodPing:
		return protocol.NewSuccessResponse(req.ID, struct{}{})
	case protocol.MethodListTools:
		return protocol.NewSuccessResponse(req.ID, protocol.ListToolsResult{Tools: s.Tools()})
	case protocol.MethodCallTool:
		return s.handleCallTool(ctx, &req)
	default:
		return protocol.NewErrorResponse(req.ID, protocol.CodeMethodNotFound, "Method not found: "+req.Method, nil)
	}
}

func (s *Server) handleInitialize(req *protocol.Request) *protocol.Response {
	var params protocol.InitializeRequestParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidParams, "Invalid params", err.Error())
		}
	}

	version := protocol.CurrentProtocolVersion
	if slices.Contains(protocol.SupportedProtocolVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}
	s.logger.Info("client initialized", "client", params.ClientInfo.Name, "protocol_version", version)

	return protocol.NewSuccessResponse(req.ID, protocol.InitializeResult{
		ProtocolVersion: version,
		Capabilities: protocol.ServerCapabilities{
			Tools: &protocol.ToolsCapability{},
		},
		ServerInfo:   s.Info(),
		Instructions: s.instructions,
	})
}

func (s *Server) handleCallTool(ctx context.Context, req *protocol.Request) *protocol.Response {
	var params protocol.CallToolParams
	if len(req.Params) == 0 {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidParams, "Invalid params", "missing params")
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidParams, "Invalid params", err.Error())
	}
	if params.Name == "" {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidParams, "Invalid params", "tool name is required")
	}

	result, err := s.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return protocol.NewSuccessResponse(req.ID, protocol.CallToolResult{
			Content: []protocol.Content{protocol.NewTextContent(protocol.PublicMessage(err))},
			IsError: true,
		})
	}

	text, err := renderResult(result)
	if err != nil {
		s.logger.Error("encoding tool result", "tool", params.Name, "error", err)
		return protocol.NewErrorResponse(req.ID, protocol.CodeInternalError, "Internal error", nil)
	}
	return protocol.NewSuccessResponse(req.ID, protocol.CallToolResult{
		Content: []protocol.Content{protocol.NewTextContent(text)},
	})
}

// renderResult turns a tool result into the text of a content item.
func renderResult(result any) (string, error) {
	if text, ok := result.(string); ok {
		return text, nil
	}
	return conversion.ToJSON(result)
}

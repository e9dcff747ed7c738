package protocol

import (
	"encoding/json"
)

// ErrorPayload is the 'error' member of a JSON-RPC 2.0 response.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

// Request is an inbound JSON-RPC 2.0 request or notification. The ID is kept
// raw so it can be echoed back exactly as the client sent it.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no ID and therefore
// must not be answered.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is an outbound JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// NewSuccessResponse creates a JSON-RPC success response.
func NewSuccessResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates a JSON-RPC error response. A nil id is encoded as null.
func NewErrorResponse(id json.RawMessage, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &ErrorPayload{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// LooksLikeJSONRPC reports whether a raw body declares a "jsonrpc" member.
// It is used to tell JSON-RPC traffic apart from the plain tool envelope.
func LooksLikeJSONRPC(body []byte) bool {
	var probe struct {
		JSONRPC *string `json:"jsonrpc"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.JSONRPC != nil
}

// Package protocol defines the wire structures, constants and error taxonomy
// shared by the calculator's MCP and plain-HTTP surfaces.
package protocol

const (
	// CurrentProtocolVersion is the MCP revision the server answers with.
	CurrentProtocolVersion = "2025-03-26"
	// OldProtocolVersion is accepted from clients for compatibility.
	OldProtocolVersion = "2024-11-05"

	// JSONRPCVersion is the only JSON-RPC version understood.
	JSONRPCVersion = "2.0"

	// Initialization
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized" // Notification

	// Tools
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	// Ping
	MethodPing = "ping"

	// NotificationPrefix marks client notifications that never get a reply.
	NotificationPrefix = "notifications/"
)

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     ErrorCode = -32700
	CodeInvalidRequest ErrorCode = -32600
	CodeMethodNotFound ErrorCode = -32601
	CodeInvalidParams  ErrorCode = -32602
	CodeInternalError  ErrorCode = -32603
)

// SupportedProtocolVersions lists the protocol versions the server accepts
// during initialization, newest first.
var SupportedProtocolVersions = []string{CurrentProtocolVersion, OldProtocolVersion}

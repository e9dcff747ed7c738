package protocol

// Implementation describes the name and version of an MCP implementation.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities describes the features the server supports. The
// calculator only offers tools.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability describes tool-related server features.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// InitializeRequestParams defines the parameters for the 'initialize' request.
type InitializeRequestParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult defines the result payload for a successful 'initialize' response.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// Content is a single item of tool output.
type Content interface {
	GetType() string
}

// TextContent is plain text tool output.
type TextContent struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

func (tc TextContent) GetType() string { return tc.Type }

// NewTextContent builds a TextContent item.
func NewTextContent(text string) TextContent {
	return TextContent{Type: "text", Text: text}
}

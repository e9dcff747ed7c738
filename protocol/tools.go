package protocol

// ToolInputSchema defines the expected input structure for a tool (JSON Schema subset).
type ToolInputSchema struct {
	Type       string                    `json:"type"` // Typically "object"
	Properties map[string]PropertyDetail `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertyDetail describes a single parameter within a ToolInputSchema.
type PropertyDetail struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	Format      string `json:"format,omitempty"`
}

// ToolAnnotations provides optional hints about tool behavior.
type ToolAnnotations struct {
	Title          string `json:"title,omitempty"`
	ReadOnlyHint   *bool  `json:"readOnlyHint,omitempty"`
	IdempotentHint *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint  *bool  `json:"openWorldHint,omitempty"`
}

// Tool defines a tool offered by the server.
type Tool struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema ToolInputSchema  `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// ListToolsResult defines the result payload for a 'tools/list' response.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams defines the parameters for a 'tools/call' request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult defines the result payload for a 'tools/call' response.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

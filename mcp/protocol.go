package mcp

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// LatestProtocolVersion is the newest Model Context Protocol revision this
// server speaks
const LatestProtocolVersion = "2025-06-18"

// supportedProtocolVersions lists every revision accepted during
// initialization, newest first
var supportedProtocolVersions = []string{
	LatestProtocolVersion,
	"2025-03-26",
	"2024-11-05",
}

// Method names
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// Content types
type (
	// Content represents a single content block of a tool result
	Content struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
)

// NewTextContent creates a new text content block
func NewTextContent(text string) Content {
	return Content{
		Type: "text",
		Text: text,
	}
}

// Initialize
type (
	// Implementation describes the name and version of an MCP peer
	Implementation struct {
		Name    string `json:"name"`
		Title   string `json:"title,omitempty"`
		Version string `json:"version"`
	}

	// ToolsCapability advertises tool support
	ToolsCapability struct {
		ListChanged bool `json:"listChanged"`
	}

	// ServerCapabilities represents the server's supported capabilities
	ServerCapabilities struct {
		Tools *ToolsCapability `json:"tools,omitempty"`
	}

	// InitializeParams represents the parameters of an initialize request
	InitializeParams struct {
		ProtocolVersion string                 `json:"protocolVersion"`
		Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
		ClientInfo      Implementation         `json:"clientInfo"`
	}

	// InitializeResult represents the server's response to an initialize request
	InitializeResult struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    ServerCapabilities `json:"capabilities"`
		ServerInfo      Implementation     `json:"serverInfo"`
		Instructions    string             `json:"instructions,omitempty"`
	}
)

// Tools
type (
	// ToolInfo is the catalogue entry of a tool as returned by tools/list
	ToolInfo struct {
		Name        string             `json:"name"`
		Title       string             `json:"title,omitempty"`
		Description string             `json:"description,omitempty"`
		InputSchema *jsonschema.Schema `json:"inputSchema"`
	}

	// ListToolsResult represents the response for the tools/list method
	ListToolsResult struct {
		Tools      []ToolInfo `json:"tools"`
		NextCursor string     `json:"nextCursor,omitempty"`
	}

	// CallToolParams represents a request to call a specific tool
	CallToolParams struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
		Meta      map[string]any  `json:"_meta,omitempty"`
	}

	// CallToolResult represents the response from a tool call
	CallToolResult struct {
		Content []Content `json:"content"`
		IsError bool      `json:"isError,omitempty"`
	}
)

// TextResult creates a successful tool result holding a single text block
func TextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{NewTextContent(text)}}
}

// ErrorResult creates a tool result that reports a failure of the
// operation itself. The call still succeeds at the protocol level.
func ErrorResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{NewTextContent(text)}, IsError: true}
}

// negotiateVersion picks the protocol revision to answer an initialize
// request with
func negotiateVersion(requested string) string {
	for _, v := range supportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return LatestProtocolVersion
}

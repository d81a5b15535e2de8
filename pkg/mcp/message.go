// Package mcp provides the MCP protocol types and JSON-RPC codec
// utilities shared by the superpm-mcp transports and services.
package mcp

import (
	"encoding/json"
)

// ProtocolVersion is the MCP protocol revision this server implements.
const ProtocolVersion = "2024-11-05"

// JSON-RPC method names accepted by the dispatcher. Anything outside this
// set is answered with a method-not-found error envelope.
const (
	MethodInitialize  = "initialize"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
	MethodPromptsList = "prompts/list"
	MethodPromptsGet  = "prompts/get"
)

// JSON-RPC 2.0 error codes used at the dispatch boundary.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// IsValidMethod reports whether method belongs to the closed method set.
func IsValidMethod(method string) bool {
	switch method {
	case MethodInitialize, MethodPing, MethodToolsList, MethodToolsCall,
		MethodPromptsList, MethodPromptsGet:
		return true
	}
	return false
}

// Tool describes a callable tool exposed over tools/list.
// InputSchema carries the raw JSON Schema for the tool's arguments.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Prompt describes a named prompt exposed over prompts/list.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes one argument a prompt accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// TextContent is a single text block in a tool or prompt result.
// Type is always "text" for this server.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the result payload of a tools/call request.
// Recognized tool failures are reported in-band with IsError set,
// not as JSON-RPC errors.
type CallToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// NewTextResult wraps text in a successful CallToolResult.
func NewTextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []TextContent{{Type: "text", Text: text}}}
}

// NewErrorResult wraps text in a CallToolResult with IsError set.
func NewErrorResult(text string) *CallToolResult {
	return &CallToolResult{
		Content: []TextContent{{Type: "text", Text: text}},
		IsError: true,
	}
}

// PromptMessage is one message of a rendered prompt.
type PromptMessage struct {
	Role    string      `json:"role"`
	Content TextContent `json:"content"`
}

// GetPromptResult is the result payload of a prompts/get request.
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// CallToolParams are the parameters of a tools/call request.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// GetPromptParams are the parameters of a prompts/get request.
type GetPromptParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ListToolsResult is the result payload of a tools/list request.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// ListPromptsResult is the result payload of a prompts/list request.
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
}

// ServerInfo identifies the server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities advertises the feature surfaces this server supports.
// The empty-object convention follows the MCP handshake wire format.
type ServerCapabilities struct {
	Tools   map[string]any `json:"tools,omitempty"`
	Prompts map[string]any `json:"prompts,omitempty"`
}

// InitializeResult is the handshake result returned to a new session.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

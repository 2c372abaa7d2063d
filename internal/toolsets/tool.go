// Package toolsets binds tool definitions to handlers, groups them into
// named toolsets and exposes an immutable registry of the enabled subset.
package toolsets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/rpcerr"
)

// Tool is the definition advertised to clients.
type Tool struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	InputSchema *jsonschema.Schema      `json:"inputSchema"`
	Annotations *sdkmcp.ToolAnnotations `json:"annotations,omitempty"`
}

// Mutating reports whether the tool changes remote state. Tools without a
// read-only hint are treated as mutating.
func (t Tool) Mutating() bool {
	return t.Annotations == nil || !t.Annotations.ReadOnlyHint
}

// Arguments are the decoded tool call arguments.
type Arguments map[string]any

// ToolInvocation names a tool and carries its arguments.
type ToolInvocation struct {
	Name      string
	Arguments Arguments
}

// Content is one block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolResult is what a tool call returns to the client. A failing call is
// a result with IsError set, not a protocol error.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult wraps text in a successful result.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// JSONResult encodes v as indented JSON text.
func JSONResult(v any) (*ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.InternalError, err, "failed to encode result")
	}
	return TextResult(string(data)), nil
}

// ErrorResult describes err in a result with IsError set. The second line is
// machine-readable so an agent can decide whether to retry.
func ErrorResult(err error) *ToolResult {
	kind := rpcerr.KindOf(err)
	detail, _ := json.Marshal(struct {
		Error     string `json:"error"`
		Code      int    `json:"code"`
		Retryable bool   `json:"retryable"`
	}{
		Error:     kind.String(),
		Code:      kind.Code(),
		Retryable: kind.Retryable(),
	})
	return &ToolResult{
		Content: []Content{{Type: "text", Text: fmt.Sprintf("Error: %v\n%s", err, detail)}},
		IsError: true,
	}
}

// Handler executes a tool within a resolved scope.
type Handler interface {
	Invoke(ctx context.Context, scope auth.Scope, args Arguments) (*ToolResult, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, scope auth.Scope, args Arguments) (*ToolResult, error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, scope auth.Scope, args Arguments) (*ToolResult, error) {
	return f(ctx, scope, args)
}

// ServerTool pairs a definition with its handler.
type ServerTool struct {
	Tool    Tool
	Handler Handler
}

// NewServerTool creates a ServerTool.
func NewServerTool(tool Tool, handler Handler) ServerTool {
	return ServerTool{Tool: tool, Handler: handler}
}

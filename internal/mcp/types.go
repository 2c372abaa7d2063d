// Package mcp provides the MCP (Model Context Protocol) dispatcher and its
// transports
package mcp

import (
	"bytes"
	"encoding/json"
	"errors"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harness/mcp-server/internal/rpcerr"
	"github.com/harness/mcp-server/internal/toolsets"
)

// Protocol version
const (
	JSONRPCVersion  = "2.0"
	ProtocolVersion = "2024-11-05"
)

// MCP methods
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
	MethodPing       = "ping"

	notificationPrefix = "notifications/"
)

var jsonNull = json.RawMessage("null")

// JSON-RPC 2.0 request/response types

// JSONRPCRequest represents a JSON-RPC 2.0 request. ID is kept raw so it is
// echoed back byte for byte; an absent ID marks a notification.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *JSONRPCRequest) IsNotification() bool {
	return len(r.ID) == 0
}

// HasParams reports whether params were sent and are not null.
func (r *JSONRPCRequest) HasParams() bool {
	return len(r.Params) > 0 && !bytes.Equal(r.Params, jsonNull)
}

// DecodeRequest parses one JSON-RPC request. Payloads that are not a JSON
// object or lack a method fail with ParseError; a wrong version, a non-string
// method or a structured id fail with InvalidRequest.
func DecodeRequest(data []byte) (*JSONRPCRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, rpcerr.Wrap(rpcerr.ParseError, err, "invalid JSON")
	}
	if fields == nil {
		return nil, rpcerr.New(rpcerr.ParseError, "request must be a JSON object")
	}
	if _, ok := fields["method"]; !ok {
		return nil, rpcerr.New(rpcerr.ParseError, "method is required")
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, rpcerr.Wrap(rpcerr.InvalidRequest, err, "malformed request")
	}
	if req.JSONRPC != JSONRPCVersion {
		return nil, rpcerr.New(rpcerr.InvalidRequest, "invalid JSON-RPC version %q", req.JSONRPC)
	}
	if req.Method == "" {
		return nil, rpcerr.New(rpcerr.InvalidRequest, "method must not be empty")
	}
	if id := bytes.TrimSpace(req.ID); len(id) > 0 && (id[0] == '{' || id[0] == '[') {
		return nil, rpcerr.New(rpcerr.InvalidRequest, "id must be a string, number or null")
	}
	if bytes.Equal(req.Params, jsonNull) {
		req.Params = nil
	}
	return &req, nil
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// MarshalJSON always emits the version and an id, and exactly one of result
// and error.
func (r JSONRPCResponse) MarshalJSON() ([]byte, error) {
	type wire JSONRPCResponse
	out := wire{JSONRPC: JSONRPCVersion, ID: r.ID}
	if len(out.ID) == 0 {
		out.ID = jsonNull
	}
	if r.Error != nil {
		out.Error = r.Error
	} else {
		out.Result = r.Result
		if out.Result == nil {
			out.Result = struct{}{}
		}
	}
	return json.Marshal(out)
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorData is attached to every error so clients can branch on the kind.
type ErrorData struct {
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

// NewSuccessResponse builds a result envelope.
func NewSuccessResponse(id json.RawMessage, result any) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

// NewErrorResponse builds an error envelope whose code follows the error's
// kind.
func NewErrorResponse(id json.RawMessage, err error) JSONRPCResponse {
	kind := rpcerr.KindOf(err)
	message := err.Error()
	var rpcErr *rpcerr.Error
	if errors.As(err, &rpcErr) {
		message = rpcErr.Message
		if rpcErr.Err != nil {
			message += ": " + rpcErr.Err.Error()
		}
	}
	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &RPCError{
			Code:    kind.Code(),
			Message: message,
			Data:    ErrorData{Kind: kind.String(), Retryable: kind.Retryable()},
		},
	}
}

// MCP Protocol types

// InitializeParams contains parameters for initialization
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	ClientInfo      *sdkmcp.Implementation `json:"clientInfo,omitempty"`
}

// InitializeResult is the result of initialization
type InitializeResult = sdkmcp.InitializeResult

// ListToolsResult is the result of listing tools. NextCursor is always empty
// since the whole registry fits one page.
type ListToolsResult struct {
	Tools      []toolsets.Tool `json:"tools"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// CallToolParams contains parameters for calling a tool
type CallToolParams struct {
	Name      string             `json:"name"`
	Arguments toolsets.Arguments `json:"arguments,omitempty"`
}

// CallToolResult is the result of calling a tool
type CallToolResult = toolsets.ToolResult

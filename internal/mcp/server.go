package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/rpcerr"
	"github.com/harness/mcp-server/internal/toolsets"
)

// Default server identity
const (
	DefaultServerName    = "harness-mcp-server"
	DefaultServerVersion = "dev"
)

// Server routes MCP requests to the tool registry. It keeps no state between
// requests.
type Server struct {
	registry         *toolsets.Registry
	resolver         auth.Resolver
	defaultOrgID     string
	defaultProjectID string
	info             *sdkmcp.Implementation
	now              func() time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithDefaultScope sets the org and project used when a credential does not
// name them.
func WithDefaultScope(orgID, projectID string) ServerOption {
	return func(s *Server) {
		s.defaultOrgID = orgID
		s.defaultProjectID = projectID
	}
}

// WithServerInfo sets the identity reported by initialize.
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		s.info = &sdkmcp.Implementation{Name: name, Version: version}
	}
}

// WithClock replaces time.Now for session expiry checks.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates a new MCP server
func NewServer(registry *toolsets.Registry, resolver auth.Resolver, opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		resolver: resolver,
		info:     &sdkmcp.Implementation{Name: DefaultServerName, Version: DefaultServerVersion},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleRequest processes an MCP JSON-RPC request. It always returns a
// well-formed response, including when a handler panics.
func (s *Server) HandleRequest(ctx context.Context, req JSONRPCRequest) (resp JSONRPCResponse) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("Panic while handling %s: %v", req.Method, p)
			resp = NewErrorResponse(req.ID, rpcerr.New(rpcerr.InternalError, "internal error"))
		}
	}()

	if req.JSONRPC != JSONRPCVersion {
		return NewErrorResponse(req.ID, rpcerr.New(rpcerr.InvalidRequest, "invalid JSON-RPC version"))
	}

	logger.Debugf("Handling MCP request %s", req.Method)

	switch {
	case req.Method == MethodInitialize:
		return s.handleInitialize(req)
	case req.Method == MethodToolsList:
		return s.handleListTools(req)
	case req.Method == MethodToolsCall:
		return s.handleCallTool(ctx, req)
	case req.Method == MethodPing:
		return NewSuccessResponse(req.ID, struct{}{})
	case strings.HasPrefix(req.Method, notificationPrefix):
		return NewSuccessResponse(req.ID, struct{}{})
	default:
		return NewErrorResponse(req.ID, rpcerr.New(rpcerr.MethodNotFound, "method not found: %s", req.Method))
	}
}

// handleInitialize handles the initialize request
func (s *Server) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	var params InitializeParams
	if req.HasParams() {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return NewErrorResponse(req.ID, rpcerr.Wrap(rpcerr.InvalidParams, err, "invalid initialize parameters"))
		}
	}
	if params.ClientInfo != nil {
		logger.Infof("MCP client connected: %s v%s", params.ClientInfo.Name, params.ClientInfo.Version)
	}

	return NewSuccessResponse(req.ID, &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: &sdkmcp.ServerCapabilities{
			Tools: &sdkmcp.ToolCapabilities{ListChanged: false},
		},
		ServerInfo: s.info,
	})
}

// handleListTools handles the tools/list request
func (s *Server) handleListTools(req JSONRPCRequest) JSONRPCResponse {
	tools := s.registry.List()
	if tools == nil {
		tools = []toolsets.Tool{}
	}
	return NewSuccessResponse(req.ID, ListToolsResult{Tools: tools})
}

// handleCallTool handles the tools/call request. Routing, argument and
// credential failures are protocol errors; everything that goes wrong inside
// the tool is reported in the result.
func (s *Server) handleCallTool(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	if !req.HasParams() {
		return NewErrorResponse(req.ID, rpcerr.New(rpcerr.InvalidParams, "tools/call requires params"))
	}
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, rpcerr.Wrap(rpcerr.InvalidParams, err, "invalid tools/call parameters"))
	}
	if params.Name == "" {
		return NewErrorResponse(req.ID, rpcerr.New(rpcerr.InvalidParams, "tool name is required"))
	}

	session, err := s.session(ctx)
	if err != nil {
		logger.Warnf("Rejected call to tool %s: %v", params.Name, err)
		return NewErrorResponse(req.ID, err)
	}
	scope, err := session.Scope(s.defaultOrgID, s.defaultProjectID)
	if err != nil {
		return NewErrorResponse(req.ID, rpcerr.Wrap(rpcerr.InvalidCredential, err, "credential does not carry a usable scope"))
	}

	result, err := s.registry.Invoke(auth.WithSession(ctx, session), scope, toolsets.ToolInvocation{
		Name:      params.Name,
		Arguments: params.Arguments,
	})
	if err != nil {
		return NewErrorResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, result)
}

// session resolves the credential the transport attached to ctx.
func (s *Server) session(ctx context.Context) (*auth.Session, error) {
	credential, ok := auth.CredentialFromContext(ctx)
	if !ok {
		return nil, rpcerr.New(rpcerr.InvalidCredential, "no credential presented")
	}
	session, err := s.resolver.Resolve(credential)
	if err != nil {
		switch rpcerr.KindOf(err) {
		case rpcerr.InvalidCredential, rpcerr.Expired:
			return nil, err
		default:
			return nil, rpcerr.Wrap(rpcerr.InvalidCredential, err, "credential could not be resolved")
		}
	}
	if session.Expired(s.now()) {
		return nil, rpcerr.New(rpcerr.Expired, "credential expired at %s", session.ExpiresAt.Format(time.RFC3339))
	}
	return session, nil
}

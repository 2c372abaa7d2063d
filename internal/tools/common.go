// Package tools defines the Harness platform toolsets exposed by the server.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/client"
	"github.com/harness/mcp-server/internal/rpcerr"
	"github.com/harness/mcp-server/internal/toolsets"
)

// Scope override arguments accepted by every tool
const (
	argOrgID     = "org_id"
	argProjectID = "project_id"
)

// Page sizes
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DefaultToolsets returns every toolset the server knows, in listing order.
// baseURL is the platform UI/API root used to build links.
func DefaultToolsets(caller client.Caller, baseURL string) []*toolsets.Toolset {
	return []*toolsets.Toolset{
		PipelinesToolset(caller, baseURL),
		ConnectorsToolset(caller),
		ServicesToolset(caller),
		EnvironmentsToolset(caller),
		DashboardsToolset(caller),
	}
}

// newTool binds a typed handler to a tool definition. The input schema is
// inferred from P's json and jsonschema tags, then extended with the scope
// override arguments.
func newTool[P any](
	name, description string,
	handle func(ctx context.Context, scope auth.Scope, params *P) (*toolsets.ToolResult, error),
) toolsets.ServerTool {
	schema, err := jsonschema.For[P](nil)
	if err != nil {
		panic(fmt.Sprintf("tools: cannot infer input schema for %s: %v", name, err))
	}
	if schema.Properties == nil {
		schema.Properties = make(map[string]*jsonschema.Schema)
	}
	schema.Properties[argOrgID] = toolsets.StringProperty("Organization identifier; overrides the default org")
	schema.Properties[argProjectID] = toolsets.StringProperty("Project identifier; overrides the default project")

	return toolsets.NewServerTool(
		toolsets.Tool{Name: name, Description: description, InputSchema: schema},
		toolsets.HandlerFunc(func(ctx context.Context, scope auth.Scope, args toolsets.Arguments) (*toolsets.ToolResult, error) {
			scope, err := scopeFromArgs(scope, args)
			if err != nil {
				return nil, err
			}
			params := new(P)
			if err := decodeArgs(args, params); err != nil {
				return nil, err
			}
			return handle(ctx, scope, params)
		}),
	)
}

// scopeFromArgs applies the org_id/project_id overrides to the session scope.
func scopeFromArgs(scope auth.Scope, args toolsets.Arguments) (auth.Scope, error) {
	orgID, err := toolsets.OptionalString(args, argOrgID)
	if err != nil {
		return auth.Scope{}, err
	}
	projectID, err := toolsets.OptionalString(args, argProjectID)
	if err != nil {
		return auth.Scope{}, err
	}
	overridden, err := scope.WithOverrides(orgID, projectID)
	if err != nil {
		return auth.Scope{}, rpcerr.Wrap(rpcerr.InvalidArguments, err, "invalid scope arguments")
	}
	return overridden, nil
}

func decodeArgs(args toolsets.Arguments, params any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return rpcerr.Wrap(rpcerr.InvalidArguments, err, "cannot encode arguments")
	}
	if err := json.Unmarshal(data, params); err != nil {
		return rpcerr.Wrap(rpcerr.InvalidArguments, err, "cannot decode arguments")
	}
	return nil
}

// requireProject fails when neither the session defaults nor the arguments
// name a project.
func requireProject(scope auth.Scope) error {
	if scope.OrgID == "" || scope.ProjectID == "" {
		return rpcerr.New(rpcerr.InvalidArguments,
			"org_id and project_id are required when no default project is configured")
	}
	return nil
}

// pageQuery converts page arguments into the platform's page/size query.
func pageQuery(page, size int) (url.Values, error) {
	if page < 0 {
		return nil, rpcerr.New(rpcerr.InvalidArguments, "page must not be negative")
	}
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return url.Values{
		"page": []string{strconv.Itoa(page)},
		"size": []string{strconv.Itoa(size)},
	}, nil
}

// envelope is the platform's standard response wrapper.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// fetchData performs req and returns the envelope's data as JSON text.
func fetchData(ctx context.Context, caller client.Caller, req *client.Request) (*toolsets.ToolResult, error) {
	var resp envelope
	if err := caller.Do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return rawResult(resp.Data)
}

// fetchRaw performs req and returns the whole response body as JSON text.
func fetchRaw(ctx context.Context, caller client.Caller, req *client.Request) (*toolsets.ToolResult, error) {
	var resp json.RawMessage
	if err := caller.Do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return rawResult(resp)
}

func rawResult(data json.RawMessage) (*toolsets.ToolResult, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return toolsets.TextResult("{}"), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, rpcerr.Wrap(rpcerr.InternalError, err, "backend returned malformed JSON")
	}
	return toolsets.TextResult(out.String()), nil
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

// nonEmpty rejects a required identifier that was passed as "".
func nonEmpty(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return rpcerr.New(rpcerr.InvalidArguments, "%s must not be empty", name)
	}
	return nil
}

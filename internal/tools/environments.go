package tools

import (
	"context"
	"net/http"
	"net/url"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/client"
	"github.com/harness/mcp-server/internal/rpcerr"
	"github.com/harness/mcp-server/internal/toolsets"
)

// Directions accepted by move_environment_configs
const (
	MoveInlineToRemote = "INLINE_TO_REMOTE"
	MoveRemoteToInline = "REMOTE_TO_INLINE"
)

// ListEnvironmentsParams defines parameters for the list_environments tool
type ListEnvironmentsParams struct {
	SearchTerm string `json:"search_term,omitempty" jsonschema:"Optional text to filter environments by name or identifier"`
	Page       int    `json:"page,omitempty" jsonschema:"Page number, starting at 0"`
	Size       int    `json:"size,omitempty" jsonschema:"Results per page (default: 20, max: 100)"`
}

// GetEnvironmentParams defines parameters for the get_environment tool
type GetEnvironmentParams struct {
	EnvironmentID string `json:"environment_id" jsonschema:"Environment identifier"`
}

// MoveEnvironmentConfigsParams defines parameters for the move_environment_configs tool
type MoveEnvironmentConfigsParams struct {
	EnvironmentID  string `json:"environment_id" jsonschema:"Environment identifier"`
	MoveConfigType string `json:"move_config_type" jsonschema:"INLINE_TO_REMOTE or REMOTE_TO_INLINE"`
	ConnectorRef   string `json:"connector_ref,omitempty" jsonschema:"Git connector used when moving to remote"`
	RepoName       string `json:"repo_name,omitempty" jsonschema:"Repository that stores the configuration"`
	Branch         string `json:"branch,omitempty" jsonschema:"Branch that stores the configuration"`
	FilePath       string `json:"file_path,omitempty" jsonschema:"Path of the configuration file in the repository"`
	CommitMessage  string `json:"commit_message,omitempty" jsonschema:"Commit message for the move"`
}

type environmentTools struct {
	caller client.Caller
}

// EnvironmentsToolset returns the environments toolset.
func EnvironmentsToolset(caller client.Caller) *toolsets.Toolset {
	e := &environmentTools{caller: caller}
	return toolsets.NewToolset("environments", "Harness deployment environments").
		AddReadTools(
			newTool("list_environments", "List environments in the current scope", e.listEnvironments),
			newTool("get_environment", "Get the definition of an environment", e.getEnvironment),
		).
		AddWriteTools(
			newTool("move_environment_configs", "Move an environment definition between inline and git storage", e.moveConfigs),
		)
}

func (e *environmentTools) listEnvironments(ctx context.Context, scope auth.Scope, params *ListEnvironmentsParams) (*toolsets.ToolResult, error) {
	query, err := pageQuery(params.Page, params.Size)
	if err != nil {
		return nil, err
	}
	if params.SearchTerm != "" {
		query.Set("searchTerm", params.SearchTerm)
	}
	return fetchData(ctx, e.caller, &client.Request{
		Method: http.MethodGet,
		Path:   "/ng/api/environmentsV2",
		Query:  query,
		Scope:  scope,
	})
}

func (e *environmentTools) getEnvironment(ctx context.Context, scope auth.Scope, params *GetEnvironmentParams) (*toolsets.ToolResult, error) {
	if err := nonEmpty("environment_id", params.EnvironmentID); err != nil {
		return nil, err
	}
	return fetchData(ctx, e.caller, &client.Request{
		Method: http.MethodGet,
		Path:   "/ng/api/environmentsV2/" + escape(params.EnvironmentID),
		Scope:  scope,
	})
}

func (e *environmentTools) moveConfigs(ctx context.Context, scope auth.Scope, params *MoveEnvironmentConfigsParams) (*toolsets.ToolResult, error) {
	if err := nonEmpty("environment_id", params.EnvironmentID); err != nil {
		return nil, err
	}
	switch params.MoveConfigType {
	case MoveInlineToRemote:
		if params.ConnectorRef == "" || params.RepoName == "" || params.Branch == "" || params.FilePath == "" {
			return nil, rpcerr.New(rpcerr.InvalidArguments,
				"connector_ref, repo_name, branch and file_path are required for %s", MoveInlineToRemote)
		}
	case MoveRemoteToInline:
	default:
		return nil, rpcerr.New(rpcerr.InvalidArguments,
			"move_config_type must be %s or %s, got %q", MoveInlineToRemote, MoveRemoteToInline, params.MoveConfigType)
	}

	query := url.Values{"moveConfigType": []string{params.MoveConfigType}}
	for key, value := range map[string]string{
		"connectorRef": params.ConnectorRef,
		"repoName":     params.RepoName,
		"branch":       params.Branch,
		"filePath":     params.FilePath,
		"commitMsg":    params.CommitMessage,
	} {
		if value != "" {
			query.Set(key, value)
		}
	}

	return fetchData(ctx, e.caller, &client.Request{
		Method: http.MethodPost,
		Path:   "/ng/api/environmentsV2/move-config/" + escape(params.EnvironmentID),
		Query:  query,
		Scope:  scope,
	})
}

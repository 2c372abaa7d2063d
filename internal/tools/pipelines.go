package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/client"
	"github.com/harness/mcp-server/internal/toolsets"
)

// ListPipelinesParams defines parameters for the list_pipelines tool
type ListPipelinesParams struct {
	SearchTerm string `json:"search_term,omitempty" jsonschema:"Optional text to filter pipelines by name or identifier"`
	Page       int    `json:"page,omitempty" jsonschema:"Page number, starting at 0"`
	Size       int    `json:"size,omitempty" jsonschema:"Results per page (default: 20, max: 100)"`
}

// GetPipelineParams defines parameters for the get_pipeline tool
type GetPipelineParams struct {
	PipelineID string `json:"pipeline_id" jsonschema:"Pipeline identifier"`
}

// ListExecutionsParams defines parameters for the list_executions tool
type ListExecutionsParams struct {
	PipelineID string `json:"pipeline_id,omitempty" jsonschema:"Only list executions of this pipeline"`
	Status     string `json:"status,omitempty" jsonschema:"Only list executions in this status, e.g. Running, Success, Failed"`
	Branch     string `json:"branch,omitempty" jsonschema:"Only list executions triggered from this git branch"`
	Page       int    `json:"page,omitempty" jsonschema:"Page number, starting at 0"`
	Size       int    `json:"size,omitempty" jsonschema:"Results per page (default: 20, max: 100)"`
}

// GetExecutionParams defines parameters for the get_execution tool
type GetExecutionParams struct {
	PlanExecutionID string `json:"plan_execution_id" jsonschema:"Execution identifier"`
}

// FetchExecutionURLParams defines parameters for the fetch_execution_url tool
type FetchExecutionURLParams struct {
	PipelineID      string `json:"pipeline_id" jsonschema:"Pipeline identifier"`
	PlanExecutionID string `json:"plan_execution_id" jsonschema:"Execution identifier"`
}

type pipelineTools struct {
	caller  client.Caller
	baseURL string
}

// PipelinesToolset returns the pipelines toolset.
func PipelinesToolset(caller client.Caller, baseURL string) *toolsets.Toolset {
	p := &pipelineTools{caller: caller, baseURL: strings.TrimRight(baseURL, "/")}
	return toolsets.NewToolset("pipelines", "Harness pipelines and their executions").
		AddReadTools(
			newTool("list_pipelines", "List pipelines in a project", p.listPipelines),
			newTool("get_pipeline", "Get the definition of a pipeline", p.getPipeline),
			newTool("list_executions", "List pipeline executions in a project", p.listExecutions),
			newTool("get_execution", "Get the details of a pipeline execution", p.getExecution),
			newTool("fetch_execution_url", "Build the UI link to a pipeline execution", p.fetchExecutionURL),
		)
}

func (p *pipelineTools) listPipelines(ctx context.Context, scope auth.Scope, params *ListPipelinesParams) (*toolsets.ToolResult, error) {
	if err := requireProject(scope); err != nil {
		return nil, err
	}
	query, err := pageQuery(params.Page, params.Size)
	if err != nil {
		return nil, err
	}
	if params.SearchTerm != "" {
		query.Set("searchTerm", params.SearchTerm)
	}

	// the list endpoint is a POST carrying a filter but does not change state
	return fetchData(ctx, p.caller, &client.Request{
		Method:    http.MethodPost,
		Path:      "/pipeline/api/pipelines/list",
		Query:     query,
		Body:      map[string]string{"filterType": "PipelineSetup"},
		Scope:     scope,
		Retryable: true,
	})
}

func (p *pipelineTools) getPipeline(ctx context.Context, scope auth.Scope, params *GetPipelineParams) (*toolsets.ToolResult, error) {
	if err := requireProject(scope); err != nil {
		return nil, err
	}
	if err := nonEmpty("pipeline_id", params.PipelineID); err != nil {
		return nil, err
	}
	return fetchData(ctx, p.caller, &client.Request{
		Method: http.MethodGet,
		Path:   "/pipeline/api/pipelines/" + escape(params.PipelineID),
		Scope:  scope,
	})
}

func (p *pipelineTools) listExecutions(ctx context.Context, scope auth.Scope, params *ListExecutionsParams) (*toolsets.ToolResult, error) {
	if err := requireProject(scope); err != nil {
		return nil, err
	}
	query, err := pageQuery(params.Page, params.Size)
	if err != nil {
		return nil, err
	}
	if params.PipelineID != "" {
		query.Set("pipelineIdentifier", params.PipelineID)
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}
	if params.Branch != "" {
		query.Set("branch", params.Branch)
	}

	return fetchData(ctx, p.caller, &client.Request{
		Method:    http.MethodPost,
		Path:      "/pipeline/api/pipelines/execution/summary",
		Query:     query,
		Body:      map[string]string{"filterType": "PipelineExecution"},
		Scope:     scope,
		Retryable: true,
	})
}

func (p *pipelineTools) getExecution(ctx context.Context, scope auth.Scope, params *GetExecutionParams) (*toolsets.ToolResult, error) {
	if err := requireProject(scope); err != nil {
		return nil, err
	}
	if err := nonEmpty("plan_execution_id", params.PlanExecutionID); err != nil {
		return nil, err
	}
	return fetchData(ctx, p.caller, &client.Request{
		Method: http.MethodGet,
		Path:   "/pipeline/api/pipelines/execution/v2/" + escape(params.PlanExecutionID),
		Scope:  scope,
	})
}

// fetchExecutionURL needs no backend call; the link follows the UI routing
// scheme.
func (p *pipelineTools) fetchExecutionURL(_ context.Context, scope auth.Scope, params *FetchExecutionURLParams) (*toolsets.ToolResult, error) {
	if err := requireProject(scope); err != nil {
		return nil, err
	}
	if err := nonEmpty("pipeline_id", params.PipelineID); err != nil {
		return nil, err
	}
	if err := nonEmpty("plan_execution_id", params.PlanExecutionID); err != nil {
		return nil, err
	}
	link := fmt.Sprintf("%s/ng/account/%s/all/orgs/%s/projects/%s/pipelines/%s/executions/%s/pipeline",
		p.baseURL,
		escape(scope.AccountID),
		escape(scope.OrgID),
		escape(scope.ProjectID),
		escape(params.PipelineID),
		escape(params.PlanExecutionID),
	)
	return toolsets.TextResult(link), nil
}

package tools

import (
	"context"
	"net/http"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/client"
	"github.com/harness/mcp-server/internal/toolsets"
)

// ListServicesParams defines parameters for the list_services tool
type ListServicesParams struct {
	SearchTerm string `json:"search_term,omitempty" jsonschema:"Optional text to filter services by name or identifier"`
	Page       int    `json:"page,omitempty" jsonschema:"Page number, starting at 0"`
	Size       int    `json:"size,omitempty" jsonschema:"Results per page (default: 20, max: 100)"`
}

// GetServiceParams defines parameters for the get_service tool
type GetServiceParams struct {
	ServiceID string `json:"service_id" jsonschema:"Service identifier"`
}

// CreateServiceParams defines parameters for the create_service tool
type CreateServiceParams struct {
	Identifier  string `json:"identifier" jsonschema:"Identifier of the new service"`
	Name        string `json:"name" jsonschema:"Display name of the new service"`
	Description string `json:"description,omitempty" jsonschema:"Optional description"`
	YAML        string `json:"yaml,omitempty" jsonschema:"Optional service definition in YAML"`
}

type serviceRequest struct {
	Identifier        string `json:"identifier"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	OrgIdentifier     string `json:"orgIdentifier,omitempty"`
	ProjectIdentifier string `json:"projectIdentifier,omitempty"`
	YAML              string `json:"yaml,omitempty"`
}

type serviceTools struct {
	caller client.Caller
}

// ServicesToolset returns the services toolset.
func ServicesToolset(caller client.Caller) *toolsets.Toolset {
	s := &serviceTools{caller: caller}
	return toolsets.NewToolset("services", "Harness services").
		AddReadTools(
			newTool("list_services", "List services in the current scope", s.listServices),
			newTool("get_service", "Get the definition of a service", s.getService),
		).
		AddWriteTools(
			newTool("create_service", "Create a service in the current scope", s.createService),
		)
}

func (s *serviceTools) listServices(ctx context.Context, scope auth.Scope, params *ListServicesParams) (*toolsets.ToolResult, error) {
	query, err := pageQuery(params.Page, params.Size)
	if err != nil {
		return nil, err
	}
	if params.SearchTerm != "" {
		query.Set("searchTerm", params.SearchTerm)
	}
	return fetchData(ctx, s.caller, &client.Request{
		Method: http.MethodGet,
		Path:   "/ng/api/servicesV2",
		Query:  query,
		Scope:  scope,
	})
}

func (s *serviceTools) getService(ctx context.Context, scope auth.Scope, params *GetServiceParams) (*toolsets.ToolResult, error) {
	if err := nonEmpty("service_id", params.ServiceID); err != nil {
		return nil, err
	}
	return fetchData(ctx, s.caller, &client.Request{
		Method: http.MethodGet,
		Path:   "/ng/api/servicesV2/" + escape(params.ServiceID),
		Scope:  scope,
	})
}

func (s *serviceTools) createService(ctx context.Context, scope auth.Scope, params *CreateServiceParams) (*toolsets.ToolResult, error) {
	if err := nonEmpty("identifier", params.Identifier); err != nil {
		return nil, err
	}
	if err := nonEmpty("name", params.Name); err != nil {
		return nil, err
	}
	return fetchData(ctx, s.caller, &client.Request{
		Method: http.MethodPost,
		Path:   "/ng/api/servicesV2",
		Body: serviceRequest{
			Identifier:        params.Identifier,
			Name:              params.Name,
			Description:       params.Description,
			OrgIdentifier:     scope.OrgID,
			ProjectIdentifier: scope.ProjectID,
			YAML:              params.YAML,
		},
		Scope: scope,
	})
}

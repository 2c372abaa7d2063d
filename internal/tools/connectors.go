package tools

import (
	"context"
	"net/http"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/client"
	"github.com/harness/mcp-server/internal/toolsets"
)

// ListConnectorCatalogueParams defines parameters for the list_connector_catalogue tool
type ListConnectorCatalogueParams struct{}

// GetConnectorDetailsParams defines parameters for the get_connector_details tool
type GetConnectorDetailsParams struct {
	ConnectorID string `json:"connector_id" jsonschema:"Connector identifier"`
}

type connectorTools struct {
	caller client.Caller
}

// ConnectorsToolset returns the connectors toolset.
func ConnectorsToolset(caller client.Caller) *toolsets.Toolset {
	c := &connectorTools{caller: caller}
	return toolsets.NewToolset("connectors", "Harness connectors to third-party systems").
		AddReadTools(
			newTool("list_connector_catalogue", "List the connector types available in the account", c.listCatalogue),
			newTool("get_connector_details", "Get the configuration and status of a connector", c.getConnector),
		)
}

// the catalogue is account wide
func (c *connectorTools) listCatalogue(ctx context.Context, scope auth.Scope, _ *ListConnectorCatalogueParams) (*toolsets.ToolResult, error) {
	return fetchData(ctx, c.caller, &client.Request{
		Method: http.MethodGet,
		Path:   "/ng/api/connectors/catalogue",
		Scope:  auth.Scope{AccountID: scope.AccountID},
	})
}

func (c *connectorTools) getConnector(ctx context.Context, scope auth.Scope, params *GetConnectorDetailsParams) (*toolsets.ToolResult, error) {
	if err := nonEmpty("connector_id", params.ConnectorID); err != nil {
		return nil, err
	}
	return fetchData(ctx, c.caller, &client.Request{
		Method: http.MethodGet,
		Path:   "/ng/api/connectors/" + escape(params.ConnectorID),
		Scope:  scope,
	})
}

package tools

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/client"
	"github.com/harness/mcp-server/internal/rpcerr"
	"github.com/harness/mcp-server/internal/toolsets"
)

const defaultReportingTimeframe = 30

// ListDashboardsParams defines parameters for the list_dashboards tool
type ListDashboardsParams struct {
	SearchTerm string `json:"search_term,omitempty" jsonschema:"Optional text to filter dashboards by title"`
	Page       int    `json:"page,omitempty" jsonschema:"Page number, starting at 0"`
	Size       int    `json:"size,omitempty" jsonschema:"Results per page (default: 20, max: 100)"`
}

// GetDashboardDataParams defines parameters for the get_dashboard_data tool
type GetDashboardDataParams struct {
	DashboardID        string `json:"dashboard_id" jsonschema:"Dashboard identifier"`
	ReportingTimeframe int    `json:"reporting_timeframe,omitempty" jsonschema:"Reporting window in days (default: 30)"`
}

type dashboardTools struct {
	caller client.Caller
}

// DashboardsToolset returns the dashboards toolset. Dashboards live at
// account level, so org and project never reach the backend.
func DashboardsToolset(caller client.Caller) *toolsets.Toolset {
	d := &dashboardTools{caller: caller}
	return toolsets.NewToolset("dashboards", "Harness analytics dashboards").
		AddReadTools(
			newTool("list_dashboards", "List the dashboards of the account", d.listDashboards),
			newTool("get_dashboard_data", "Get the data behind a dashboard", d.getDashboardData),
		)
}

func (d *dashboardTools) listDashboards(ctx context.Context, scope auth.Scope, params *ListDashboardsParams) (*toolsets.ToolResult, error) {
	query, err := pageQuery(params.Page, params.Size)
	if err != nil {
		return nil, err
	}
	// dashboard search pages from 1 and names the size pageSize
	query = url.Values{
		"page":     []string{strconv.Itoa(params.Page + 1)},
		"pageSize": query["size"],
	}
	if params.SearchTerm != "" {
		query.Set("searchTerm", params.SearchTerm)
	}
	return fetchRaw(ctx, d.caller, &client.Request{
		Method: http.MethodGet,
		Path:   "/dashboard/v1/search",
		Query:  query,
		Scope:  auth.Scope{AccountID: scope.AccountID},
	})
}

func (d *dashboardTools) getDashboardData(ctx context.Context, scope auth.Scope, params *GetDashboardDataParams) (*toolsets.ToolResult, error) {
	if err := nonEmpty("dashboard_id", params.DashboardID); err != nil {
		return nil, err
	}
	timeframe := params.ReportingTimeframe
	switch {
	case timeframe < 0:
		return nil, rpcerr.New(rpcerr.InvalidArguments, "reporting_timeframe must not be negative")
	case timeframe == 0:
		timeframe = defaultReportingTimeframe
	}
	return fetchRaw(ctx, d.caller, &client.Request{
		Method: http.MethodGet,
		Path:   "/dashboard/download/dashboards/" + escape(params.DashboardID) + "/json",
		Query: url.Values{
			"filters":             []string{"Reporting Timeframe=" + strconv.Itoa(timeframe)},
			"expectedContentType": []string{"json"},
		},
		Scope: auth.Scope{AccountID: scope.AccountID},
	})
}

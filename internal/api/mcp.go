package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"thinkstudio/internal/catalog"
	"thinkstudio/internal/ledger"
	"thinkstudio/internal/search"
	"thinkstudio/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Catalog   CatalogReader
	Search    Searcher
	Sessions  *session.Manager
	TopShifts int
}

// CatalogReader abstracts the record list for the MCP resource.
type CatalogReader interface {
	All() []catalog.Record
}

// NewMCPServer creates an MCP server with all studio tools and
// resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"thinkstudio",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("thinkstudio — local workspace for exploring public-sector data strategies, maturity diagnostics, and delivery actions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_catalog",
			mcp.WithDescription("Search the data strategy catalog by free-text query and optional facet filters."),
			mcp.WithString("query", mcp.Description("Free-text search query")),
			mcp.WithString("country", mcp.Description("Filter by country")),
			mcp.WithString("org_type", mcp.Description("Filter by organisation type")),
			mcp.WithString("archetype", mcp.Description("Require a strategy archetype tag")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpSearchCatalog(deps),
	)

	s.AddTool(
		mcp.NewTool("maturity_summary",
			mcp.WithDescription("Return the per-theme data maturity summary for a session."),
			mcp.WithString("session", mcp.Description("Session id (default session if omitted)")),
		),
		mcpMaturitySummary(deps),
	)

	s.AddTool(
		mcp.NewTool("priority_shifts",
			mcp.WithDescription("Return the largest gaps between current and desired tension positions for a session."),
			mcp.WithString("session", mcp.Description("Session id (default session if omitted)")),
			mcp.WithNumber("top", mcp.Description("Number of shifts to return")),
		),
		mcpPriorityShifts(deps),
	)

	s.AddTool(
		mcp.NewTool("log_action",
			mcp.WithDescription("Add an action item to a session's ledger."),
			mcp.WithString("title", mcp.Description("Action title"), mcp.Required()),
			mcp.WithString("owner", mcp.Description("Who owns the action")),
			mcp.WithString("theme", mcp.Description("Diagnostic theme the action supports")),
			mcp.WithString("target_date", mcp.Description("Target date, YYYY-MM-DD")),
			mcp.WithString("session", mcp.Description("Session id (default session if omitted)")),
		),
		mcpLogAction(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://records",
			"Strategy Catalog",
			mcp.WithResourceDescription("All catalog records as JSON, in default order"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCatalog(deps),
	)

	return s
}

func mcpResourceCatalog(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Catalog.All())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "catalog://records",
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpSearchCatalog(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")

		filters := search.Filters{}
		if c := req.GetString("country", ""); c != "" {
			filters.Countries = []string{c}
		}
		if t := req.GetString("org_type", ""); t != "" {
			filters.OrgTypes = []string{t}
		}
		if a := req.GetString("archetype", ""); a != "" {
			filters.Archetypes = []string{a}
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		records := deps.Search.Search(ctx, filters, query)
		if len(records) > limit {
			records = records[:limit]
		}

		b, err := json.Marshal(records)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpMaturitySummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, err := deps.Sessions.Open(req.GetString("session", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to open session: %v", err)), nil
		}

		summaries, err := sess.Scorer.Summaries()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to summarise: %v", err)), nil
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal summaries: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpPriorityShifts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, err := deps.Sessions.Open(req.GetString("session", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to open session: %v", err)), nil
		}

		top := req.GetInt("top", deps.TopShifts)
		shifts, err := sess.Tensions.PriorityShifts(top)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to compute shifts: %v", err)), nil
		}

		b, err := json.Marshal(shifts)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal shifts: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpLogAction(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}

		sess, err := deps.Sessions.Open(req.GetString("session", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to open session: %v", err)), nil
		}

		id, err := sess.Actions.Create(ledger.Item{
			Title:      title,
			Owner:      req.GetString("owner", ""),
			Theme:      req.GetString("theme", ""),
			TargetDate: req.GetString("target_date", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to log action: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Logged action %s", id)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

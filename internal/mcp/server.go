package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/gearbook/internal/ingest"
)

// Server wraps the MCP server with its pipeline dependency.
type Server struct {
	server  *mcp.Server
	service *ingest.Service
}

// NewServer creates a configured MCP server with all tools registered.
func NewServer(service *ingest.Service) *Server {
	impl := &mcp.Implementation{
		Name:    "gearbook-manual-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_manuals",
		Description: "Search equipment manuals with hybrid retrieval. Pass exact terms (panel labels, jack names) as keywords to prioritize passages containing them; optional filters narrow by instrument type, manufacturer or section type.",
	}, makeSearchHandler(service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_modules",
		Description: "Find manuals by module capability (e.g. which devices have a voltage controlled filter). Searches detected capability summaries rather than raw manual text.",
	}, makeFindModulesHandler(service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_manuals",
		Description: "List all stored manuals with their metadata and chunk counts.",
	}, makeListHandler(service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_manual",
		Description: "Delete a stored manual and its capability record by filename.",
	}, makeDeleteHandler(service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_library_stats",
		Description: "Get library totals and the distinct manufacturers, instrument types and section types available for filtering.",
	}, makeStatsHandler(service))

	return &Server{server: server, service: service}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

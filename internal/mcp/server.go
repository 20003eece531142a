package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/voltline/j1939-console/internal/metrics"
	"github.com/voltline/j1939-console/internal/reference"
	"github.com/voltline/j1939-console/internal/vehicles"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes vehicle and reference data tools.
type Server struct {
	vehicles  *vehicles.Store
	reference *reference.Store
	metrics   *metrics.Metrics
	mcp       *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies. Either
// store may be nil; its tools then report that no data is available.
func NewServer(vs *vehicles.Store, rs *reference.Store, m *metrics.Metrics) *Server {
	s := &Server{
		vehicles:  vs,
		reference: rs,
		metrics:   m,
	}

	s.mcp = server.NewMCPServer(
		"j1939c",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(normalizeRecordTool, s.handleNormalizeRecord)
	s.mcp.AddTool(listVehiclesTool, s.handleListVehicles)
	s.mcp.AddTool(getVehicleTool, s.handleGetVehicle)
	s.mcp.AddTool(lookupPGNTool, s.handleLookupPGN)
	s.mcp.AddTool(searchSPNsTool, s.handleSearchSPNs)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}

// Package server provides the MCP server wrapper with lifecycle management.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/splunkgo/internal/metrics"
)

// Name is the implementation name reported to MCP clients.
const Name = "splunk-mcp"

// Server wraps the MCP server with dependencies and lifecycle management.
type Server struct {
	mcp     *mcp.Server
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates a new MCP server with the given version and logger.
// Request timings are recorded in collector, which may be nil.
func New(version string, logger *slog.Logger, collector *metrics.Collector) *Server {
	impl := &mcp.Implementation{
		Name:    Name,
		Version: version,
	}

	return &Server{
		mcp:     mcp.NewServer(impl, nil),
		logger:  logger,
		metrics: collector,
	}
}

// Run starts the server on stdio transport and blocks until disconnect or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server for tool registration.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Setup adds middleware to the server (logging, timing).
func (s *Server) Setup() {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger, s.metrics))
}

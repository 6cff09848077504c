package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Test tool - responds with pong or echoes input",
	}, NewPingHandler(deps))

	// Search tool - submit, wait, fetch
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Run a Splunk search, wait for it to finish, and return its result rows as JSON",
	}, NewSearchHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "job_status",
		Description: "Show dispatch state, progress and counts of a search job",
	}, NewJobStatusHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_job",
		Description: "Cancel a running search job, optionally deleting its artifacts",
	}, NewCancelJobHandler(deps))

	// KV store tools - read only
	mcp.AddTool(server, &mcp.Tool{
		Name:        "kv_collections",
		Description: "List KV store collections",
	}, NewKVCollectionsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "kv_get",
		Description: "Retrieve one KV store record by _key",
	}, NewKVGetHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "kv_query",
		Description: "Query KV store records with a filter, sort, paging and field projection",
	}, NewKVQueryHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Show operation timings collected since startup",
	}, NewStatsHandler(deps))
}

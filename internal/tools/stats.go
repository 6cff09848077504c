package tools

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatsInput defines the (empty) input schema for the stats tool.
type StatsInput struct{}

// NewStatsHandler creates the stats tool handler.
// Returns per-operation timings collected since startup.
func NewStatsHandler(deps *Dependencies) mcp.ToolHandlerFor[StatsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (
		*mcp.CallToolResult, any, error,
	) {
		if deps.Metrics == nil {
			return ErrorResult("Metrics are disabled", ""), nil, nil
		}
		jsonBytes, _ := json.MarshalIndent(deps.Metrics.Snapshot(), "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}

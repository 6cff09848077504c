package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PingInput defines the input schema for the ping tool.
type PingInput struct {
	Echo  string `json:"echo,omitempty" jsonschema:"Text to echo back"`
	Check bool   `json:"check,omitempty" jsonschema:"Also round-trip to the KV backend"`
}

// NewPingHandler responds with "pong" or the echo text. With check set it
// lists collections first so a dead backend shows up as a tool error.
func NewPingHandler(deps *Dependencies) mcp.ToolHandlerFor[PingInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PingInput) (*mcp.CallToolResult, any, error) {
		deps.Logger.Debug("ping tool called", "echo", input.Echo, "check", input.Check)

		reply := "pong"
		if input.Echo != "" {
			reply = input.Echo
		}
		if !input.Check {
			return TextResult(reply), nil, nil
		}

		names, err := deps.Registry.ListCollections(ctx)
		if err != nil {
			return failure("Backend unreachable", err), nil, nil
		}
		return TextResult(fmt.Sprintf("%s (backend reachable, %d collections)", reply, len(names))), nil, nil
	}
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// JobStatusInput defines the input schema for the job_status tool.
type JobStatusInput struct {
	SID string `json:"sid" jsonschema:"required,Search job ID"`
}

// NewJobStatusHandler creates the job_status tool handler.
func NewJobStatusHandler(deps *Dependencies) mcp.ToolHandlerFor[JobStatusInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input JobStatusInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.SID == "" {
			return ErrorResult("sid cannot be empty", "Use the sid returned by search"), nil, nil
		}

		content, err := deps.Splunk.Job(input.SID).Refresh(ctx)
		if err != nil {
			return failure("Failed to get job status", err), nil, nil
		}

		jsonBytes, _ := json.MarshalIndent(newStatusOutput(input.SID, content), "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}

// CancelJobInput defines the input schema for the cancel_job tool.
type CancelJobInput struct {
	SID    string `json:"sid" jsonschema:"required,Search job ID"`
	Delete bool   `json:"delete,omitempty" jsonschema:"Also delete the job's artifacts"`
}

// NewCancelJobHandler creates the cancel_job tool handler.
func NewCancelJobHandler(deps *Dependencies) mcp.ToolHandlerFor[CancelJobInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CancelJobInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.SID == "" {
			return ErrorResult("sid cannot be empty", "Use the sid returned by search"), nil, nil
		}

		handle := deps.Splunk.Job(input.SID)
		if input.Delete {
			if err := handle.Delete(ctx); err != nil {
				return failure("Failed to delete job", err), nil, nil
			}
			deps.Logger.Info("job deleted", "sid", input.SID)
			return TextResult(fmt.Sprintf("Deleted %s", input.SID)), nil, nil
		}

		if err := handle.Cancel(ctx); err != nil {
			return failure("Failed to cancel job", err), nil, nil
		}
		deps.Logger.Info("job cancelled", "sid", input.SID)
		return TextResult(fmt.Sprintf("Cancelled %s", input.SID)), nil, nil
	}
}

package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/splunkgo/internal/models"
)

// ErrorResult creates a tool error result with optional recovery hint.
// If hint is non-empty, formats as "{msg}. {hint}".
// Returns IsError=true so LLM can see the error and self-correct.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// FormatResults joins items with newlines for list output.
func FormatResults(items []string) string {
	return strings.Join(items, "\n")
}

// failure maps an operation error to a tool error with a recovery hint.
func failure(msg string, err error) *mcp.CallToolResult {
	text := msg + ": " + err.Error()

	var searchErr *models.SearchError
	var remoteErr *models.RemoteError
	switch {
	case errors.As(err, &searchErr):
		return ErrorResult(text, "Fix the search string and retry")
	case errors.Is(err, models.ErrInvalidName):
		return ErrorResult(text, "Use kv_collections to list valid collection names")
	case errors.Is(err, models.ErrNoOperationRunning):
		return ErrorResult(text, "Submit a search first")
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResult(text, "Increase timeout_seconds or poll with job_status")
	case errors.As(err, &remoteErr):
		return ErrorResult(text, "splunkd rejected the request")
	default:
		return ErrorResult(text, "splunkd may be unavailable")
	}
}

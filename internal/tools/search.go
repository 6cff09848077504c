package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/time/rate"

	"github.com/raphaelgruber/splunkgo/internal/models"
	"github.com/raphaelgruber/splunkgo/internal/search"
)

const (
	defaultSearchLimit   = 100
	maxSearchLimit       = 10000
	defaultSearchTimeout = 60
	maxSearchTimeout     = 600
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query          string `json:"query" jsonschema:"required,SPL search string; a leading 'search' is added when missing"`
	Earliest       string `json:"earliest,omitempty" jsonschema:"Earliest time bound, e.g. -24h"`
	Latest         string `json:"latest,omitempty" jsonschema:"Latest time bound, e.g. now"`
	Limit          int    `json:"limit,omitempty" jsonschema:"Max rows 1-10000, default 100"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"Max seconds to wait for the job, default 60"`
}

// SearchOutput is the JSON body returned by the search tool.
type SearchOutput struct {
	SID      string            `json:"sid"`
	Count    int               `json:"count"`
	Results  []map[string]any  `json:"results"`
	Messages map[string]string `json:"messages,omitempty"`
}

// NewSearchHandler creates the search tool handler.
// Submits a job, waits for it within the timeout, and returns its rows.
func NewSearchHandler(deps *Dependencies) mcp.ToolHandlerFor[SearchInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Query == "" {
			return ErrorResult("Query cannot be empty", "Provide an SPL search string"), nil, nil
		}

		limit := input.Limit
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		if limit > maxSearchLimit {
			return ErrorResult("Limit must be 1-10000", "Reduce limit value"), nil, nil
		}
		timeout := input.TimeoutSeconds
		if timeout <= 0 {
			timeout = defaultSearchTimeout
		}
		if timeout > maxSearchTimeout {
			return ErrorResult("timeout_seconds must be at most 600", "Poll long searches with job_status"), nil, nil
		}

		opts := search.Options{}
		if input.Earliest != "" {
			opts["earliest_time"] = input.Earliest
		}
		if input.Latest != "" {
			opts["latest_time"] = input.Latest
		}

		sess := deps.newSession()
		sid, err := sess.RecordAndSubmit(ctx, input.Query, opts)
		if err != nil {
			deps.Logger.Error("search submit failed", "error", err)
			return failure("Search submit failed", err), nil, nil
		}

		waitCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
		limiter := rate.NewLimiter(rate.Every(deps.PollInterval), 1)
		if err := search.Wait(waitCtx, sess.Poll, limiter); err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return ErrorResult(
					fmt.Sprintf("Search %s did not finish within %ds", sid, timeout),
					fmt.Sprintf("Check it later with job_status sid=%s", sid),
				), nil, nil
			}
			return failure("Search failed", err), nil, nil
		}

		if _, err := sess.Fetch(ctx, search.Options{"count": strconv.Itoa(limit)}); err != nil {
			deps.Logger.Warn("search fetch failed", "sid", sid, "error", err)
			return failure("Search failed", err), nil, nil
		}

		job := sess.Current()
		rows := job.Rows()
		if rows == nil {
			rows = []map[string]any{}
		}
		out := SearchOutput{
			SID:      sid,
			Count:    len(rows),
			Results:  rows,
			Messages: job.Messages(),
		}
		jsonBytes, _ := json.MarshalIndent(out, "", "  ")

		deps.Logger.Info("search completed", "query", shorten(input.Query, 30), "sid", sid, "results", len(rows))

		return TextResult(string(jsonBytes)), nil, nil
	}
}

// statusOutput is the JSON body returned by the job_status tool.
type statusOutput struct {
	SID           string  `json:"sid"`
	DispatchState string  `json:"dispatch_state"`
	Done          bool    `json:"done"`
	Failed        bool    `json:"failed"`
	DoneProgress  float64 `json:"done_progress"`
	ResultCount   int     `json:"result_count"`
	EventCount    int     `json:"event_count"`
}

func newStatusOutput(sid string, c models.JobContent) statusOutput {
	return statusOutput{
		SID:           sid,
		DispatchState: c.DispatchState(),
		Done:          c.IsDone(),
		Failed:        c.IsFailed(),
		DoneProgress:  c.DoneProgress(),
		ResultCount:   c.ResultCount(),
		EventCount:    c.EventCount(),
	}
}

// shorten cuts s to n runes for log lines, adding "..." when cut.
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

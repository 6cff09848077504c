package tools

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/splunkgo/internal/kvstore"
)

const maxKVLimit = 1000

// KVCollectionsInput defines the (empty) input schema for kv_collections.
type KVCollectionsInput struct{}

// NewKVCollectionsHandler creates the kv_collections tool handler.
func NewKVCollectionsHandler(deps *Dependencies) mcp.ToolHandlerFor[KVCollectionsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input KVCollectionsInput) (
		*mcp.CallToolResult, any, error,
	) {
		names, err := deps.newStore().Collections(ctx)
		if err != nil {
			return failure("Failed to list collections", err), nil, nil
		}
		if len(names) == 0 {
			return TextResult("No collections found"), nil, nil
		}
		return TextResult(FormatResults(names)), nil, nil
	}
}

// KVGetInput defines the input schema for the kv_get tool.
type KVGetInput struct {
	Collection string `json:"collection" jsonschema:"required,Collection name"`
	Key        string `json:"key" jsonschema:"required,Record _key"`
}

// NewKVGetHandler creates the kv_get tool handler.
func NewKVGetHandler(deps *Dependencies) mcp.ToolHandlerFor[KVGetInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input KVGetInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Collection == "" || input.Key == "" {
			return ErrorResult("collection and key are required", ""), nil, nil
		}

		store := deps.newStore()
		if err := store.SetActive(ctx, input.Collection); err != nil {
			return failure("Unknown collection", err), nil, nil
		}
		rec, err := store.Lookup(ctx, input.Key)
		if err != nil {
			return failure("Failed to get record", err), nil, nil
		}

		jsonBytes, _ := json.MarshalIndent(rec, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}

// KVQueryInput defines the input schema for the kv_query tool.
type KVQueryInput struct {
	Collection string         `json:"collection" jsonschema:"required,Collection name"`
	Filter     map[string]any `json:"filter,omitempty" jsonschema:"KV store query document, e.g. {\"host\":\"web-1\"}"`
	Sort       string         `json:"sort,omitempty" jsonschema:"Sort spec, e.g. cpu:-1,host"`
	Limit      int            `json:"limit,omitempty" jsonschema:"Max records 1-1000, default 100"`
	Skip       int            `json:"skip,omitempty" jsonschema:"Records to skip"`
	Fields     []string       `json:"fields,omitempty" jsonschema:"Fields to return"`
	Flat       bool           `json:"flat,omitempty" jsonschema:"Return nested fields as dotted keys"`
}

// NewKVQueryHandler creates the kv_query tool handler.
func NewKVQueryHandler(deps *Dependencies) mcp.ToolHandlerFor[KVQueryInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input KVQueryInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Collection == "" {
			return ErrorResult("collection is required", "Use kv_collections to list collections"), nil, nil
		}
		limit := input.Limit
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		if limit > maxKVLimit {
			return ErrorResult("Limit must be 1-1000", "Use skip to page through records"), nil, nil
		}

		store := deps.newStore()
		if err := store.SetActive(ctx, input.Collection); err != nil {
			return failure("Unknown collection", err), nil, nil
		}
		_, err := store.Query(ctx, kvstore.Query{
			Filter: input.Filter,
			Sort:   input.Sort,
			Limit:  limit,
			Skip:   input.Skip,
			Fields: input.Fields,
		})
		if err != nil {
			return failure("Query failed", err), nil, nil
		}

		recs := store.Nested()
		if input.Flat {
			recs = store.Flat()
		}
		jsonBytes, _ := json.MarshalIndent(map[string]any{
			"collection": input.Collection,
			"count":      len(recs),
			"records":    recs,
		}, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}

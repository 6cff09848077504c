// Package kvstore wraps a named-collection registry (the Splunk KV store or
// an equivalent backend) with existence-checked administration and record
// CRUD on one active collection.
package kvstore

import "context"

// StatusCreated is the status a Registry reports for a new collection.
const StatusCreated = "created"

// Registry is the capability to administer named collections.
type Registry interface {
	ListCollections(ctx context.Context) ([]string, error)

	// CreateCollection creates name with the given field -> type spec and
	// returns the remote status ("created" on success).
	CreateCollection(ctx context.Context, name string, fields map[string]string) (string, error)

	DeleteCollection(ctx context.Context, name string) error

	// Collection returns a handle to name. It does not check existence.
	Collection(name string) Collection
}

// Collection is the record-level capability on one collection.
type Collection interface {
	Name() string
	Query(ctx context.Context, q Query) ([]map[string]any, error)
	QueryByID(ctx context.Context, key string) (map[string]any, error)

	// Insert stores record and returns the remote response, which carries
	// the generated _key.
	Insert(ctx context.Context, record map[string]any) (map[string]any, error)
	Update(ctx context.Context, key string, record map[string]any) error
	Delete(ctx context.Context, key string) error
}

// Query selects records from a collection.
type Query struct {
	// Filter is a KV store query document, e.g. {"env": {"$eq": "prod"}}.
	Filter map[string]any
	// Sort is "field", "field:1" or "field:-1"; comma separated for several.
	Sort   string
	Limit  int
	Skip   int
	Fields []string
}

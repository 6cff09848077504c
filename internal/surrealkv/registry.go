package surrealkv

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/splunkgo/internal/kvstore"
	"github.com/raphaelgruber/splunkgo/internal/models"
)

var _ kvstore.Registry = (*Client)(nil)

// ListCollections returns the registered collection names, sorted.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	results, err := surrealdb.Query[[]struct {
		Name string `json:"name"`
	}](ctx, c.db, `SELECT name FROM kv_collection ORDER BY name`, nil)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []string{}, nil
	}
	names := make([]string, 0, len((*results)[0].Result))
	for _, r := range (*results)[0].Result {
		names = append(names, r.Name)
	}
	return names, nil
}

// CreateCollection registers name and defines its data table.
func (c *Client) CreateCollection(ctx context.Context, name string, fields map[string]string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if fields == nil {
		fields = map[string]string{}
	}

	// The name is validated above, so interpolating the table is safe.
	sql := fmt.Sprintf(`
		BEGIN TRANSACTION;
		CREATE type::record("kv_collection", $name) SET name = $name, fields = $fields;
		DEFINE TABLE IF NOT EXISTS %s SCHEMALESS;
		COMMIT TRANSACTION;
	`, dataTable(name))
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"name":   name,
		"fields": fields,
	})
	if err != nil {
		return "", fmt.Errorf("create collection %s: %w", name, wrapQueryError(err))
	}

	c.logger.Debug("collection registered", "collection", name)
	return kvstore.StatusCreated, nil
}

// DeleteCollection unregisters name and removes its data table.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	results, err := surrealdb.Query[[]map[string]any](ctx, c.db,
		`DELETE type::record("kv_collection", $name) RETURN BEFORE`,
		map[string]any{"name": name})
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", name, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return fmt.Errorf("delete collection %s: %w", name, ErrNotFound)
	}

	if _, err := surrealdb.Query[any](ctx, c.db, fmt.Sprintf("REMOVE TABLE IF EXISTS %s", dataTable(name)), nil); err != nil {
		return fmt.Errorf("remove table for %s: %w", name, wrapQueryError(err))
	}
	return nil
}

// Collection returns a handle to the data table of name.
func (c *Client) Collection(name string) kvstore.Collection {
	return &collection{client: c, name: name, table: dataTable(name)}
}

type collection struct {
	client *Client
	name   string
	table  string
}

func (k *collection) Name() string { return k.name }

// toRecord replaces the SurrealDB id with the collection key field.
func toRecord(raw map[string]any) (map[string]any, error) {
	rec := maps.Clone(raw)
	if id, ok := rec["id"]; ok {
		key, err := models.RecordKey(id)
		if err != nil {
			return nil, err
		}
		rec[models.KeyField] = key
		delete(rec, "id")
	}
	return rec, nil
}

func toRecords(raw []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		rec, err := toRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// content strips the key field, which lives in the record id.
func content(rec map[string]any) map[string]any {
	out := maps.Clone(rec)
	delete(out, models.KeyField)
	delete(out, "id")
	return out
}

func (k *collection) one(ctx context.Context, sql string, vars map[string]any) (map[string]any, error) {
	results, err := surrealdb.Query[[]map[string]any](ctx, k.client.db, sql, vars)
	if err != nil {
		return nil, wrapQueryError(err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return toRecord((*results)[0].Result[0])
}

func (k *collection) Query(ctx context.Context, q kvstore.Query) ([]map[string]any, error) {
	b := newQueryBuilder(k.table)
	sql, err := b.build(q)
	if err != nil {
		return nil, err
	}
	results, err := surrealdb.Query[[]map[string]any](ctx, k.client.db, sql, b.vars)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", k.name, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []map[string]any{}, nil
	}
	return toRecords((*results)[0].Result)
}

func (k *collection) QueryByID(ctx context.Context, key string) (map[string]any, error) {
	rec, err := k.one(ctx, `SELECT * FROM type::record($tb, $key)`,
		map[string]any{"tb": k.table, "key": key})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", k.name, key, err)
	}
	return rec, nil
}

// Insert stores record under its _key, or under a new UUID when absent.
func (k *collection) Insert(ctx context.Context, record map[string]any) (map[string]any, error) {
	key, _ := record[models.KeyField].(string)
	if key == "" {
		key = uuid.NewString()
	}
	rec, err := k.one(ctx, `CREATE type::record($tb, $key) CONTENT $data`, map[string]any{
		"tb":   k.table,
		"key":  key,
		"data": content(record),
	})
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", k.name, err)
	}
	return map[string]any{models.KeyField: rec[models.KeyField]}, nil
}

func (k *collection) Update(ctx context.Context, key string, record map[string]any) error {
	// UPDATE on a missing record returns nothing, which maps to ErrNotFound.
	_, err := k.one(ctx, `UPDATE type::record($tb, $key) CONTENT $data RETURN AFTER`, map[string]any{
		"tb":   k.table,
		"key":  key,
		"data": content(record),
	})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", k.name, key, err)
	}
	return nil
}

func (k *collection) Delete(ctx context.Context, key string) error {
	_, err := k.one(ctx, `DELETE type::record($tb, $key) RETURN BEFORE`,
		map[string]any{"tb": k.table, "key": key})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", k.name, key, err)
	}
	return nil
}

package splunkd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/raphaelgruber/splunkgo/internal/kvstore"
)

var _ kvstore.Registry = (*Client)(nil)

// ListCollections returns the KV store collection names visible in the
// client's namespace.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var out struct {
		Entry []struct {
			Name string `json:"name"`
		} `json:"entry"`
	}
	err := c.execute(ctx, request{
		method: http.MethodGet,
		path:   c.path("storage", "collections", "config"),
		query:  url.Values{"output_mode": {"json"}, "count": {"0"}},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	names := make([]string, 0, len(out.Entry))
	for _, e := range out.Entry {
		names = append(names, e.Name)
	}
	return names, nil
}

// CreateCollection creates a collection with typed fields. Returns
// kvstore.StatusCreated on HTTP 201, otherwise the HTTP status text.
func (c *Client) CreateCollection(ctx context.Context, name string, fields map[string]string) (string, error) {
	form := url.Values{"name": {name}, "output_mode": {"json"}}
	for f, typ := range fields {
		form.Set("field."+f, typ)
	}
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   c.path("storage", "collections", "config"),
		form:   form,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		return kvstore.StatusCreated, nil
	}
	return strings.ToLower(http.StatusText(resp.StatusCode)), nil
}

// DeleteCollection removes a collection and its data.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	return c.execute(ctx, request{
		method: http.MethodDelete,
		path:   c.path("storage", "collections", "config", name),
		query:  url.Values{"output_mode": {"json"}},
	}, nil)
}

// Collection returns a handle to the data endpoint of name.
func (c *Client) Collection(name string) kvstore.Collection {
	return &collection{client: c, name: name}
}

type collection struct {
	client *Client
	name   string
}

func (k *collection) Name() string { return k.name }

func (k *collection) dataPath(key string) string {
	if key == "" {
		return k.client.path("storage", "collections", "data", k.name)
	}
	return k.client.path("storage", "collections", "data", k.name, key)
}

func (k *collection) Query(ctx context.Context, q kvstore.Query) ([]map[string]any, error) {
	params, err := queryParams(q)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	err = k.client.execute(ctx, request{
		method: http.MethodGet,
		path:   k.dataPath(""),
		query:  params,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}

func queryParams(q kvstore.Query) (url.Values, error) {
	params := url.Values{"output_mode": {"json"}}
	if len(q.Filter) > 0 {
		b, err := json.Marshal(q.Filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		params.Set("query", string(b))
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Skip > 0 {
		params.Set("skip", strconv.Itoa(q.Skip))
	}
	if len(q.Fields) > 0 {
		params.Set("fields", strings.Join(q.Fields, ","))
	}
	return params, nil
}

func (k *collection) QueryByID(ctx context.Context, key string) (map[string]any, error) {
	var out map[string]any
	err := k.client.execute(ctx, request{
		method: http.MethodGet,
		path:   k.dataPath(key),
		query:  url.Values{"output_mode": {"json"}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (k *collection) Insert(ctx context.Context, record map[string]any) (map[string]any, error) {
	out := map[string]any{}
	err := k.client.execute(ctx, request{
		method: http.MethodPost,
		path:   k.dataPath(""),
		query:  url.Values{"output_mode": {"json"}},
		body:   record,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (k *collection) Update(ctx context.Context, key string, record map[string]any) error {
	return k.client.execute(ctx, request{
		method: http.MethodPost,
		path:   k.dataPath(key),
		query:  url.Values{"output_mode": {"json"}},
		body:   record,
	}, nil)
}

func (k *collection) Delete(ctx context.Context, key string) error {
	return k.client.execute(ctx, request{
		method: http.MethodDelete,
		path:   k.dataPath(key),
		query:  url.Values{"output_mode": {"json"}},
	}, nil)
}

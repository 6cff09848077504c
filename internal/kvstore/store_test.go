package kvstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/splunkgo/internal/metrics"
	"github.com/raphaelgruber/splunkgo/internal/models"
)

type memRegistry struct {
	colls        map[string]*memCollection
	createStatus string
	omitKey      bool
}

func newMemRegistry(names ...string) *memRegistry {
	r := &memRegistry{colls: map[string]*memCollection{}, createStatus: StatusCreated}
	for _, n := range names {
		r.colls[n] = &memCollection{reg: r, name: n, records: map[string]map[string]any{}}
	}
	return r
}

func (r *memRegistry) ListCollections(context.Context) ([]string, error) {
	names := make([]string, 0, len(r.colls))
	for n := range r.colls {
		names = append(names, n)
	}
	return names, nil
}

func (r *memRegistry) CreateCollection(_ context.Context, name string, _ map[string]string) (string, error) {
	if r.createStatus == StatusCreated {
		r.colls[name] = &memCollection{reg: r, name: name, records: map[string]map[string]any{}}
	}
	return r.createStatus, nil
}

func (r *memRegistry) DeleteCollection(_ context.Context, name string) error {
	delete(r.colls, name)
	return nil
}

func (r *memRegistry) Collection(name string) Collection {
	if c, ok := r.colls[name]; ok {
		return c
	}
	return &memCollection{reg: r, name: name, records: map[string]map[string]any{}}
}

type memCollection struct {
	reg     *memRegistry
	name    string
	records map[string]map[string]any
	order   []string
	lastQ   Query
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) Query(_ context.Context, q Query) ([]map[string]any, error) {
	c.lastQ = q
	out := make([]map[string]any, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.records[k])
	}
	return out, nil
}

func (c *memCollection) QueryByID(_ context.Context, key string) (map[string]any, error) {
	rec, ok := c.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: key %s", models.ErrOperation, key)
	}
	return rec, nil
}

func (c *memCollection) Insert(_ context.Context, record map[string]any) (map[string]any, error) {
	if c.reg.omitKey {
		return map[string]any{}, nil
	}
	key := fmt.Sprintf("k%d", len(c.order)+1)
	rec := map[string]any{models.KeyField: key}
	for k, v := range record {
		rec[k] = v
	}
	c.records[key] = rec
	c.order = append(c.order, key)
	return map[string]any{models.KeyField: key}, nil
}

func (c *memCollection) Update(_ context.Context, key string, record map[string]any) error {
	if _, ok := c.records[key]; !ok {
		return fmt.Errorf("%w: key %s", models.ErrOperation, key)
	}
	rec := map[string]any{models.KeyField: key}
	for k, v := range record {
		rec[k] = v
	}
	c.records[key] = rec
	return nil
}

func (c *memCollection) Delete(_ context.Context, key string) error {
	delete(c.records, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func TestStoreCollections(t *testing.T) {
	s := NewStore(newMemRegistry("b", "a"), nil, nil)

	names, err := s.Collections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestStoreCreate(t *testing.T) {
	ctx := context.Background()
	reg := newMemRegistry()
	s := NewStore(reg, nil, nil)

	require.NoError(t, s.Create(ctx, "c", map[string]string{"host": "string"}))
	assert.Equal(t, "c", s.Active())
	assert.Contains(t, reg.colls, "c")

	err := s.Create(ctx, "c", nil)
	assert.ErrorIs(t, err, models.ErrInvalidName)
}

func TestStoreCreateBadStatus(t *testing.T) {
	reg := newMemRegistry()
	reg.createStatus = "conflict"
	s := NewStore(reg, nil, nil)

	err := s.Create(context.Background(), "c", nil)
	assert.ErrorIs(t, err, models.ErrOperation)
	assert.Empty(t, s.Active())
}

func TestStoreDrop(t *testing.T) {
	ctx := context.Background()
	reg := newMemRegistry("c")
	s := NewStore(reg, nil, nil)

	err := s.Drop(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrInvalidName)

	require.NoError(t, s.Drop(ctx, "c"))
	assert.NotContains(t, reg.colls, "c")
	assert.Empty(t, s.Active())

	err = s.Drop(ctx, "c")
	assert.ErrorIs(t, err, models.ErrInvalidName)
}

func TestStoreCacheIsLocal(t *testing.T) {
	ctx := context.Background()
	reg := newMemRegistry("c")
	s := NewStore(reg, nil, nil)

	require.NoError(t, s.Drop(ctx, "c"))

	// An external creator is invisible until the next full refresh.
	reg.colls["c"] = &memCollection{reg: reg, name: "c", records: map[string]map[string]any{}}
	err := s.Drop(ctx, "c")
	assert.ErrorIs(t, err, models.ErrInvalidName)

	require.NoError(t, s.SetActive(ctx, "c"))
	require.NoError(t, s.Drop(ctx, "c"))
}

func TestStoreSetActive(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemRegistry("c"), nil, nil)

	err := s.SetActive(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrInvalidName)
	assert.Empty(t, s.Active())

	require.NoError(t, s.SetActive(ctx, "c"))
	assert.Equal(t, "c", s.Active())
}

func TestStoreRequiresActive(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemRegistry("c"), nil, nil)

	_, err := s.Insert(ctx, map[string]any{"a": 1})
	assert.ErrorIs(t, err, models.ErrNoCapability)
	assert.ErrorIs(t, s.Update(ctx, "k", nil), models.ErrNoCapability)
	_, err = s.Lookup(ctx, "k")
	assert.ErrorIs(t, err, models.ErrNoCapability)
	assert.ErrorIs(t, s.Remove(ctx, "k"), models.ErrNoCapability)
	_, err = s.Query(ctx, Query{})
	assert.ErrorIs(t, err, models.ErrNoCapability)
}

func TestStoreInsert(t *testing.T) {
	ctx := context.Background()
	reg := newMemRegistry("c")
	s := NewStore(reg, nil, nil)
	require.NoError(t, s.SetActive(ctx, "c"))

	key, err := s.Insert(ctx, map[string]any{"host": "a"})
	require.NoError(t, err)
	assert.Equal(t, "k1", key)

	reg.omitKey = true
	_, err = s.Insert(ctx, map[string]any{"host": "b"})
	assert.ErrorIs(t, err, models.ErrOperation)
}

func TestStoreRecordCRUD(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewCollector()
	s := NewStore(newMemRegistry("c"), nil, m)
	require.NoError(t, s.SetActive(ctx, "c"))

	key, err := s.Insert(ctx, map[string]any{"host": "a"})
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, key, map[string]any{"host": "b"}))
	rec, err := s.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "b", rec["host"])

	require.NoError(t, s.Remove(ctx, key))
	_, err = s.Lookup(ctx, key)
	assert.ErrorIs(t, err, models.ErrOperation)

	writes, ok := m.Snapshot().Get(metrics.OpKVWrite)
	require.True(t, ok)
	assert.Equal(t, int64(3), writes.Count)
}

func TestStoreQueryProjections(t *testing.T) {
	ctx := context.Background()
	reg := newMemRegistry("c")
	s := NewStore(reg, nil, nil)
	require.NoError(t, s.SetActive(ctx, "c"))

	_, err := s.Insert(ctx, map[string]any{
		"host": "a",
		"meta": map[string]any{"env": "prod", "dc": map[string]any{"id": 7}},
	})
	require.NoError(t, err)

	q := Query{Filter: map[string]any{"host": "a"}, Sort: "host:1", Limit: 10}
	recs, err := s.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, q, reg.colls["c"].lastQ)

	assert.Equal(t, recs, s.RawData())
	require.Len(t, s.Flat(), 1)
	assert.Equal(t, "prod", s.Flat()[0]["meta.env"])
	assert.Equal(t, 7, s.Flat()[0]["meta.dc.id"])

	require.Len(t, s.Nested(), 1)
	meta, ok := s.Nested()[0]["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "prod", meta["env"])
}

func TestFlattenNest(t *testing.T) {
	nested := map[string]any{
		"a": map[string]any{"b": 1, "c": map[string]any{"d": "x"}},
		"e": []any{1, 2},
		"f": map[string]any{},
	}
	flat := Flatten(nested)
	assert.Equal(t, map[string]any{
		"a.b":   1,
		"a.c.d": "x",
		"e":     []any{1, 2},
		"f":     map[string]any{},
	}, flat)

	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": 1, "c": map[string]any{"d": "x"}},
		"e": []any{1, 2},
		"f": map[string]any{},
	}, Nest(flat))
}

func TestNestConflict(t *testing.T) {
	got := Nest(map[string]any{"a": 1, "a.b": 2, "c.d": 3})
	assert.Equal(t, map[string]any{
		"a":   1,
		"a.b": 2,
		"c":   map[string]any{"d": 3},
	}, got)
}

package kvstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/raphaelgruber/splunkgo/internal/metrics"
	"github.com/raphaelgruber/splunkgo/internal/models"
)

// Store caches the collection names of a Registry and performs record
// operations on one active collection.
//
// The name cache reflects local Create/Drop calls only; external changes
// become visible on the next Collections or SetActive refresh. A Store is
// not safe for concurrent use.
type Store struct {
	registry Registry
	logger   *slog.Logger
	metrics  *metrics.Collector

	collections map[string]struct{}
	loaded      bool
	active      Collection

	rawData []map[string]any
	flat    []map[string]any
	nested  []map[string]any
}

// NewStore creates a store on registry. A nil logger uses slog.Default().
func NewStore(registry Registry, logger *slog.Logger, m *metrics.Collector) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		registry:    registry,
		logger:      logger,
		metrics:     m,
		collections: map[string]struct{}{},
	}
}

// Active returns the name of the active collection, or "".
func (s *Store) Active() string {
	if s.active == nil {
		return ""
	}
	return s.active.Name()
}

// RawData returns the records of the last Query.
func (s *Store) RawData() []map[string]any { return s.rawData }

// Flat returns the last Query's records with nested maps collapsed into
// dotted keys.
func (s *Store) Flat() []map[string]any { return s.flat }

// Nested returns the last Query's records with dotted keys expanded.
func (s *Store) Nested() []map[string]any { return s.nested }

func (s *Store) refresh(ctx context.Context) error {
	names, err := s.registry.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	s.collections = make(map[string]struct{}, len(names))
	for _, n := range names {
		s.collections[n] = struct{}{}
	}
	s.loaded = true
	return nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.refresh(ctx)
}

func (s *Store) has(name string) bool {
	_, ok := s.collections[name]
	return ok
}

// Collections refreshes the cache and returns the sorted collection names.
func (s *Store) Collections(ctx context.Context) (names []string, err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpKVAdmin, start, err) }(time.Now())
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	names = make([]string, 0, len(s.collections))
	for n := range s.collections {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

// SetActive makes name the active collection. The cache is refreshed first.
func (s *Store) SetActive(ctx context.Context, name string) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}
	if !s.has(name) {
		return fmt.Errorf("%w: collection %q does not exist", models.ErrInvalidName, name)
	}
	s.active = s.registry.Collection(name)
	return nil
}

// Create creates collection name with the given field types and activates it.
func (s *Store) Create(ctx context.Context, name string, fields map[string]string) (err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpKVAdmin, start, err) }(time.Now())
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	if s.has(name) {
		return fmt.Errorf("%w: collection %q already exists", models.ErrInvalidName, name)
	}

	status, err := s.registry.CreateCollection(ctx, name, fields)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	if status != StatusCreated {
		return fmt.Errorf("%w: create collection %s: status %q", models.ErrOperation, name, status)
	}

	s.active = s.registry.Collection(name)
	s.collections[name] = struct{}{}
	s.logger.Info("collection created", "collection", name, "fields", len(fields))
	return nil
}

// Drop deletes collection name. The active collection is cleared.
func (s *Store) Drop(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpKVAdmin, start, err) }(time.Now())
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	if !s.has(name) {
		return fmt.Errorf("%w: collection %q does not exist", models.ErrInvalidName, name)
	}

	s.active = s.registry.Collection(name)
	if err := s.registry.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	delete(s.collections, name)
	s.active = nil
	s.logger.Info("collection deleted", "collection", name)
	return nil
}

func (s *Store) requireActive() (Collection, error) {
	if s.active == nil {
		return nil, fmt.Errorf("%w: no active collection", models.ErrNoCapability)
	}
	return s.active, nil
}

// Insert stores rec in the active collection and returns its generated key.
func (s *Store) Insert(ctx context.Context, rec map[string]any) (key string, err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpKVWrite, start, err) }(time.Now())
	coll, err := s.requireActive()
	if err != nil {
		return "", err
	}
	resp, err := coll.Insert(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", coll.Name(), err)
	}
	raw, ok := resp[models.KeyField]
	if !ok {
		return "", fmt.Errorf("%w: insert into %s: response has no %s", models.ErrOperation, coll.Name(), models.KeyField)
	}
	key, err = models.RecordKey(raw)
	if err != nil {
		return "", fmt.Errorf("%w: insert into %s: %v", models.ErrOperation, coll.Name(), err)
	}
	return key, nil
}

// Update replaces the record stored under key.
func (s *Store) Update(ctx context.Context, key string, rec map[string]any) (err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpKVWrite, start, err) }(time.Now())
	coll, err := s.requireActive()
	if err != nil {
		return err
	}
	if err := coll.Update(ctx, key, rec); err != nil {
		return fmt.Errorf("update %s/%s: %w", coll.Name(), key, err)
	}
	return nil
}

// Lookup returns the record stored under key.
func (s *Store) Lookup(ctx context.Context, key string) (rec map[string]any, err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpKVRead, start, err) }(time.Now())
	coll, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	rec, err = coll.QueryByID(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup %s/%s: %w", coll.Name(), key, err)
	}
	return rec, nil
}

// Remove deletes the record stored under key.
func (s *Store) Remove(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpKVWrite, start, err) }(time.Now())
	coll, err := s.requireActive()
	if err != nil {
		return err
	}
	if err := coll.Delete(ctx, key); err != nil {
		return fmt.Errorf("remove %s/%s: %w", coll.Name(), key, err)
	}
	return nil
}

// Query runs q against the active collection and caches the raw, flat and
// nested views of the result.
func (s *Store) Query(ctx context.Context, q Query) (recs []map[string]any, err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpKVRead, start, err) }(time.Now())
	coll, err := s.requireActive()
	if err != nil {
		return nil, err
	}
	recs, err = coll.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll.Name(), err)
	}

	flat := make([]map[string]any, len(recs))
	nested := make([]map[string]any, len(recs))
	for i, r := range recs {
		flat[i] = Flatten(r)
		nested[i] = Nest(flat[i])
	}
	s.rawData, s.flat, s.nested = recs, flat, nested
	return recs, nil
}

package splunktest

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/raphaelgruber/splunkgo/internal/models"
)

type collection struct {
	fields  map[string]string
	records []map[string]any
	seq     int
}

func (c *collection) find(key string) int {
	return slices.IndexFunc(c.records, func(rec map[string]any) bool {
		return rec[models.KeyField] == key
	})
}

// AddCollection registers a collection as if created out of band.
func (s *Server) AddCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = &collection{fields: map[string]string{}}
}

// Collection returns a copy of the fields and records of name.
func (s *Server) Collection(name string) (fields map[string]string, records []map[string]any, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, nil, false
	}
	return maps.Clone(c.fields), slices.Clone(c.records), true
}

func (s *Server) handleListCollections(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	names := slices.Sorted(maps.Keys(s.collections))
	s.mu.Unlock()

	entries := make([]map[string]any, 0, len(names))
	for _, n := range names {
		entries = append(entries, map[string]any{"name": n, "content": map[string]any{}})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": entries})
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeMessages(w, http.StatusBadRequest, "ERROR", err.Error())
		return
	}
	name := r.PostForm.Get("name")
	if name == "" {
		writeMessages(w, http.StatusBadRequest, "ERROR", "Missing name")
		return
	}

	fields := map[string]string{}
	for k, v := range r.PostForm {
		if f, ok := strings.CutPrefix(k, "field."); ok {
			fields[f] = v[0]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.collections[name]; exists {
		writeMessages(w, http.StatusConflict, "ERROR", "An object with name=%s already exists", name)
		return
	}
	s.collections[name] = &collection{fields: fields}
	writeJSON(w, http.StatusCreated, map[string]any{
		"entry": []map[string]any{{"name": name, "content": fields}},
	})
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		writeMessages(w, http.StatusNotFound, "ERROR", "Could not find object id=%s", name)
		return
	}
	delete(s.collections, name)
	w.WriteHeader(http.StatusOK)
}

// liveCollection returns the request's collection or writes a 404.
// Must be called with s.mu held.
func (s *Server) liveCollection(w http.ResponseWriter, r *http.Request) *collection {
	name := chi.URLParam(r, "name")
	c, ok := s.collections[name]
	if !ok {
		writeMessages(w, http.StatusNotFound, "ERROR", "Collection %s does not exist", name)
		return nil
	}
	return c
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter map[string]any
	if raw := q.Get("query"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			writeMessages(w, http.StatusBadRequest, "ERROR", "Invalid query: %v", err)
			return
		}
	}

	s.mu.Lock()
	c := s.liveCollection(w, r)
	if c == nil {
		s.mu.Unlock()
		return
	}
	var out []map[string]any
	for _, rec := range c.records {
		if matches(rec, filter) {
			out = append(out, maps.Clone(rec))
		}
	}
	s.mu.Unlock()

	if sortSpec := q.Get("sort"); sortSpec != "" {
		field, dir, _ := strings.Cut(sortSpec, ":")
		slices.SortStableFunc(out, func(a, b map[string]any) int {
			d := cmp.Compare(fmt.Sprint(a[field]), fmt.Sprint(b[field]))
			if dir == "-1" {
				return -d
			}
			return d
		})
	}
	if skip, err := strconv.Atoi(q.Get("skip")); err == nil && skip > 0 {
		out = out[min(skip, len(out)):]
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	if fields := q.Get("fields"); fields != "" {
		keep := strings.Split(fields, ",")
		for i, rec := range out {
			proj := map[string]any{models.KeyField: rec[models.KeyField]}
			for _, f := range keep {
				if v, ok := rec[f]; ok {
					proj[f] = v
				}
			}
			out[i] = proj
		}
	}
	if out == nil {
		out = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, out)
}

// matches supports top-level equality filters, which is all the clients
// under test send.
func matches(rec, filter map[string]any) bool {
	for k, want := range filter {
		if fmt.Sprint(rec[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var rec map[string]any
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeMessages(w, http.StatusBadRequest, "ERROR", "Invalid JSON: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.liveCollection(w, r)
	if c == nil {
		return
	}
	key, _ := rec[models.KeyField].(string)
	if key == "" {
		c.seq++
		key = fmt.Sprintf("%024x", c.seq)
		rec[models.KeyField] = key
	}
	if c.find(key) >= 0 {
		writeMessages(w, http.StatusConflict, "ERROR", "A document with the same key already exists")
		return
	}
	c.records = append(c.records, rec)
	writeJSON(w, http.StatusCreated, map[string]string{models.KeyField: key})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.liveCollection(w, r)
	if c == nil {
		return
	}
	i := c.find(key)
	if i < 0 {
		writeMessages(w, http.StatusNotFound, "ERROR", "Could not find object.")
		return
	}
	writeJSON(w, http.StatusOK, c.records[i])
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var rec map[string]any
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeMessages(w, http.StatusBadRequest, "ERROR", "Invalid JSON: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.liveCollection(w, r)
	if c == nil {
		return
	}
	i := c.find(key)
	if i < 0 {
		writeMessages(w, http.StatusNotFound, "ERROR", "Could not find object.")
		return
	}
	rec[models.KeyField] = key
	c.records[i] = rec
	writeJSON(w, http.StatusOK, map[string]string{models.KeyField: key})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.liveCollection(w, r)
	if c == nil {
		return
	}
	i := c.find(key)
	if i < 0 {
		writeMessages(w, http.StatusNotFound, "ERROR", "Could not find object.")
		return
	}
	c.records = slices.Delete(c.records, i, i+1)
	w.WriteHeader(http.StatusOK)
}

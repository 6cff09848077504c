// Package splunktest runs an in-process fake of the splunkd REST endpoints
// used by the search and KV store clients.
package splunktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/raphaelgruber/splunkgo/internal/models"
)

// Credentials accepted by the fake.
const (
	Username   = "admin"
	Password   = "changeme"
	Token      = "test-token"
	SessionKey = "test-session-key"
)

// Job is the fake's record of one search job.
type Job struct {
	SID       string
	Search    string
	Params    map[string]string
	Polls     int
	Cancelled bool
	Deleted   bool

	// ResultParams holds the query of every results request, in order.
	ResultParams []map[string]string
}

// Server is a fake splunkd. Configure it before issuing requests; the
// exported fields are read under the server lock.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// Results are the bodies returned by the results endpoint per output
	// mode, shared by every job.
	Results map[models.OutputMode]string

	// PendingPolls is how many status requests report a job as running
	// before it reports done.
	PendingPolls int

	// DropConnections closes that many incoming connections without a
	// response, producing transport errors on the client.
	DropConnections int

	jobs        map[string]*Job
	jobOrder    []string
	collections map[string]*collection
	requests    []string
}

// NewServer starts a fake splunkd and registers its shutdown with t.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Results:     DefaultResults(),
		jobs:        map[string]*Job{},
		collections: map[string]*collection{},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// DefaultResults returns a two row result set in every decodable mode.
func DefaultResults() map[models.OutputMode]string {
	return map[models.OutputMode]string{
		models.OutputJSON:     `{"preview":false,"init_offset":0,"messages":[],"results":[{"host":"web-1","count":"3"},{"host":"web-2","count":"5"}]}`,
		models.OutputCSV:      "\"host\",\"count\"\n\"web-1\",3\n\"web-2\",5\n",
		models.OutputJSONRows: `{"preview":false,"init_offset":0,"messages":[],"fields":["host","count"],"rows":[["web-1","3"],["web-2","5"]]}`,
		models.OutputJSONCols: `{"preview":false,"init_offset":0,"messages":[],"fields":["host","count"],"columns":[["web-1","web-2"],["3","5"]]}`,
		models.OutputXML:      "<?xml version='1.0' encoding='UTF-8'?>\n<results preview='0'>\n<result offset='0'><field k='host'><value><text>web-1</text></value></field></result>\n<result offset='1'><field k='host'><value><text>web-2</text></value></field></result>\n</results>\n",
	}
}

func (s *Server) routes() http.Handler {
	api := chi.NewRouter()
	api.Post("/auth/login", s.handleLogin)

	api.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/search/jobs", s.handleCreateJob)
		r.Get("/search/jobs/{sid}", s.handleGetJob)
		r.Delete("/search/jobs/{sid}", s.handleDeleteJob)
		r.Get("/search/jobs/{sid}/results", s.handleResults)
		r.Post("/search/jobs/{sid}/control", s.handleControl)

		r.Get("/storage/collections/config", s.handleListCollections)
		r.Post("/storage/collections/config", s.handleCreateCollection)
		r.Delete("/storage/collections/config/{name}", s.handleDeleteCollection)

		r.Get("/storage/collections/data/{name}", s.handleQuery)
		r.Post("/storage/collections/data/{name}", s.handleInsert)
		r.Get("/storage/collections/data/{name}/{key}", s.handleGetRecord)
		r.Post("/storage/collections/data/{name}/{key}", s.handleUpdateRecord)
		r.Delete("/storage/collections/data/{name}/{key}", s.handleDeleteRecord)
	})

	r := chi.NewRouter()
	r.Use(s.dropConnections, s.recordRequest)
	r.Mount("/services", api)
	r.Mount("/servicesNS/{owner}/{app}", api)
	return r
}

// Requests returns "METHOD /path" for every request served, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Job returns a copy of the job with the given sid.
func (s *Server) Job(sid string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[sid]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Jobs returns copies of all jobs in creation order.
func (s *Server) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobOrder))
	for _, sid := range s.jobOrder {
		out = append(out, *s.jobs[sid])
	}
	return out
}

// SetResult replaces the body for one output mode.
func (s *Server) SetResult(mode models.OutputMode, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Results[mode] = body
}

func (s *Server) recordRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) dropConnections(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		drop := s.DropConnections > 0
		if drop {
			s.DropConnections--
		}
		s.mu.Unlock()

		if drop {
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, err := hj.Hijack()
				if err == nil {
					_ = conn.Close()
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+Token && auth != "Splunk "+SessionKey {
			writeMessages(w, http.StatusUnauthorized, "WARN", "call not properly authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeMessages(w, http.StatusBadRequest, "ERROR", err.Error())
		return
	}
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		writeMessages(w, http.StatusUnauthorized, "WARN", "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionKey": SessionKey})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessages(w http.ResponseWriter, status int, typ, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"messages": []models.Message{{Type: typ, Text: fmt.Sprintf(format, args...)}},
	})
}

func formMap(r *http.Request) map[string]string {
	out := map[string]string{}
	for k, v := range r.Form {
		out[k] = strings.Join(v, ",")
	}
	return out
}

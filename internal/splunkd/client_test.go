package splunkd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/splunkgo/internal/kvstore"
	"github.com/raphaelgruber/splunkgo/internal/models"
	"github.com/raphaelgruber/splunkgo/internal/results"
	"github.com/raphaelgruber/splunkgo/internal/search"
	"github.com/raphaelgruber/splunkgo/internal/splunktest"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Scheme = "http"
	cfg.Username = splunktest.Username
	cfg.Password = splunktest.Password
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, srv *splunktest.Server, cfg Config) *Client {
	t.Helper()
	c, err := New(context.Background(), cfg, nil, WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with login", func(*Config) {}, false},
		{"token only", func(c *Config) { c.Username, c.Password, c.Token = "", "", "t" }, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"bad scheme", func(c *Config) { c.Scheme = "ftp" }, true},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
		{"bad sharing", func(c *Config) { c.Sharing = "everyone" }, true},
		{"no credentials", func(c *Config) { c.Username, c.Password = "", "" }, true},
		{"negative retries", func(c *Config) { c.Retries = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNamespace(t *testing.T) {
	tests := []struct {
		owner, app, sharing string
		want                string
	}{
		{"", "", "user", "/services"},
		{"admin", "", "user", "/servicesNS/admin/-"},
		{"", "search", "user", "/servicesNS/-/search"},
		{"admin", "search", "user", "/servicesNS/admin/search"},
		{"admin", "search", "app", "/servicesNS/nobody/search"},
		{"admin", "", "global", "/servicesNS/nobody/-"},
		{"", "", "system", "/servicesNS/nobody/system"},
	}
	for _, tt := range tests {
		cfg := Config{Owner: tt.owner, App: tt.app, Sharing: tt.sharing}
		assert.Equal(t, tt.want, cfg.namespace(), "owner=%q app=%q sharing=%q", tt.owner, tt.app, tt.sharing)
	}
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "search index=main", normalizeQuery("index=main"))
	assert.Equal(t, "search index=main", normalizeQuery("search index=main"))
	assert.Equal(t, "| makeresults", normalizeQuery("  | makeresults"))
}

func TestLogin(t *testing.T) {
	srv := splunktest.NewServer(t)

	c := newTestClient(t, srv, testConfig())
	assert.Equal(t, splunktest.SessionKey, c.SessionKey())
	assert.Equal(t, "POST /services/auth/login", srv.Requests()[0])
}

func TestLoginFailure(t *testing.T) {
	srv := splunktest.NewServer(t)
	cfg := testConfig()
	cfg.Password = "wrong"

	_, err := New(context.Background(), cfg, nil, WithBaseURL(srv.URL))
	require.Error(t, err)

	var rerr *models.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusUnauthorized, rerr.Status)
	assert.Contains(t, rerr.Error(), "Login failed")
	assert.ErrorIs(t, err, models.ErrOperation)
}

func TestTokenAuthSkipsLogin(t *testing.T) {
	srv := splunktest.NewServer(t)
	cfg := testConfig()
	cfg.Username, cfg.Password, cfg.Token = "", "", splunktest.Token

	c := newTestClient(t, srv, cfg)
	_, err := c.ListCollections(context.Background())
	require.NoError(t, err)

	assert.Empty(t, c.SessionKey())
	assert.Equal(t, []string{"GET /services/storage/collections/config"}, srv.Requests())
}

func TestRetriesTransportErrors(t *testing.T) {
	ctx := context.Background()
	srv := splunktest.NewServer(t)
	cfg := testConfig()
	cfg.SessionKey = splunktest.SessionKey
	cfg.Retries = 2

	// Fresh connections only, so the transport never replays a request
	// on its own.
	hc := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	c, err := New(ctx, cfg, nil, WithBaseURL(srv.URL), WithHTTPClient(hc))
	require.NoError(t, err)

	srv.DropConnections = 2
	_, err = c.ListCollections(ctx)
	require.NoError(t, err)

	srv.DropConnections = 3
	_, err = c.ListCollections(ctx)
	require.Error(t, err)
	var rerr *models.RemoteError
	assert.False(t, errors.As(err, &rerr), "transport errors are not remote errors")
}

func TestRetriesStopOnCancel(t *testing.T) {
	srv := splunktest.NewServer(t)
	cfg := testConfig()
	cfg.SessionKey = splunktest.SessionKey
	cfg.Retries = 100
	cfg.RetryDelay = time.Hour

	hc := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	c, err := New(context.Background(), cfg, nil, WithBaseURL(srv.URL), WithHTTPClient(hc))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	srv.DropConnections = 1

	start := time.Now()
	_, err = c.ListCollections(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "the retry delay is abandoned when the context ends")
}

func TestSearchJobLifecycle(t *testing.T) {
	ctx := context.Background()
	srv := splunktest.NewServer(t)
	srv.PendingPolls = 1
	cfg := testConfig()
	cfg.Owner, cfg.App = "admin", "search"
	c := newTestClient(t, srv, cfg)

	h, err := c.SubmitQuery(ctx, "index=main | stats count by host", search.Options{"earliest_time": "-1h"})
	require.NoError(t, err)

	job, ok := srv.Job(h.SID())
	require.True(t, ok)
	assert.Equal(t, "search index=main | stats count by host", job.Search)
	assert.Equal(t, "-1h", job.Params["earliest_time"])

	content, err := h.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, content.IsDone())
	assert.Equal(t, "RUNNING", content.DispatchState())

	content, err = h.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, content.IsDone())
	assert.Equal(t, 2, content.ResultCount())

	body, err := h.Results(ctx, models.OutputCSV, search.Options{"count": "0"})
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Equal(t, splunktest.DefaultResults()[models.OutputCSV], string(data))

	require.NoError(t, h.Cancel(ctx))
	job, _ = srv.Job(h.SID())
	assert.True(t, job.Cancelled)

	require.NoError(t, h.Delete(ctx))
	_, err = h.Refresh(ctx)
	var rerr *models.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusNotFound, rerr.Status)

	assert.Contains(t, srv.Requests(), "POST /servicesNS/admin/search/search/jobs")
}

func TestResultsBadMode(t *testing.T) {
	ctx := context.Background()
	srv := splunktest.NewServer(t)
	c := newTestClient(t, srv, testConfig())

	h, err := c.SubmitQuery(ctx, "search *", nil)
	require.NoError(t, err)

	_, err = h.Results(ctx, models.OutputAtom, nil)
	var rerr *models.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusBadRequest, rerr.Status)
}

func TestSessionAgainstSplunkd(t *testing.T) {
	ctx := context.Background()
	srv := splunktest.NewServer(t)
	srv.PendingPolls = 2
	c := newTestClient(t, srv, testConfig())

	s := search.NewSession(c, search.WithDecoder(results.Decoder{Dir: t.TempDir()}))
	sid, err := s.RecordAndSubmit(ctx, "index=main", nil)
	require.NoError(t, err)

	ok, err := s.Fetch(ctx, nil)
	require.NoError(t, err)
	assert.False(t, ok, "job still running")

	require.NoError(t, search.Wait(ctx, s.Poll, nil))

	ok, err = s.Fetch(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)

	j := s.Current()
	assert.Equal(t, 2, j.CSV().Len())
	assert.Equal(t, j.CSV().Len(), j.JSONRows().Len())
	assert.Equal(t, j.CSV().Len(), j.JSONCols().Len())
	assert.Len(t, j.Rows(), 2)
	assert.NotEmpty(t, j.XML())

	dir := t.TempDir()
	path, err := s.WriteResults(ctx, dir, models.OutputJSONRows)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "results_sid_"+sid+".json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, splunktest.DefaultResults()[models.OutputJSONRows], string(data))

	job, _ := srv.Job(sid)
	for _, p := range job.ResultParams {
		assert.Equal(t, "0", p["count"])
	}

	require.NoError(t, s.Delete(ctx))
	job, _ = srv.Job(sid)
	assert.True(t, job.Deleted)
}

func TestSessionSearchError(t *testing.T) {
	ctx := context.Background()
	srv := splunktest.NewServer(t)
	srv.SetResult(models.OutputJSON, `{"messages":[{"type":"FATAL","text":"bad"},{"type":"ERROR","text":"Unknown search command 'foo'."}],"results":[]}`)
	c := newTestClient(t, srv, testConfig())

	s := search.NewSession(c)
	_, err := s.RecordAndSubmit(ctx, "| foo", nil)
	require.NoError(t, err)

	ok, err := s.Fetch(ctx, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, models.ErrSearch)
	assert.EqualError(t, err, "ERROR: Unknown search command 'foo'.")
	assert.Nil(t, s.Current().CSV())
}

func TestKVStoreAgainstSplunkd(t *testing.T) {
	ctx := context.Background()
	srv := splunktest.NewServer(t)
	srv.AddCollection("existing")
	c := newTestClient(t, srv, testConfig())

	store := kvstore.NewStore(c, nil, nil)

	names, err := store.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"existing"}, names)

	require.NoError(t, store.Create(ctx, "assets", map[string]string{"host": "string", "cpu": "number"}))
	fields, _, ok := srv.Collection("assets")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"host": "string", "cpu": "number"}, fields)

	assert.ErrorIs(t, store.Create(ctx, "assets", nil), models.ErrInvalidName)

	k1, err := store.Insert(ctx, map[string]any{"host": "web-1", "meta": map[string]any{"env": "prod"}})
	require.NoError(t, err)
	_, err = store.Insert(ctx, map[string]any{"host": "web-2", "meta": map[string]any{"env": "dev"}})
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, k1, map[string]any{"host": "web-1", "meta": map[string]any{"env": "stage"}}))
	rec, err := store.Lookup(ctx, k1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"env": "stage"}, rec["meta"])

	recs, err := store.Query(ctx, kvstore.Query{Filter: map[string]any{"host": "web-2"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "dev", store.Flat()[0]["meta.env"])

	recs, err = store.Query(ctx, kvstore.Query{Sort: "host:-1", Limit: 1, Fields: []string{"host"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "web-2", recs[0]["host"])
	assert.NotContains(t, recs[0], "meta")

	require.NoError(t, store.Remove(ctx, k1))
	_, err = store.Lookup(ctx, k1)
	assert.ErrorIs(t, err, models.ErrOperation)

	require.NoError(t, store.Drop(ctx, "assets"))
	_, _, ok = srv.Collection("assets")
	assert.False(t, ok)
	assert.ErrorIs(t, store.Drop(ctx, "missing"), models.ErrInvalidName)
}

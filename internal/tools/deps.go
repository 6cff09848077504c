// Package tools provides MCP tool handlers and registration.
package tools

import (
	"log/slog"
	"time"

	"github.com/raphaelgruber/splunkgo/internal/kvstore"
	"github.com/raphaelgruber/splunkgo/internal/metrics"
	"github.com/raphaelgruber/splunkgo/internal/results"
	"github.com/raphaelgruber/splunkgo/internal/search"
)

// JobConnection submits searches and reattaches to existing jobs by SID.
type JobConnection interface {
	search.Connection
	Job(sid string) search.JobHandle
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Splunk   JobConnection
	Registry kvstore.Registry
	Metrics  *metrics.Collector
	Decoder  results.Decoder
	Logger   *slog.Logger

	// PollInterval paces status checks while the search tool waits.
	PollInterval time.Duration
}

// newSession creates a per-call search session. Sessions are not safe for
// concurrent use, so handlers never share one.
func (d *Dependencies) newSession() *search.Session {
	return search.NewSession(d.Splunk,
		search.WithLogger(d.Logger),
		search.WithMetrics(d.Metrics),
		search.WithDecoder(d.Decoder),
	)
}

// newStore creates a per-call collection store.
func (d *Dependencies) newStore() *kvstore.Store {
	return kvstore.NewStore(d.Registry, d.Logger, d.Metrics)
}

// Package search manages the lifecycle of splunkd search jobs: submission,
// completion checks, result decoding and error classification.
//
// Nothing in this package polls on its own. Callers drive completion checks,
// optionally through Wait.
package search

import (
	"context"
	"io"
	"maps"

	"github.com/raphaelgruber/splunkgo/internal/models"
)

// Options are string parameters forwarded to splunkd.
type Options map[string]string

// Query option aliases accepted by Submit when the query argument is empty.
const (
	OptQuery       = "query"
	OptSearchQuery = "search_query"
)

// Connection is the capability to create search jobs.
type Connection interface {
	SubmitQuery(ctx context.Context, query string, opts Options) (JobHandle, error)
}

// JobHandle is a reference to one remote search job.
type JobHandle interface {
	// SID returns the remote search id.
	SID() string

	// Refresh performs one status round trip and returns the job content.
	Refresh(ctx context.Context) (models.JobContent, error)

	// Results opens the result stream in the given output mode.
	Results(ctx context.Context, mode models.OutputMode, params Options) (io.ReadCloser, error)

	// Cancel requests remote cancellation.
	Cancel(ctx context.Context) error

	// Delete removes the remote job and its artifacts.
	Delete(ctx context.Context) error
}

func (o Options) clone() Options {
	out := make(Options, len(o))
	maps.Copy(out, o)
	return out
}

// queryAlias returns the first non-empty alias value and the options with
// both alias keys removed.
func (o Options) queryAlias() (string, Options) {
	rest := o.clone()
	q := rest[OptQuery]
	if q == "" {
		q = rest[OptSearchQuery]
	}
	delete(rest, OptQuery)
	delete(rest, OptSearchQuery)
	return q, rest
}

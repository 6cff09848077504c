package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/raphaelgruber/splunkgo/internal/metrics"
	"github.com/raphaelgruber/splunkgo/internal/models"
	"github.com/raphaelgruber/splunkgo/internal/results"
)

// Session creates search jobs against one connection and exposes the
// submit / poll / fetch / cancel surface for the current job.
//
// Exactly one job is current at a time. Recording a new query replaces the
// current job without cancelling it; the caller is responsible for
// disposing of the previous remote job. Every submit is appended to the
// session history. A Session is not safe for concurrent use.
type Session struct {
	conn    Connection
	logger  *slog.Logger
	decoder results.Decoder
	metrics *metrics.Collector

	current *Job
	history []models.HistoryRecord
	seq     int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithDecoder sets the scratch strategy used for result decoding.
func WithDecoder(d results.Decoder) SessionOption {
	return func(s *Session) { s.decoder = d }
}

// WithMetrics records operation timings in c.
func WithMetrics(c *metrics.Collector) SessionOption {
	return func(s *Session) { s.metrics = c }
}

// NewSession creates a session on conn. The connection is shared, not owned.
func NewSession(conn Connection, opts ...SessionOption) *Session {
	s := &Session{
		conn:    conn,
		logger:  slog.Default(),
		history: []models.HistoryRecord{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the current job, or nil.
func (s *Session) Current() *Job {
	return s.current
}

// History returns a copy of the submit audit trail, oldest first.
func (s *Session) History() []models.HistoryRecord {
	return slices.Clone(s.history)
}

func (s *Session) newJob() *Job {
	s.seq++
	j := newJob(fmt.Sprintf("search-%d", s.seq), s.conn, s.decoder, s.logger)
	j.onSubmit = func(rec models.HistoryRecord) {
		s.history = append(s.history, rec)
	}
	return j
}

// RecordQuery installs a fresh job holding query as the current job.
func (s *Session) RecordQuery(query string) *Job {
	if s.current != nil && s.current.SID() != "" {
		s.logger.Debug("replacing current job", "job", s.current.Name(), "sid", s.current.SID())
	}
	j := s.newJob()
	j.query = query
	s.current = j
	return j
}

// RecordAndSubmit records query on a fresh current job and submits it.
func (s *Session) RecordAndSubmit(ctx context.Context, query string, opts Options) (string, error) {
	s.RecordQuery(query)
	return s.StartSearch(ctx, opts)
}

// StartSearch submits the current job, creating one if none is current.
// The query comes from the query/search_query option or from RecordQuery.
func (s *Session) StartSearch(ctx context.Context, opts Options) (sid string, err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpSearchSubmit, start, err) }(time.Now())
	if s.current == nil {
		s.current = s.newJob()
	}
	return s.current.Submit(ctx, "", opts)
}

// Poll reports whether the current job has completed.
func (s *Session) Poll(ctx context.Context) (done bool, err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpSearchPoll, start, err) }(time.Now())
	if s.current == nil {
		return false, models.ErrNoOperationRunning
	}
	return s.current.IsComplete(ctx)
}

// Fetch materializes the current job's results. See Job.FetchResults.
func (s *Session) Fetch(ctx context.Context, opts Options) (ok bool, err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpSearchFetch, start, err) }(time.Now())
	if s.current == nil {
		return false, models.ErrNoOperationRunning
	}
	return s.current.FetchResults(ctx, opts)
}

// WriteResults writes the current job's raw results. See Job.WriteResults.
func (s *Session) WriteResults(ctx context.Context, dir string, mode models.OutputMode) (path string, err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpSearchWrite, start, err) }(time.Now())
	if s.current == nil {
		return "", models.ErrNoOperationRunning
	}
	return s.current.WriteResults(ctx, dir, mode)
}

// Cancel cancels the current job and vacates the current slot.
func (s *Session) Cancel(ctx context.Context) (err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpSearchCancel, start, err) }(time.Now())
	if s.current == nil {
		return models.ErrNoOperationRunning
	}
	if err := s.current.Cancel(ctx); err != nil {
		return err
	}
	s.current = nil
	return nil
}

// Delete deletes the current job and vacates the current slot.
func (s *Session) Delete(ctx context.Context) (err error) {
	defer func(start time.Time) { s.metrics.Observe(metrics.OpSearchDelete, start, err) }(time.Now())
	if s.current == nil {
		return models.ErrNoOperationRunning
	}
	if err := s.current.Delete(ctx); err != nil {
		return err
	}
	s.current = nil
	return nil
}

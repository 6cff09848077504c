package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/splunkgo/internal/models"
	"github.com/raphaelgruber/splunkgo/internal/results"
)

// Job owns one remote search job. A Job is not safe for concurrent use.
//
// Lifecycle: created empty, query attached, submitted, polled, fetched,
// then cancelled or deleted. Cancel and Delete return the job to its
// pre-submission state.
type Job struct {
	name    string
	conn    Connection
	decoder results.Decoder
	logger  *slog.Logger

	// onSubmit receives the audit record for every successful submit.
	onSubmit func(models.HistoryRecord)

	query   string
	handle  JobHandle
	content models.JobContent

	csv      *results.Table
	jsonRows *results.Rows
	jsonCols *results.Columns
	xml      [][]byte
	rows     []map[string]any
	messages models.Messages
}

func newJob(name string, conn Connection, decoder results.Decoder, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		name:     name,
		conn:     conn,
		decoder:  decoder,
		logger:   logger,
		messages: models.Messages{},
	}
}

// Name returns the job's local name.
func (j *Job) Name() string { return j.name }

// Query returns the query text, or "" before one is attached.
func (j *Job) Query() string { return j.query }

// SID returns the remote search id, or "" when no remote job is held.
func (j *Job) SID() string {
	if j.handle == nil {
		return ""
	}
	return j.handle.SID()
}

// Content returns the last job metadata snapshot.
func (j *Job) Content() models.JobContent { return j.content }

// CSV returns the decoded csv results.
func (j *Job) CSV() *results.Table { return j.csv }

// JSONRows returns the decoded json_rows results.
func (j *Job) JSONRows() *results.Rows { return j.jsonRows }

// JSONCols returns the decoded json_cols results.
func (j *Job) JSONCols() *results.Columns { return j.jsonCols }

// XML returns the decoded xml result lines.
func (j *Job) XML() [][]byte { return j.xml }

// Rows returns the data rows from the json mode decode.
func (j *Job) Rows() []map[string]any { return j.rows }

// Messages returns the severity -> text mapping from the last fetch.
func (j *Job) Messages() models.Messages { return j.messages }

// setQuery attaches q. The query is immutable once set.
func (j *Job) setQuery(q string) error {
	if j.query != "" && j.query != q {
		return fmt.Errorf("%w: job %s already holds query %q", models.ErrOperation, j.name, j.query)
	}
	j.query = q
	return nil
}

// Submit creates the remote job. An empty query falls back to the query or
// search_query option, then to a query attached earlier.
//
// Submitting an already-submitted job creates a second remote job; the
// previous one is left running.
func (j *Job) Submit(ctx context.Context, query string, opts Options) (string, error) {
	alias, rest := opts.queryAlias()
	q := query
	if q == "" {
		q = alias
	}
	if q == "" {
		q = j.query
	}
	if q == "" {
		return "", fmt.Errorf("%w: no query given (pass a query or set %q/%q)",
			models.ErrOperation, OptQuery, OptSearchQuery)
	}
	if err := j.setQuery(q); err != nil {
		return "", err
	}

	if j.handle != nil {
		j.logger.Warn("resubmitting job, previous remote job left running",
			"job", j.name, "previous_sid", j.handle.SID())
	}

	handle, err := j.conn.SubmitQuery(ctx, q, rest)
	if err != nil {
		return "", fmt.Errorf("submit query: %w", err)
	}
	j.handle = handle
	j.content = nil
	sid := handle.SID()

	if j.onSubmit != nil {
		j.onSubmit(models.HistoryRecord{
			Name:        j.name,
			Query:       q,
			SID:         sid,
			SubmittedAt: time.Now(),
		})
	}
	j.logger.Info("search submitted", "job", j.name, "sid", sid)

	// The remote job exists from here on; a failed snapshot still returns
	// its sid and the next IsComplete or FetchResults retries the refresh.
	content, err := handle.Refresh(ctx)
	if err != nil {
		j.logger.Warn("job snapshot failed", "job", j.name, "sid", sid, "error", err)
		return sid, fmt.Errorf("snapshot job %s: %w", sid, err)
	}
	j.content = content
	return sid, nil
}

// IsComplete performs a single status check and refreshes the job content.
func (j *Job) IsComplete(ctx context.Context) (bool, error) {
	if j.handle == nil {
		return false, models.ErrNoOperationRunning
	}
	content, err := j.handle.Refresh(ctx)
	if err != nil {
		return false, fmt.Errorf("refresh job %s: %w", j.handle.SID(), err)
	}
	j.content = content
	return content.IsDone(), nil
}

// FetchResults materializes every output encoding of a completed job.
// A submitted job whose content snapshot failed is refreshed first.
//
// Returns false without touching decoded results while the job is running.
// The json mode stream is decoded first and classified; an ERROR or FATAL
// message aborts the fetch before the other encodings are read. On success
// csv, json_cols, json_rows and xml are all replaced together.
func (j *Job) FetchResults(ctx context.Context, opts Options) (bool, error) {
	if j.handle == nil {
		return false, models.ErrNoOperationRunning
	}

	done, err := j.IsComplete(ctx)
	if err != nil {
		return false, err
	}
	if !done {
		return false, nil
	}

	params := opts.clone()
	if _, ok := params["count"]; !ok {
		params["count"] = "0"
	}

	var decoded *results.JSONResult
	decodeJSON := func(r io.Reader) (err error) {
		decoded, err = results.DecodeJSON(r)
		return err
	}
	if err := j.stream(ctx, models.OutputJSON, params, decodeJSON); err != nil {
		return false, err
	}
	j.messages = decoded.Messages

	if err := Classify(decoded.Messages); err != nil {
		j.logger.Warn("search reported failure", "sid", j.SID(), "error", err)
		return false, err
	}

	var (
		csvTable *results.Table
		cols     *results.Columns
		rows     *results.Rows
		xml      [][]byte
	)
	steps := []struct {
		mode   models.OutputMode
		decode func(io.Reader) error
	}{
		{models.OutputCSV, func(r io.Reader) (err error) {
			csvTable, err = results.DecodeCSV(r)
			return err
		}},
		{models.OutputJSONCols, func(r io.Reader) (err error) {
			cols, err = j.decoder.DecodeColumns(r)
			return err
		}},
		{models.OutputJSONRows, func(r io.Reader) (err error) {
			rows, err = j.decoder.DecodeRows(r)
			return err
		}},
		{models.OutputXML, func(r io.Reader) (err error) {
			xml, err = j.decoder.DecodeXML(r)
			return err
		}},
	}
	for _, step := range steps {
		if err := j.stream(ctx, step.mode, params, step.decode); err != nil {
			return false, err
		}
	}

	j.csv, j.jsonCols, j.jsonRows, j.xml = csvTable, cols, rows, xml
	j.rows = decoded.Results

	j.logger.Debug("search results fetched", "sid", j.SID(), "rows", len(j.rows))
	return true, nil
}

func (j *Job) stream(ctx context.Context, mode models.OutputMode, params Options, decode func(io.Reader) error) error {
	body, err := j.handle.Results(ctx, mode, params)
	if err != nil {
		return fmt.Errorf("fetch %s results: %w", mode, err)
	}
	defer body.Close()

	if err := decode(body); err != nil {
		return fmt.Errorf("decode %s results: %w", mode, err)
	}
	return nil
}

// WriteResults writes the raw result stream for mode to
// {dir}/results_sid_{sid}.{ext} and returns the path.
func (j *Job) WriteResults(ctx context.Context, dir string, mode models.OutputMode) (string, error) {
	if _, err := models.ParseOutputMode(string(mode)); err != nil {
		return "", err
	}
	if j.handle == nil {
		return "", models.ErrNoOperationRunning
	}

	path := filepath.Join(dir, fmt.Sprintf("results_sid_%s.%s", j.handle.SID(), mode.Extension()))

	body, err := j.handle.Results(ctx, mode, Options{"count": "0"})
	if err != nil {
		return "", fmt.Errorf("fetch %s results: %w", mode, err)
	}
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create results file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write results file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close results file: %w", err)
	}

	j.logger.Info("search results written", "sid", j.handle.SID(), "path", path)
	return path, nil
}

// Cancel requests remote cancellation and clears all local state.
func (j *Job) Cancel(ctx context.Context) error {
	if j.handle == nil {
		return models.ErrNoOperationRunning
	}
	sid := j.handle.SID()
	if err := j.handle.Cancel(ctx); err != nil {
		return fmt.Errorf("cancel job %s: %w", sid, err)
	}
	j.reset()
	j.logger.Info("search cancelled", "job", j.name, "sid", sid)
	return nil
}

// Delete removes the remote job and clears all local state.
func (j *Job) Delete(ctx context.Context) error {
	if j.handle == nil {
		return models.ErrNoOperationRunning
	}
	sid := j.handle.SID()
	if err := j.handle.Delete(ctx); err != nil {
		return fmt.Errorf("delete job %s: %w", sid, err)
	}
	j.reset()
	j.logger.Info("search deleted", "job", j.name, "sid", sid)
	return nil
}

func (j *Job) reset() {
	j.query = ""
	j.handle = nil
	j.content = nil
	j.csv = nil
	j.jsonRows = nil
	j.jsonCols = nil
	j.xml = nil
	j.rows = nil
	j.messages = models.Messages{}
}

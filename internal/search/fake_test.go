package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/raphaelgruber/splunkgo/internal/models"
)

// fakeConn is an in-memory Connection. Every submitted job shares the
// configured result bodies and done state.
type fakeConn struct {
	bodies    map[models.OutputMode]string
	done       bool
	submitErr  error
	refreshErr error

	submitted []string
	opts      []Options
	jobs      []*fakeHandle
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		done: true,
		bodies: map[models.OutputMode]string{
			models.OutputJSON:     `{"preview":false,"init_offset":0,"messages":[{"type":"INFO","text":"ok"}],"results":[{"host":"a","count":"1"},{"host":"b","count":"2"}]}`,
			models.OutputCSV:      "host,count\na,1\nb,2\n",
			models.OutputJSONRows: `{"preview":false,"init_offset":0,"messages":[],"fields":["host","count"],"rows":[["a","1"],["b","2"]]}`,
			models.OutputJSONCols: `{"preview":false,"init_offset":0,"messages":[],"fields":["host","count"],"columns":[["a","b"],["1","2"]]}`,
			models.OutputXML:      "<results>\n<result><field k=\"host\"/></result>\n</results>\n",
		},
	}
}

func (c *fakeConn) SubmitQuery(_ context.Context, query string, opts Options) (JobHandle, error) {
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	c.submitted = append(c.submitted, query)
	c.opts = append(c.opts, opts)
	h := &fakeHandle{conn: c, sid: fmt.Sprintf("sid-%d", len(c.submitted))}
	c.jobs = append(c.jobs, h)
	return h, nil
}

type fakeHandle struct {
	conn      *fakeConn
	sid       string
	cancelled bool
	deleted   bool
	refreshes int
	params    []Options
}

func (h *fakeHandle) SID() string { return h.sid }

func (h *fakeHandle) Refresh(context.Context) (models.JobContent, error) {
	h.refreshes++
	if h.conn.refreshErr != nil {
		return nil, h.conn.refreshErr
	}
	return models.JobContent{
		"sid":           h.sid,
		"isDone":        h.conn.done,
		"dispatchState": "RUNNING",
	}, nil
}

func (h *fakeHandle) Results(_ context.Context, mode models.OutputMode, params Options) (io.ReadCloser, error) {
	h.params = append(h.params, params)
	body, ok := h.conn.bodies[mode]
	if !ok {
		return nil, errors.New("no body for " + string(mode))
	}
	return io.NopCloser(bytes.NewBufferString(body)), nil
}

func (h *fakeHandle) Cancel(context.Context) error {
	h.cancelled = true
	return nil
}

func (h *fakeHandle) Delete(context.Context) error {
	h.deleted = true
	return nil
}

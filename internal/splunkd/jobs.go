package splunkd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/raphaelgruber/splunkgo/internal/models"
	"github.com/raphaelgruber/splunkgo/internal/search"
)

var _ search.Connection = (*Client)(nil)

// normalizeQuery prefixes queries that do not start with a generating
// command with "search ".
func normalizeQuery(q string) string {
	trimmed := strings.TrimSpace(q)
	if strings.HasPrefix(trimmed, "search") || strings.HasPrefix(trimmed, "|") {
		return trimmed
	}
	return "search " + trimmed
}

// SubmitQuery creates a search job.
func (c *Client) SubmitQuery(ctx context.Context, query string, opts search.Options) (search.JobHandle, error) {
	form := url.Values{}
	for k, v := range opts {
		form.Set(k, v)
	}
	form.Set("search", normalizeQuery(query))
	form.Set("output_mode", "json")

	var out struct {
		SID string `json:"sid"`
	}
	err := c.execute(ctx, request{
		method: http.MethodPost,
		path:   c.path("search", "jobs"),
		form:   form,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("create search job: %w", err)
	}
	if out.SID == "" {
		return nil, fmt.Errorf("create search job: %w: response has no sid", models.ErrOperation)
	}

	c.logger.Debug("search job created", "sid", out.SID)
	return c.Job(out.SID), nil
}

// Job returns a handle for an existing search job.
func (c *Client) Job(sid string) search.JobHandle {
	return &jobHandle{client: c, sid: sid}
}

type jobHandle struct {
	client *Client
	sid    string
}

// jobResponse is the job endpoint's atom-style JSON envelope.
type jobResponse struct {
	Entry []struct {
		Name    string            `json:"name"`
		Content models.JobContent `json:"content"`
	} `json:"entry"`
}

func (h *jobHandle) SID() string { return h.sid }

func (h *jobHandle) Refresh(ctx context.Context) (models.JobContent, error) {
	var out jobResponse
	err := h.client.execute(ctx, request{
		method: http.MethodGet,
		path:   h.client.path("search", "jobs", h.sid),
		query:  url.Values{"output_mode": {"json"}},
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Entry) == 0 {
		return nil, fmt.Errorf("%w: job %s: empty response", models.ErrOperation, h.sid)
	}
	content := out.Entry[0].Content
	if content == nil {
		content = models.JobContent{}
	}
	return content, nil
}

func (h *jobHandle) Results(ctx context.Context, mode models.OutputMode, params search.Options) (io.ReadCloser, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("output_mode", string(mode))

	resp, err := h.client.do(ctx, request{
		method: http.MethodGet,
		path:   h.client.path("search", "jobs", h.sid, "results"),
		query:  q,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (h *jobHandle) Cancel(ctx context.Context) error {
	return h.control(ctx, "cancel")
}

func (h *jobHandle) control(ctx context.Context, action string) error {
	return h.client.execute(ctx, request{
		method: http.MethodPost,
		path:   h.client.path("search", "jobs", h.sid, "control"),
		form:   url.Values{"action": {action}, "output_mode": {"json"}},
	}, nil)
}

func (h *jobHandle) Delete(ctx context.Context) error {
	return h.client.execute(ctx, request{
		method: http.MethodDelete,
		path:   h.client.path("search", "jobs", h.sid),
		query:  url.Values{"output_mode": {"json"}},
	}, nil)
}

// Package splunkd is a REST client for the splunkd management port. It
// implements the search.Connection and kvstore.Registry capabilities.
package splunkd

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/raphaelgruber/splunkgo/internal/models"
)

// Client talks to one splunkd instance. It is safe for concurrent use.
type Client struct {
	cfg        Config
	baseURL    string
	ns         string
	httpClient *http.Client
	logger     *slog.Logger
	auth       string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from the config.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sends requests to baseURL instead of scheme://host:port.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// New creates a client and authenticates. A token or session key is used
// as given; otherwise the client logs in with username and password.
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid splunkd config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.Verify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via verify=false
	}

	c := &Client{
		cfg:     cfg,
		baseURL: fmt.Sprintf("%s://%s:%d", cfg.Scheme, cfg.Host, cfg.Port),
		ns:      cfg.namespace(),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case cfg.Token != "":
		c.auth = "Bearer " + cfg.Token
	case cfg.SessionKey != "":
		c.auth = "Splunk " + cfg.SessionKey
	default:
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	logger.Debug("connected to splunkd", "url", c.baseURL, "namespace", c.ns)
	return c, nil
}

// Namespace returns the REST path prefix requests are sent under.
func (c *Client) Namespace() string { return c.ns }

// SessionKey returns the active session key, or "" for token auth.
func (c *Client) SessionKey() string {
	key, ok := strings.CutPrefix(c.auth, "Splunk ")
	if !ok {
		return ""
	}
	return key
}

func (c *Client) login(ctx context.Context) error {
	form := url.Values{
		"username":    {c.cfg.Username},
		"password":    {c.cfg.Password},
		"output_mode": {"json"},
	}
	var out struct {
		SessionKey string `json:"sessionKey"`
	}
	err := c.execute(ctx, request{
		method: http.MethodPost,
		path:   "/services/auth/login",
		form:   form,
	}, &out)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if out.SessionKey == "" {
		return fmt.Errorf("login: %w: response has no session key", models.ErrOperation)
	}
	c.auth = "Splunk " + out.SessionKey
	return nil
}

// request describes one REST call. At most one of form and body is set.
type request struct {
	method string
	path   string
	query  url.Values
	form   url.Values
	body   any
}

// do sends req and returns the response for a 2xx status. Transport errors
// are retried per the config; non-2xx responses become *models.RemoteError.
// The caller closes the body.
func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	var payload []byte
	contentType := ""
	switch {
	case req.form != nil:
		payload = []byte(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		payload = b
		contentType = "application/json"
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), uint64(max(c.cfg.Retries, 0))),
		ctx,
	)

	attempt := 0
	send := func() (*http.Response, error) {
		attempt++
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		if contentType != "" {
			httpReq.Header.Set("Content-Type", contentType)
		}
		if c.auth != "" {
			httpReq.Header.Set("Authorization", c.auth)
		}
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		return resp, nil
	}
	notify := func(err error, _ time.Duration) {
		c.logger.Warn("splunkd request failed, retrying",
			"method", req.method, "path", req.path, "attempt", attempt, "error", err)
	}

	// Only transport errors reach the policy; HTTP error statuses are
	// returned as responses and never retried.
	resp, err := backoff.RetryNotifyWithData(send, policy, notify)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, remoteError(resp)
	}
	return resp, nil
}

// execute sends req and decodes a JSON response into result, if non-nil.
func (c *Client) execute(ctx context.Context, req request, result any) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if result == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// remoteError builds a RemoteError from splunkd's messages envelope.
// Bodies that are not JSON are kept as a single message.
func remoteError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	rerr := &models.RemoteError{Status: resp.StatusCode}

	var envelope struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Messages) > 0 {
		rerr.Messages = envelope.Messages
		return rerr
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		rerr.Messages = []models.Message{{Type: "ERROR", Text: text}}
	}
	return rerr
}

func (c *Client) path(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.ns + "/" + strings.Join(escaped, "/")
}

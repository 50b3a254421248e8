package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries a per-request uuid so backend logs can be matched
// with ours.
const RequestIDHeader = "X-Request-ID"

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 16 << 20

// Client talks to one backend origin.
type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client for the backend at baseURL. The base must be an
// absolute http or https URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", baseURL)
	}

	c := &Client{
		base: u,
		http: &http.Client{},
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the origin the client posts to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// RunNotebook posts an empty body to the notebook's endpoint and decodes the
// result. The body is decoded whatever the HTTP status, since the backend
// reports failures in the JSON itself. A returned error means no result could
// be read.
func (c *Client) RunNotebook(ctx context.Context, n Notebook) (ActionResult, error) {
	if err := n.Validate(); err != nil {
		return ActionResult{}, err
	}

	var result ActionResult
	if err := c.post(ctx, n, nil, "", &result); err != nil {
		return ActionResult{}, err
	}
	return result, nil
}

// Submit posts a guided session submission. A response carrying an error
// field is returned together with a *BackendError.
func (c *Client) Submit(ctx context.Context, sub Submission) (SessionResponse, error) {
	if err := sub.Notebook.Validate(); err != nil {
		return SessionResponse{}, err
	}

	var body bytes.Buffer
	contentType, err := WriteForm(&body, sub)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("build form: %w", err)
	}

	var resp SessionResponse
	if err := c.post(ctx, sub.Notebook, &body, contentType, &resp); err != nil {
		return SessionResponse{}, err
	}
	if resp.Error != "" {
		return resp, &BackendError{Message: resp.Error}
	}
	return resp, nil
}

// ReplyURL derives the playback URL for an audio reply path reported by the
// backend. Only the last path segment is kept; it is served from /static/.
func (c *Client) ReplyURL(replyPath string) string {
	if replyPath == "" {
		return ""
	}
	name := replyPath
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return c.base.String() + "/static/" + url.PathEscape(name)
}

// FetchReply downloads an audio reply.
func (c *Client) FetchReply(ctx context.Context, replyURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, replyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch reply: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, n Notebook, body io.Reader, contentType string, out any) error {
	endpoint := c.base.JoinPath(n.Path()).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("notebook request failed",
			zap.Int("notebook", int(n)),
			zap.String("request_id", requestID),
			zap.Error(err))
		return fmt.Errorf("post %s: %w", n.Path(), err)
	}
	defer resp.Body.Close()

	c.log.Info("notebook request completed",
		zap.Int("notebook", int(n)),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

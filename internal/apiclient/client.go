// Package apiclient is the authenticated HTTP client for the clinical REST API.
//
// Every request carries the session's access token. A 401 on a request that has
// not been retried triggers exactly one refresh against the refresh endpoint and
// one re-issue of the original request; a second 401, or a failed refresh, clears
// the session and yields ErrLoginRequired.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/target/clinic-portal/internal/observability/metrics"
	"github.com/target/clinic-portal/internal/observability/statsd"
	"github.com/target/clinic-portal/internal/ports"
	"github.com/target/clinic-portal/internal/session"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultRefreshPath = "/auth/refreshToken"
	maxResponseBytes   = 10 << 20
)

// Config configures a Client.
type Config struct {
	// BaseURL is the clinical API origin, e.g. "http://localhost:8001".
	BaseURL string
	// AuthScheme prefixes the token in the Authorization header. Empty sends the raw token.
	AuthScheme string
	// RefreshPath is the GET endpoint exchanging the refresh cookie for a new access token.
	RefreshPath string
	// RefreshCookies limits which upstream cookies are tracked as the refresh credential.
	// Empty tracks every cookie the upstream sets.
	RefreshCookies []string
	// CoalesceRefresh shares one in-flight refresh among concurrent callers of the same session.
	CoalesceRefresh bool
	Timeout         time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// Client talks to the clinical API on behalf of one browser session at a time.
// It holds no per-session state and is safe for concurrent use.
type Client struct {
	base      *url.URL
	scheme    string
	cookies   []string
	http      *http.Client
	logger    *slog.Logger
	metrics   statsd.Sink
	refresher *Refresher
	now       func() time.Time
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend base url %q must be http or https", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		base:    base,
		scheme:  strings.TrimSpace(cfg.AuthScheme),
		cookies: cfg.RefreshCookies,
		http:    hc,
		logger:  logger.With("component", "apiclient"),
		metrics: cfg.Metrics,
		now:     time.Now,
	}

	refreshPath := cfg.RefreshPath
	if refreshPath == "" {
		refreshPath = defaultRefreshPath
	}
	c.refresher = newRefresher(c, refreshPath, cfg.CoalesceRefresh)
	return c, nil
}

// Refresher returns the refresh routine shared with the route guard.
func (c *Client) Refresher() *Refresher { return c.refresher }

// Request describes one call to the clinical API.
type Request struct {
	Method string
	// Path is relative to the base URL and may carry a query string.
	Path  string
	Query url.Values
	// Body is JSON-encoded when non-nil.
	Body   any
	Header http.Header
	// Anonymous requests carry no access token and are never refreshed (login, sign-up).
	Anonymous bool
}

// Response is a buffered 2xx response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}

// Do sends req with the session's token, applying the one-shot refresh-and-retry
// policy on 401. Non-2xx responses are returned as *APIError.
func (c *Client) Do(ctx context.Context, sess ports.SessionState, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body []byte
	if req.Body != nil {
		if body, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	state := attemptFresh
	for {
		resp, sendErr := c.send(ctx, sess, req, target, body, state)
		if sendErr != nil {
			return nil, sendErr
		}
		if resp.Status != http.StatusUnauthorized || req.Anonymous || sess == nil {
			return c.finish(req, target, resp)
		}

		next, retry := state.onUnauthorized()
		state = next
		if !retry {
			c.logger.WarnContext(ctx, "upstream rejected refreshed token",
				"method", req.Method, "path", target.Path, "attempt", state.String())
			sess.Clear()
			return nil, fmt.Errorf("%w: %w", ErrLoginRequired, newAPIError(req.Method, target.Path, resp.Status, resp.Body))
		}
		if refreshErr := c.refresher.refresh(ctx, sess, metrics.TriggerRetry); refreshErr != nil {
			return nil, refreshErr
		}
	}
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, sess ports.SessionState, path string, out any) error {
	return c.call(ctx, sess, Request{Method: http.MethodGet, Path: path}, out)
}

// GetQuery issues a GET with query parameters and decodes the JSON response into out.
func (c *Client) GetQuery(ctx context.Context, sess ports.SessionState, path string, query url.Values, out any) error {
	return c.call(ctx, sess, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Send issues method with a JSON body and decodes the JSON response into out (which may be nil).
func (c *Client) Send(ctx context.Context, sess ports.SessionState, method, path string, body, out any) error {
	return c.call(ctx, sess, Request{Method: method, Path: path, Body: body}, out)
}

func (c *Client) call(ctx context.Context, sess ports.SessionState, req Request, out any) error {
	resp, err := c.Do(ctx, sess, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (c *Client) resolve(path string, query url.Values) (*url.URL, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse upstream path %q: %w", path, err)
	}
	if rel.IsAbs() || rel.Host != "" {
		return nil, fmt.Errorf("upstream path %q must be relative", path)
	}

	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(rel.Path, "/")
	u.RawPath = strings.TrimRight(c.base.EscapedPath(), "/") + "/" + strings.TrimLeft(rel.EscapedPath(), "/")
	q := rel.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return &u, nil
}

func (c *Client) send(
	ctx context.Context,
	sess ports.SessionState,
	req Request,
	target *url.URL,
	body []byte,
	state attempt,
) (*Response, error) {
	method := req.Method

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if sess != nil {
		if !req.Anonymous {
			c.authorize(httpReq, sess)
		}
		if cookie := sess.RefreshCookie(); cookie != "" {
			httpReq.Header.Set("Cookie", cookie)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.EmitUpstream(c.metrics, metrics.UpstreamMetric{
			Method: method, Attempt: state.String(), Duration: time.Since(start), Err: err,
		})
		return nil, fmt.Errorf("upstream %s %s: %w", method, target.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	metrics.EmitUpstream(c.metrics, metrics.UpstreamMetric{
		Method: method, Status: resp.StatusCode, Attempt: state.String(), Duration: time.Since(start),
	})
	c.logger.DebugContext(ctx, "upstream response",
		"method", method, "path", target.Path, "status", resp.StatusCode, "attempt", state.String())

	if sess != nil {
		c.captureCookies(sess, resp.Cookies())
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// authorize sets the Authorization header from the session's token source.
// A session without a token sends the request unauthenticated and lets the upstream answer 401.
func (c *Client) authorize(r *http.Request, sess ports.SessionState) {
	tok, err := sess.Token()
	if err != nil {
		if !errors.Is(err, session.ErrNoToken) {
			c.logger.DebugContext(r.Context(), "token source failed", "error", err)
		}
		return
	}
	if c.scheme == "" {
		r.Header.Set("Authorization", tok.AccessToken)
		return
	}
	r.Header.Set("Authorization", c.scheme+" "+tok.AccessToken)
}

func (c *Client) captureCookies(sess ports.SessionState, set []*http.Cookie) {
	if len(set) == 0 {
		return
	}
	sess.SetRefreshCookie(mergeCookies(sess.RefreshCookie(), set, c.cookies, c.now()))
}

func (c *Client) finish(req Request, target *url.URL, resp *Response) (*Response, error) {
	if resp.Status >= 200 && resp.Status < 300 {
		return resp, nil
	}
	return nil, newAPIError(req.Method, target.Path, resp.Status, resp.Body)
}

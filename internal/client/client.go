// Package client is a declarative HTTP client for third-party provider APIs.
// It joins paths onto a base URL, injects credentials, classifies error
// statuses and normalizes response bodies with a mapping.Spec.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/suar-net/apios/internal/executor"
	"github.com/suar-net/apios/internal/mapping"
)

// Executor performs a single HTTP call. *executor.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, req *executor.Request) (*executor.Response, error)
}

// QueryParam is one query string pair. Params are encoded in slice order.
type QueryParam struct {
	Key   string
	Value string
}

// Options tune a single call. A nil *Options is valid.
type Options struct {
	Query []QueryParam
	// Headers override both the default headers and the auth header.
	Headers map[string]string
	// Mapping is applied to the body of successful responses.
	Mapping mapping.Spec
	// Timeout overrides the client timeout for this call.
	Timeout time.Duration
	// AcceptErrorStatus returns responses with status >= 400 instead of an
	// *ApiError. Their body is left unmapped.
	AcceptErrorStatus bool
}

// Request is the full descriptor of a call, as accepted by Do.
type Request struct {
	Method string
	Path   string
	Body   any
	Options
}

// Response is the envelope returned by every call.
type Response struct {
	Data     any               `json:"data"`
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers"`
	Duration time.Duration     `json:"-"`
}

// Client is safe for concurrent use. Its configuration is copied at
// construction and never changes; build a new Client to reconfigure.
type Client struct {
	config  Config
	baseURL *url.URL
	exec    Executor
	logger  zerolog.Logger
	metrics bool
	now     func() time.Time
}

// Option configures a Client during construction.
type Option func(*Client)

// WithExecutor replaces the HTTP executor, mostly for tests.
func WithExecutor(e Executor) Option {
	return func(c *Client) {
		if e != nil {
			c.exec = e
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics toggles the prometheus collectors. Enabled by default.
func WithMetrics(enabled bool) Option {
	return func(c *Client) {
		c.metrics = enabled
	}
}

// WithClock overrides the time source used for signed tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New validates cfg and returns a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}

	c := &Client{
		config:  cfg.clone(),
		baseURL: baseURL,
		logger:  zerolog.Nop(),
		metrics: true,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = executor.New(executor.WithLogger(c.logger))
	}
	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, opts *Options) (*Response, error) {
	return c.Do(ctx, newRequest(http.MethodGet, path, nil, opts))
}

// Post performs a POST request with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body any, opts *Options) (*Response, error) {
	return c.Do(ctx, newRequest(http.MethodPost, path, body, opts))
}

// Put performs a PUT request with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body any, opts *Options) (*Response, error) {
	return c.Do(ctx, newRequest(http.MethodPut, path, body, opts))
}

// Patch performs a PATCH request with body encoded as JSON.
func (c *Client) Patch(ctx context.Context, path string, body any, opts *Options) (*Response, error) {
	return c.Do(ctx, newRequest(http.MethodPatch, path, body, opts))
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts *Options) (*Response, error) {
	return c.Do(ctx, newRequest(http.MethodDelete, path, nil, opts))
}

func newRequest(method, path string, body any, opts *Options) *Request {
	req := &Request{Method: method, Path: path, Body: body}
	if opts != nil {
		req.Options = *opts
	}
	return req
}

// Do performs req and returns the envelope. Responses with status >= 400
// become *ApiError unless AcceptErrorStatus is set.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	header, err := c.buildHeader(req.Headers)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}

	start := time.Now()
	res, err := c.exec.Execute(ctx, &executor.Request{
		Method:  method,
		URL:     target,
		Header:  header,
		Body:    req.Body,
		Timeout: timeout,
	})
	c.observe(method, start, res, err)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Data:     res.Data,
		Status:   res.Status,
		Headers:  res.Headers,
		Duration: res.Duration,
	}

	if resp.Status >= http.StatusBadRequest {
		c.logger.Debug().Str("method", method).Str("path", req.Path).Int("status", resp.Status).Msg("provider returned error status")
		if req.AcceptErrorStatus {
			return resp, nil
		}
		return nil, &ApiError{
			Method:  method,
			Path:    req.Path,
			Status:  resp.Status,
			Body:    resp.Data,
			Headers: resp.Headers,
		}
	}

	if len(req.Mapping) > 0 {
		mapped, err := mapping.Map(resp.Data, req.Mapping)
		if err != nil {
			return nil, err
		}
		resp.Data = mapped
	}
	return resp, nil
}

// buildURL joins path onto the base URL and appends query params in order.
func (c *Client) buildURL(path string, query []QueryParam) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", fmt.Errorf("path %q must be relative to the base URL", path)
	}

	u := *c.baseURL
	if ref.Path != "" {
		// Join the escaped forms so encoded separators such as %2F survive.
		escaped := strings.TrimRight(u.EscapedPath(), "/") + "/" + strings.TrimLeft(ref.EscapedPath(), "/")
		unescaped, err := url.PathUnescape(escaped)
		if err != nil {
			return "", fmt.Errorf("invalid path %q: %w", path, err)
		}
		u.Path = unescaped
		u.RawPath = escaped
	}

	parts := make([]string, 0, 2+len(query))
	if u.RawQuery != "" {
		parts = append(parts, u.RawQuery)
	}
	if ref.RawQuery != "" {
		parts = append(parts, ref.RawQuery)
	}
	for _, p := range query {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	u.RawQuery = strings.Join(parts, "&")
	u.Fragment = ""

	return u.String(), nil
}

// buildHeader layers the auth header, default headers and per-call headers,
// later layers winning.
func (c *Client) buildHeader(callHeaders map[string]string) (http.Header, error) {
	h := make(http.Header)
	if err := c.applyAuth(h); err != nil {
		return nil, err
	}
	for k, v := range c.config.DefaultHeaders {
		h.Set(k, v)
	}
	for k, v := range callHeaders {
		h.Set(k, v)
	}
	return h, nil
}

func (c *Client) observe(method string, start time.Time, res *executor.Response, err error) {
	if !c.metrics {
		return
	}
	outcome := "error"
	switch {
	case err == nil && res != nil:
		outcome = strconv.Itoa(res.Status)
	case IsTimeout(err):
		outcome = "timeout"
	case IsNetwork(err):
		outcome = "network_error"
	}
	requestsTotal.WithLabelValues(method, outcome).Inc()
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

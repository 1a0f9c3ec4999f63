// Package executor performs single outbound HTTP calls with a per-call
// timeout and returns the parsed response body.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/suar-net/apios/internal/mapping"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10 MB
)

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Request describes one outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	// Body is sent as JSON unless it is already []byte or json.RawMessage.
	Body any
	// Timeout bounds the wait for response headers. Zero uses the executor default.
	Timeout time.Duration
}

// Response is the result of a call. Data holds the decoded JSON body when
// the response is JSON and the raw text otherwise.
type Response struct {
	Data     any
	Status   int
	Headers  map[string]string
	Duration time.Duration
}

// Executor runs requests over a shared http.Client. It holds no per-call
// state and is safe for concurrent use.
type Executor struct {
	httpClient     *http.Client
	defaultTimeout time.Duration
	maxBodySize    int64
	logger         zerolog.Logger
	// denyDial vetoes connections by resolved address; nil allows all.
	denyDial func(ip net.IP, port string) bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the underlying http.Client. Its Timeout field
// should be left at zero; per-call timeouts are applied by the executor.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// WithDefaultTimeout sets the timeout used when a request has none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithMaxBodySize limits how many response bytes are read.
func WithMaxBodySize(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxBodySize = n
		}
	}
}

// WithLogger sets the logger used for per-call debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// New returns an Executor with a pooled transport.
func New(opts ...Option) *Executor {
	e := &Executor{
		defaultTimeout: DefaultTimeout,
		maxBodySize:    DefaultMaxBodySize,
		logger:         zerolog.Nop(),
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
			Control:   e.controlDial,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	e.httpClient = &http.Client{Transport: transport}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute performs the request. Non-2xx statuses are returned as normal
// responses; only transport failures, timeouts and unreadable bodies are errors.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if !allowedMethods[method] {
		return nil, fmt.Errorf("%w: unsupported HTTP method %q", ErrInvalidRequest, req.Method)
	}
	parsedURL, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse URL: %v", ErrInvalidRequest, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: invalid URL scheme %q", ErrInvalidRequest, parsedURL.Scheme)
	}
	logURL := redactURL(parsedURL)

	bodyReader, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode body: %v", ErrInvalidRequest, err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	// The deadline only covers the wait for response headers; the timer is
	// stopped once they arrive and the body is read under the caller's ctx.
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, parsedURL.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create http request: %v", ErrInvalidRequest, err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if bodyReader != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	startTime := time.Now()
	e.logger.Debug().Str("method", method).Str("url", logURL).Dur("timeout", timeout).Msg("outbound request")

	httpResp, err := e.httpClient.Do(httpReq)
	headersInTime := timer.Stop()
	if err != nil {
		return nil, e.classifyError(ctx, err, method, logURL, timeout, timedOut.Load())
	}
	defer httpResp.Body.Close()
	if !headersInTime {
		return nil, &TimeoutError{Method: method, URL: logURL, After: timeout, Err: context.DeadlineExceeded}
	}

	resp, err := e.readResponse(httpResp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if _, tooLarge := err.(sizeError); tooLarge {
			return nil, fmt.Errorf("%s %s: %w", method, logURL, ErrBodyTooLarge)
		}
		return nil, &NetworkError{Method: method, URL: logURL, Err: err}
	}
	resp.Duration = time.Since(startTime)

	e.logger.Debug().
		Str("method", method).
		Str("url", logURL).
		Int("status", resp.Status).
		Dur("duration", resp.Duration).
		Msg("outbound response")

	return resp, nil
}

func (e *Executor) classifyError(ctx context.Context, err error, method, logURL string, timeout time.Duration, timedOut bool) error {
	if timedOut {
		return &TimeoutError{Method: method, URL: logURL, After: timeout, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrPrivateTarget) {
		e.logger.Warn().Str("method", method).Str("url", logURL).Msg("blocked call to private address")
		return fmt.Errorf("%w: %s %s: %w", ErrInvalidRequest, method, logURL, ErrPrivateTarget)
	}
	e.logger.Debug().Err(err).Str("method", method).Str("url", logURL).Msg("outbound request failed")
	return &NetworkError{Method: method, URL: logURL, Err: unwrapURLError(err)}
}

type sizeError struct{ limit int64 }

func (s sizeError) Error() string {
	return fmt.Sprintf("body larger than %d bytes", s.limit)
}

func (e *Executor) readResponse(httpResp *http.Response) (*Response, error) {
	limited := &io.LimitedReader{R: httpResp.Body, N: e.maxBodySize + 1}
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > e.maxBodySize {
		return nil, sizeError{limit: e.maxBodySize}
	}

	resp := &Response{
		Status:  httpResp.StatusCode,
		Headers: flattenHeaders(httpResp.Header),
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return resp, nil
	}
	if isJSON(httpResp.Header.Get("Content-Type")) {
		data, err := mapping.Decode(body)
		if err == nil {
			resp.Data = data
			return resp, nil
		}
		e.logger.Debug().Err(err).Int("status", httpResp.StatusCode).Msg("response declared JSON but did not parse; returning text")
	}
	resp.Data = string(body)
	return resp, nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(b) == 0 {
			return nil, nil
		}
		return bytes.NewReader(b), nil
	case json.RawMessage:
		if len(b) == 0 {
			return nil, nil
		}
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}

func isJSON(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}

// redactURL drops the query string, which frequently carries credentials.
func redactURL(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.User = nil
	return c.String()
}

func unwrapURLError(err error) error {
	if uerr, ok := err.(*url.Error); ok && uerr.Err != nil {
		return uerr.Err
	}
	return err
}

package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suar-net/apios/internal/mapping"
)

// blockingTransport never answers; it records when the request context is
// cancelled, which is how http.Client aborts the underlying connection.
type blockingTransport struct {
	mu      sync.Mutex
	aborted chan struct{}
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{aborted: make(chan struct{})}
}

func (b *blockingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.aborted:
	default:
		close(b.aborted)
	}
	return nil, req.Context().Err()
}

func TestExecute_JSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "v", r.Header.Get("X-Test"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"q":"hi"}`, string(body))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"user_id":1,"user_name":"A"}`))
	}))
	defer server.Close()

	exec := New()
	resp, err := exec.Execute(context.Background(), &Request{
		Method: "post",
		URL:    server.URL + "/users",
		Header: http.Header{"X-Test": []string{"v"}},
		Body:   map[string]string{"q": "hi"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "a, b", resp.Headers["X-Multi"])

	obj, ok := resp.Data.(*mapping.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"user_id", "user_name"}, obj.Keys())
}

func TestExecute_TextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(`{"looks":"like json"}`))
	}))
	defer server.Close()

	resp, err := New().Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, `{"looks":"like json"}`, resp.Data)
}

func TestExecute_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := New().Execute(context.Background(), &Request{Method: http.MethodDelete, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Nil(t, resp.Data)
}

func TestExecute_ErrorStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"missing"}`))
	}))
	defer server.Close()

	resp, err := New().Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestExecute_KeepsCallerContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "raw", string(body))
	}))
	defer server.Close()

	_, err := New().Execute(context.Background(), &Request{
		Method: http.MethodPut,
		URL:    server.URL,
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   []byte("raw"),
	})
	require.NoError(t, err)
}

func TestExecute_NoBodyNoContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"))
	}))
	defer server.Close()

	_, err := New().Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
}

func TestExecute_TimeoutAbortsTransport(t *testing.T) {
	transport := newBlockingTransport()
	exec := New(WithHTTPClient(&http.Client{Transport: transport}))

	timeout := 50 * time.Millisecond
	start := time.Now()
	_, err := exec.Execute(context.Background(), &Request{
		Method:  http.MethodGet,
		URL:     "http://upstream.invalid/slow?api_key=secret",
		Timeout: timeout,
	})
	elapsed := time.Since(start)

	var tErr *TimeoutError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, timeout, tErr.After)
	assert.True(t, tErr.Timeout())
	assert.NotContains(t, tErr.Error(), "secret")
	assert.Less(t, elapsed, timeout+500*time.Millisecond)

	select {
	case <-transport.aborted:
	case <-time.After(time.Second):
		t.Fatal("transport was not aborted")
	}
}

func TestExecute_TimeoutAgainstSlowServer(t *testing.T) {
	disconnected := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(disconnected)
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	_, err := New().Execute(context.Background(), &Request{
		Method:  http.MethodGet,
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})

	var tErr *TimeoutError
	require.ErrorAs(t, err, &tErr)

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("server still holds the connection")
	}
}

func TestExecute_IndependentTimeouts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	exec := New()
	var wg sync.WaitGroup
	var slowErr, fastErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, slowErr = exec.Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL + "/slow", Timeout: 30 * time.Millisecond})
	}()
	go func() {
		defer wg.Done()
		_, fastErr = exec.Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL + "/fast", Timeout: time.Second})
	}()
	wg.Wait()

	var tErr *TimeoutError
	assert.ErrorAs(t, slowErr, &tErr)
	assert.NoError(t, fastErr)
}

func TestExecute_NetworkError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = New().Execute(context.Background(), &Request{Method: http.MethodGet, URL: "http://" + addr})

	var nErr *NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestExecute_CallerCancellation(t *testing.T) {
	transport := newBlockingTransport()
	exec := New(WithHTTPClient(&http.Client{Transport: transport}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := exec.Execute(ctx, &Request{Method: http.MethodGet, URL: "http://upstream.invalid", Timeout: time.Minute})
	assert.ErrorIs(t, err, context.Canceled)

	var tErr *TimeoutError
	assert.False(t, errors.As(err, &tErr))
}

func TestExecute_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	_, err := New(WithMaxBodySize(16)).Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestExecute_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
	}{
		{"bad method", &Request{Method: "TRACE", URL: "http://example.com"}},
		{"bad scheme", &Request{Method: http.MethodGet, URL: "ftp://example.com"}},
		{"unparsable url", &Request{Method: http.MethodGet, URL: "http://[::1"}},
		{"unencodable body", &Request{Method: http.MethodPost, URL: "http://example.com", Body: make(chan int)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Execute(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestExecute_MalformedJSONFallsBackToText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"broken":`))
	}))
	defer server.Close()

	resp, err := New().Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, `{"broken":`, resp.Data)
}

func TestExecute_JSONBodyWithEscapedKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"C:\\qdir":1,"a\\nb":2}`))
	}))
	defer server.Close()

	resp, err := New().Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)

	obj, ok := resp.Data.(*mapping.Object)
	require.True(t, ok, "got %T", resp.Data)
	assert.Equal(t, []string{`C:\qdir`, `a\nb`}, obj.Keys())
}

func TestExecute_InvalidJSONNumberFallsBackToText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"a":01}`))
	}))
	defer server.Close()

	resp, err := New().Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, `{"a":01}`, resp.Data)

	_, err = json.Marshal(resp.Data)
	assert.NoError(t, err)
}

func TestExecute_RawMessageBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	}))
	defer server.Close()

	_, err := New().Execute(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    server.URL,
		Body:   json.RawMessage(`{"a":1}`),
	})
	require.NoError(t, err)
}

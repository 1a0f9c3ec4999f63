package executor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.0.9", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fd00::1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"2606:4700:4700::1111", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPrivateIP(net.ParseIP(tt.ip)), tt.ip)
	}
}

func TestExecute_BlocksPrivateTarget(t *testing.T) {
	var hit atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
	}))
	defer server.Close()

	_, err := New(WithBlockPrivateTargets(true)).Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	assert.ErrorIs(t, err, ErrPrivateTarget)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.False(t, hit.Load())

	resp, err := New(WithBlockPrivateTargets(false)).Execute(context.Background(), &Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, hit.Load())
}

func TestExecute_BlocksRedirectToPrivateTarget(t *testing.T) {
	var internalHit atomic.Bool
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		internalHit.Store(true)
		w.Write([]byte("secret"))
	}))
	defer internal.Close()

	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+"/admin", http.StatusFound)
	}))
	defer public.Close()

	internalURL, err := url.Parse(internal.URL)
	require.NoError(t, err)

	// Both servers listen on loopback; treat only the internal one as private.
	exec := New(WithBlockPrivateTargets(true))
	exec.denyDial = func(_ net.IP, port string) bool { return port == internalURL.Port() }

	_, err = exec.Execute(context.Background(), &Request{Method: http.MethodGet, URL: public.URL})
	assert.ErrorIs(t, err, ErrPrivateTarget)
	assert.False(t, internalHit.Load())

	var nErr *NetworkError
	assert.False(t, errors.As(err, &nErr), "blocked dials are not retryable network errors")
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suar-net/apios/internal/client"
	"github.com/suar-net/apios/internal/executor"
	"github.com/suar-net/apios/internal/service"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", fmt.Errorf("%w: bad path", client.ErrInvalidRequest), http.StatusBadRequest},
		{"invalid input", fmt.Errorf("%w: mapping", service.ErrInvalidInput), http.StatusBadRequest},
		{"body too large", fmt.Errorf("read: %w", executor.ErrBodyTooLarge), http.StatusBadGateway},
		{"email taken", service.ErrEmailTaken, http.StatusConflict},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", fmt.Errorf("call: %w", context.Canceled), statusClientClosedRequest},
		{"unknown", errors.New("db exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := statusFor(tt.err)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestStatusFor_HidesInternalErrors(t *testing.T) {
	_, body := statusFor(errors.New("pq: password authentication failed"))
	assert.Equal(t, "An internal error occurred", body.Error)
}

func TestRecover(t *testing.T) {
	h := Recover(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

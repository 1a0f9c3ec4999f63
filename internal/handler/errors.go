package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/suar-net/apios/internal/client"
	"github.com/suar-net/apios/internal/executor"
	"github.com/suar-net/apios/internal/service"
)

// statusClientClosedRequest is used when the caller went away mid-request.
const statusClientClosedRequest = 499

type errorBody struct {
	Error string `json:"error"`
	// Status and Body carry the provider's reply for upstream API errors.
	Status int `json:"status,omitempty"`
	Body   any `json:"body,omitempty"`
	// Path locates the failing mapping rule.
	Path string `json:"path,omitempty"`
}

// statusFor maps service and client errors to an HTTP status and body.
// Unknown errors become a generic 500.
func statusFor(err error) (int, errorBody) {
	var (
		apiErr     *client.ApiError
		mappingErr *client.MappingError
	)
	switch {
	case client.IsTimeout(err):
		return http.StatusGatewayTimeout, errorBody{Error: err.Error()}
	case client.IsNetwork(err), errors.Is(err, executor.ErrBodyTooLarge):
		return http.StatusBadGateway, errorBody{Error: err.Error()}
	case errors.As(err, &apiErr):
		return apiErr.Status, errorBody{Error: apiErr.Error(), Status: apiErr.Status, Body: apiErr.Body}
	case errors.As(err, &mappingErr):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Path: mappingErr.Path}
	case errors.Is(err, client.ErrInvalidRequest), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Error: err.Error()}
	case errors.Is(err, service.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Error: err.Error()}
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, errorBody{Error: "request cancelled"}
	}
	return http.StatusInternalServerError, errorBody{Error: "An internal error occurred"}
}

// respondWithServiceError logs server-side failures and writes the mapped error.
func respondWithServiceError(w http.ResponseWriter, logger zerolog.Logger, err error, msg string) {
	code, body := statusFor(err)
	if code >= http.StatusInternalServerError && code != http.StatusBadGateway && code != http.StatusGatewayTimeout {
		logger.Error().Err(err).Msg(msg)
	}
	respondWithJson(w, code, body)
}

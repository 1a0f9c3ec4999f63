package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/suar-net/apios/internal/model"
	"github.com/suar-net/apios/internal/service"
)

type InvokeHandler struct {
	invokeService service.IInvokeService
	logger        zerolog.Logger
}

func NewInvokeHandler(s service.IInvokeService, l zerolog.Logger) *InvokeHandler {
	return &InvokeHandler{
		invokeService: s,
		logger:        l,
	}
}

// Invoke calls the provider and returns the envelope. Provider failures
// are mapped by statusFor; an upstream error status is passed through.
func (h *InvokeHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := providerID(w, r)
	if !ok {
		return
	}

	var req model.DTOInvokeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.invokeService.Invoke(r.Context(), user.ID, id, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "provider invocation failed")
		return
	}
	respondWithJson(w, http.StatusOK, resp)
}

func (h *InvokeHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	calls, err := h.invokeService.History(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to load history")
		return
	}
	respondWithJson(w, http.StatusOK, calls)
}

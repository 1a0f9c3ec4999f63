package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/suar-net/apios/internal/model"
	"github.com/suar-net/apios/internal/service"
)

type ProviderHandler struct {
	providerService service.IProviderService
	logger          zerolog.Logger
}

func NewProviderHandler(s service.IProviderService, l zerolog.Logger) *ProviderHandler {
	return &ProviderHandler{
		providerService: s,
		logger:          l,
	}
}

func (h *ProviderHandler) Presets(w http.ResponseWriter, r *http.Request) {
	respondWithJson(w, http.StatusOK, h.providerService.Presets())
}

func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	providers, err := h.providerService.List(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to list providers")
		return
	}

	out := make([]model.DTOProviderResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, model.NewDTOProviderResponse(p))
	}
	respondWithJson(w, http.StatusOK, out)
}

func (h *ProviderHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.DTOProviderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.providerService.Create(r.Context(), user.ID, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to create provider")
		return
	}
	respondWithJson(w, http.StatusCreated, model.NewDTOProviderResponse(p))
}

func (h *ProviderHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := providerID(w, r)
	if !ok {
		return
	}

	p, err := h.providerService.Get(r.Context(), user.ID, id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to load provider")
		return
	}
	respondWithJson(w, http.StatusOK, model.NewDTOProviderResponse(p))
}

func (h *ProviderHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := providerID(w, r)
	if !ok {
		return
	}

	var req model.DTOProviderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.providerService.Update(r.Context(), user.ID, id, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to update provider")
		return
	}
	respondWithJson(w, http.StatusOK, model.NewDTOProviderResponse(p))
}

func (h *ProviderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := providerID(w, r)
	if !ok {
		return
	}

	if err := h.providerService.Delete(r.Context(), user.ID, id); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to delete provider")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func providerID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid provider id")
		return 0, false
	}
	return id, true
}

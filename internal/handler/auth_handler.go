package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/suar-net/apios/internal/model"
	"github.com/suar-net/apios/internal/service"
)

type AuthHandler struct {
	authService service.IAuthService
	logger      zerolog.Logger
}

func NewAuthHandler(s service.IAuthService, l zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: s,
		logger:      l,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.DTOUserRegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to register user")
		return
	}

	respondWithJson(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.DTOLoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to log in user")
		return
	}

	respondWithJson(w, http.StatusOK, resp)
}

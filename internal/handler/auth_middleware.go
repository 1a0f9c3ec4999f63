package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/suar-net/apios/internal/model"
	"github.com/suar-net/apios/internal/service"
)

type contextKey string

const userContextKey = contextKey("user")

type AuthMiddleware struct {
	authService service.IAuthService
	logger      zerolog.Logger
}

func NewAuthMiddleware(s service.IAuthService, l zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: s,
		logger:      l,
	}
}

// Authenticate requires a valid "Bearer <jwt>" Authorization header and
// stores the claims in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			respondWithError(w, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := m.authService.ValidateToken(r.Context(), tokenString)
		if err != nil {
			m.logger.Debug().Err(err).Msg("rejected token")
			if errors.Is(err, service.ErrTokenExpired) {
				respondWithError(w, http.StatusUnauthorized, "Token has expired")
			} else {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
			}
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserFromContext(ctx context.Context) (*model.Claims, bool) {
	claims, ok := ctx.Value(userContextKey).(*model.Claims)
	return claims, ok
}

// requireUser returns the authenticated user's claims or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (*model.Claims, bool) {
	claims, ok := GetUserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
	}
	return claims, ok
}

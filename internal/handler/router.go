package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/suar-net/apios/internal/service"
)

// Services bundles what the router needs from the service layer.
type Services struct {
	Auth     service.IAuthService
	Provider service.IProviderService
	Invoke   service.IInvokeService
}

// SetupRouter creates the main Chi router for the application.
func SetupRouter(s Services, db Pinger, corsOrigins []string, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(logger))
	r.Use(Recover(logger))

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           300,
	}))

	healthHandler := NewHealthHandler(db, logger)
	authHandler := NewAuthHandler(s.Auth, logger)
	authMiddleware := NewAuthMiddleware(s.Auth, logger)
	providerHandler := NewProviderHandler(s.Provider, logger)
	invokeHandler := NewInvokeHandler(s.Invoke, logger)

	r.Get("/healthz", healthHandler.Check)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/presets", providerHandler.Presets)

			r.Route("/providers", func(r chi.Router) {
				r.Get("/", providerHandler.List)
				r.Post("/", providerHandler.Create)
				r.Get("/{id}", providerHandler.Get)
				r.Put("/{id}", providerHandler.Update)
				r.Delete("/{id}", providerHandler.Delete)
				r.Post("/{id}/invoke", invokeHandler.Invoke)
			})

			r.Get("/history", invokeHandler.History)
		})
	})

	return r
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

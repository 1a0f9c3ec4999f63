package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger
	logger zerolog.Logger
}

func NewHealthHandler(db Pinger, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error().Err(err).Msg("health check failed: database connection error")
		respondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
		return
	}

	respondWithJson(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Service is healthy and database connection is active",
	})
}

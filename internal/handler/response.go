package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

// respondWithError writes {"error": message}.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJson(w, code, map[string]string{"error": message})
}

func respondWithJson(w http.ResponseWriter, code int, payload interface{}) {
	dat, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(dat)
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, ValidationError(err))
		return false
	}
	return true
}

package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           int       `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Provider is a stored third-party API configuration owned by one user.
type Provider struct {
	ID         int    `json:"id"`
	UserID     int    `json:"user_id"`
	Name       string `json:"name"`
	PresetID   string `json:"preset_id,omitempty"`
	BaseURL    string `json:"base_url"`
	AuthType   string `json:"auth_type"`
	AuthHeader string `json:"auth_header,omitempty"`
	// Credential is the bearer token, API key or "id.secret" pair.
	Credential     string            `json:"-"`
	TimeoutMs      int               `json:"timeout_ms"`
	DefaultHeaders map[string]string `json:"default_headers"`
	DefaultPath    string            `json:"default_path,omitempty"`
	// Mapping is the default mapping document applied to invoke responses.
	Mapping   json.RawMessage `json:"mapping,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Error kinds recorded on CallRecord.
const (
	CallErrorNone     = ""
	CallErrorTimeout  = "timeout"
	CallErrorNetwork  = "network"
	CallErrorAPI      = "api"
	CallErrorMapping  = "mapping"
	CallErrorInvalid  = "invalid"
	CallErrorCanceled = "canceled"
	CallErrorInternal = "internal"
)

// CallRecord is one entry of the invoke history.
type CallRecord struct {
	ID         uuid.UUID `json:"id"`
	UserID     int       `json:"user_id"`
	ProviderID int       `json:"provider_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     *int      `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

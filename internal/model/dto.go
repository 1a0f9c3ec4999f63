package model

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type DTOUserRegisterRequest struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type DTOLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type DTOLoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type Claims struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// DTOProviderRequest creates or replaces a provider. Fields left empty are
// filled from the preset named by PresetID.
type DTOProviderRequest struct {
	Name           string            `json:"name" validate:"required,max=100"`
	PresetID       string            `json:"preset_id,omitempty"`
	BaseURL        string            `json:"base_url" validate:"omitempty,url"`
	AuthType       string            `json:"auth_type" validate:"omitempty,oneof=none bearer apiKey zhipu"`
	AuthHeader     string            `json:"auth_header,omitempty"`
	Credential     string            `json:"credential,omitempty"`
	TimeoutMs      int               `json:"timeout_ms" validate:"gte=0,lte=90000"`
	DefaultHeaders map[string]string `json:"default_headers,omitempty"`
	DefaultPath    string            `json:"default_path,omitempty"`
	Mapping        json.RawMessage   `json:"mapping,omitempty"`
}

type DTOProviderResponse struct {
	*Provider
	HasCredential bool `json:"has_credential"`
}

func NewDTOProviderResponse(p *Provider) DTOProviderResponse {
	return DTOProviderResponse{Provider: p, HasCredential: p.Credential != ""}
}

type DTOQueryParam struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

// DTOInvokeRequest is one call made through a stored provider.
type DTOInvokeRequest struct {
	Method  string            `json:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE get post put patch delete"`
	Path    string            `json:"path"`
	Query   []DTOQueryParam   `json:"query,omitempty" validate:"dive"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	// Mapping overrides the provider's default mapping document.
	Mapping json.RawMessage `json:"mapping,omitempty"`
	// MappingYAML is an alternative to Mapping.
	MappingYAML string `json:"mapping_yaml,omitempty"`
	// Raw skips mapping altogether.
	Raw               bool `json:"raw,omitempty"`
	TimeoutMs         int  `json:"timeout_ms" validate:"gte=0,lte=90000"`
	AcceptErrorStatus bool `json:"accept_error_status,omitempty"`
	Retries           int  `json:"retries" validate:"gte=0,lte=5"`
}

type DTOInvokeResponse struct {
	CallID   string            `json:"call_id"`
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers"`
	Data     any               `json:"data"`
	Duration time.Duration     `json:"-"`
	// DurationMs mirrors Duration for clients.
	DurationMs int64 `json:"duration_ms"`
}

package client

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AuthType selects how credentials are attached to outgoing requests.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "apiKey"
	// AuthZhipu signs a short-lived HS256 JWT from an "id.secret" API key,
	// the scheme used by Zhipu's open platform.
	AuthZhipu AuthType = "zhipu"
)

// DefaultAPIKeyHeader is used for AuthAPIKey when no header name is given.
const DefaultAPIKeyHeader = "X-API-Key"

// Auth describes the credentials of a client.
type Auth struct {
	Type AuthType
	// Token is the bearer token (AuthBearer).
	Token string
	// HeaderName is the header carrying the key (AuthAPIKey).
	HeaderName string
	// Key is the API key (AuthAPIKey) or the "id.secret" pair (AuthZhipu).
	Key string
}

// Config is the immutable configuration of a Client.
type Config struct {
	// BaseURL is prefixed to every request path (required).
	BaseURL string
	// Timeout is the default per-call timeout. Zero uses the executor default.
	Timeout time.Duration
	// DefaultHeaders are sent with every request and override the auth header.
	DefaultHeaders map[string]string
	Auth           Auth
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base_url must include host")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", c.Timeout)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("invalid auth configuration: %w", err)
	}
	return nil
}

// Validate checks that the fields required by the auth type are present.
func (a *Auth) Validate() error {
	switch a.Type {
	case "", AuthNone:
		return nil
	case AuthBearer:
		if a.Token == "" {
			return fmt.Errorf("token is required for bearer auth")
		}
	case AuthAPIKey:
		if a.Key == "" {
			return fmt.Errorf("key is required for apiKey auth")
		}
	case AuthZhipu:
		id, secret, ok := strings.Cut(a.Key, ".")
		if !ok || id == "" || secret == "" {
			return fmt.Errorf("zhipu auth key must have the form <id>.<secret>")
		}
	default:
		return fmt.Errorf("invalid auth type: %q (must be none, bearer, apiKey or zhipu)", a.Type)
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	if c.DefaultHeaders != nil {
		out.DefaultHeaders = make(map[string]string, len(c.DefaultHeaders))
		for k, v := range c.DefaultHeaders {
			out.DefaultHeaders[k] = v
		}
	}
	return out
}

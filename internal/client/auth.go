package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// zhipuTokenTTL is the lifetime of the JWTs generated for AuthZhipu.
const zhipuTokenTTL = 3 * time.Minute

// applyAuth writes the auth header into h. It runs before default and
// per-call headers are applied, so either can replace it.
func (c *Client) applyAuth(h http.Header) error {
	auth := c.config.Auth

	switch auth.Type {
	case "", AuthNone:
	case AuthBearer:
		h.Set("Authorization", "Bearer "+auth.Token)
	case AuthAPIKey:
		name := auth.HeaderName
		if name == "" {
			name = DefaultAPIKeyHeader
		}
		h.Set(name, auth.Key)
	case AuthZhipu:
		token, err := ZhipuToken(auth.Key, c.now(), zhipuTokenTTL)
		if err != nil {
			return err
		}
		h.Set("Authorization", token)
	default:
		return fmt.Errorf("unsupported auth type: %q", auth.Type)
	}
	return nil
}

// ZhipuToken signs the JWT expected by Zhipu's API from an "id.secret" key.
// Timestamps are in milliseconds and the header carries sign_type=SIGN.
func ZhipuToken(apiKey string, now time.Time, ttl time.Duration) (string, error) {
	id, secret, ok := strings.Cut(apiKey, ".")
	if !ok || id == "" || secret == "" {
		return "", fmt.Errorf("zhipu api key must have the form <id>.<secret>")
	}

	nowMs := now.UnixMilli()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"api_key":   id,
		"exp":       nowMs + ttl.Milliseconds(),
		"timestamp": nowMs,
	})
	token.Header["sign_type"] = "SIGN"

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign zhipu token: %w", err)
	}
	return signed, nil
}

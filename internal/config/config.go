package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every variable, e.g. APIOS_SERVER_PORT or APIOS_DB_DSN.
const EnvPrefix = "APIOS"

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Auth    AuthConfig
	Log     LogConfig
	Gateway GatewayConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"90s"`
	IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	// CORSOrigins is a comma separated list.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

type DBConfig struct {
	Host    string `envconfig:"DB_HOST" default:"localhost"`
	Port    int    `envconfig:"DB_PORT" default:"5432"`
	User    string `envconfig:"DB_USER" default:"postgres"`
	Pass    string `envconfig:"DB_PASS"`
	Name    string `envconfig:"DB_NAME" default:"apios"`
	SSLMode string `envconfig:"DB_SSLMODE" default:"disable"`
	// DSN overrides the discrete fields when set.
	DSN string `envconfig:"DB_DSN"`
}

type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

type GatewayConfig struct {
	// PresetsFile points to a YAML preset catalogue. Empty uses the built-in one.
	PresetsFile  string        `envconfig:"PRESETS_FILE"`
	HistoryLimit int           `envconfig:"HISTORY_LIMIT" default:"100"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"0s"`
	// RateLimit is the per-provider request rate in calls per second. Zero disables it.
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"0"`
	RateBurst int     `envconfig:"RATE_BURST" default:"1"`
	// AllowPrivateTargets permits providers on loopback and private networks.
	AllowPrivateTargets bool `envconfig:"ALLOW_PRIVATE_TARGETS" default:"false"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig(envFiles ...string) (*Config, bool, error) {
	dotenv := godotenv.Load(envFiles...) == nil

	// Sections are processed one by one so that variables keep flat names
	// (APIOS_DB_HOST rather than APIOS_DB_DB_HOST).
	var cfg Config
	sections := []any{&cfg.Server, &cfg.DB, &cfg.Auth, &cfg.Log, &cfg.Gateway}
	for _, section := range sections {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return nil, dotenv, fmt.Errorf("failed to process environment variables: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, dotenv, err
	}
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = cfg.DB.URL()
	}
	return &cfg, dotenv, nil
}

// URL renders the discrete fields as a postgres:// connection URL with
// every part escaped.
func (c DBConfig) URL() string {
	user := url.User(c.User)
	if c.Pass != "" {
		user = url.UserPassword(c.User, c.Pass)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("invalid SERVER_PORT: empty")
	}
	if c.DB.DSN == "" && c.DB.Port <= 0 {
		return fmt.Errorf("invalid DB_PORT: %d", c.DB.Port)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("invalid JWT_SECRET: must be at least 16 characters")
	}
	if c.Auth.JWTTTL <= 0 {
		return fmt.Errorf("invalid JWT_TTL: %v", c.Auth.JWTTTL)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %q (must be json or console)", c.Log.Format)
	}
	if c.Gateway.HistoryLimit <= 0 {
		return fmt.Errorf("invalid HISTORY_LIMIT: %d", c.Gateway.HistoryLimit)
	}
	if c.Gateway.RateLimit < 0 || c.Gateway.RateBurst < 1 {
		return fmt.Errorf("invalid RATE_LIMIT/RATE_BURST: %v/%d", c.Gateway.RateLimit, c.Gateway.RateBurst)
	}
	return nil
}

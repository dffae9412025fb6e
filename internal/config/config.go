// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// DefaultJWTSecret is the development fallback used when JWT_SECRET is not
// set. Production deployments must override it.
const DefaultJWTSecret = "secret123"

// Config aggregates all runtime configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Mail     MailConfig
	CORS     CORSConfig
	Login    LoginConfig
	Logging  LoggingConfig
	Seed     SeedConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host         string `env:"HTTP_HOST,default=0.0.0.0"`
	Port         int    `env:"PORT,default=5000"`
	ReadTimeout  int    `env:"HTTP_READ_TIMEOUT,default=15"`
	WriteTimeout int    `env:"HTTP_WRITE_TIMEOUT,default=30"`
	IdleTimeout  int    `env:"HTTP_IDLE_TIMEOUT,default=60"`
}

// DatabaseConfig controls the PostgreSQL connection pool and migrations.
type DatabaseConfig struct {
	DSN             string `env:"DATABASE_URL"`
	MaxOpenConns    int    `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"DB_CONN_MAX_LIFETIME,default=300"`
	Migrate         bool   `env:"RUN_MIGRATIONS,default=true"`
	MigrationsPath  string `env:"MIGRATIONS_PATH,default=migrations"`
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET,default=secret123"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h"`
}

// MailConfig controls the SMTP transport used for notifications. Leaving
// Host empty disables outbound mail; notifications are then logged only.
type MailConfig struct {
	Host     string `env:"EMAIL_HOST"`
	Port     int    `env:"EMAIL_PORT,default=587"`
	Username string `env:"EMAIL_USER"`
	Password string `env:"EMAIL_PASS"`
	From     string `env:"EMAIL_FROM"`
}

// CORSConfig controls the browser origin allowed to call the API.
type CORSConfig struct {
	AllowedOrigin string `env:"CORS_ORIGIN,default=http://localhost:3000"`
}

// LoginConfig tunes the per-client login attempt limiter.
type LoginConfig struct {
	MaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS,default=5"`
	Window      time.Duration `env:"LOGIN_WINDOW,default=15m"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
}

// SeedConfig points at the optional YAML bootstrap file.
type SeedConfig struct {
	Path string `env:"SEED_FILE"`
}

// Load decodes the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// UsesDefaultSecret reports whether the deployment relies on the insecure
// development JWT secret.
func (c *Config) UsesDefaultSecret() bool {
	return c.Auth.JWTSecret == DefaultJWTSecret
}

// MailEnabled reports whether an SMTP transport is configured.
func (c *Config) MailEnabled() bool {
	return c.Mail.Host != ""
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Sender returns the From address, falling back to the SMTP username.
func (m MailConfig) Sender() string {
	if m.From != "" {
		return m.From
	}
	return m.Username
}

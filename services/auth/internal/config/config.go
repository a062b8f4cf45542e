package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/Lv-up-Planner/initRepo/pkg/config"
	"github.com/Lv-up-Planner/initRepo/pkg/tracing"
)

// defaultJWTSecret is accepted in development only.
const defaultJWTSecret = "change-this-to-a-secure-secret-in-production"

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"AUTH_HTTP_PORT" envDefault:"8001"`

	// JWT
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret-in-production"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"planner-auth"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// Upstream user service
	UserServiceURL     string        `env:"USER_SERVICE_URL" envDefault:"http://localhost:8002"`
	UpstreamTimeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"5s"`
	UpstreamMaxRetries int           `env:"UPSTREAM_MAX_RETRIES" envDefault:"2"`

	// Observability
	Tracing tracing.Config

	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field rules after parsing.
func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
	}
	// In non-development environments, require an explicitly set JWT secret.
	if c.Environment != "development" && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive, got %s", c.JWTExpiry)
	}
	if u, err := url.Parse(c.UserServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("USER_SERVICE_URL must be an absolute URL, got %q", c.UserServiceURL)
	}
	return nil
}

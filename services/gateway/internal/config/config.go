package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/Lv-up-Planner/initRepo/pkg/config"
	"github.com/Lv-up-Planner/initRepo/pkg/tracing"
)

// Config holds all configuration for the API gateway service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"GATEWAY_HTTP_PORT" envDefault:"8080"`

	// Upstream service URLs
	AuthServiceURL string `env:"AUTH_SERVICE_URL" envDefault:"http://localhost:8001"`
	UserServiceURL string `env:"USER_SERVICE_URL" envDefault:"http://localhost:8002"`
	BlogServiceURL string `env:"BLOG_SERVICE_URL" envDefault:"http://localhost:8003"`

	// Proxy transport
	ProxyDialTimeout     time.Duration `env:"PROXY_DIAL_TIMEOUT" envDefault:"5s"`
	ProxyResponseTimeout time.Duration `env:"PROXY_RESPONSE_TIMEOUT" envDefault:"15s"`
	ProxyIdleTimeout     time.Duration `env:"PROXY_IDLE_TIMEOUT" envDefault:"90s"`
	ProxyMaxIdleConns    int           `env:"PROXY_MAX_IDLE_CONNS" envDefault:"100"`

	// Rate limiting
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"100"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"200"`

	// Observability
	Tracing tracing.Config

	MetricsAllowedCIDRs []string `env:"METRICS_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16" envSeparator:","`
	PprofAllowedCIDRs   []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	CORSAllowedMethods []string `env:"CORS_ALLOWED_METHODS" envDefault:"GET,POST,PUT,PATCH,DELETE,OPTIONS" envSeparator:","`
	CORSAllowedHeaders []string `env:"CORS_ALLOWED_HEADERS" envDefault:"Accept,Authorization,Content-Type,X-Correlation-ID" envSeparator:","`
	CORSMaxAge         int      `env:"CORS_MAX_AGE" envDefault:"300"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	return cfg, nil
}

// Upstreams returns the proxied services keyed by name.
func (c *Config) Upstreams() map[string]string {
	return map[string]string{
		"auth": c.AuthServiceURL,
		"user": c.UserServiceURL,
		"blog": c.BlogServiceURL,
	}
}

// Validate checks cross-field rules after parsing.
func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	for _, u := range []struct{ env, raw string }{
		{"AUTH_SERVICE_URL", c.AuthServiceURL},
		{"USER_SERVICE_URL", c.UserServiceURL},
		{"BLOG_SERVICE_URL", c.BlogServiceURL},
	} {
		parsed, err := url.Parse(u.raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", u.env, u.raw)
		}
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive, got %d/%d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.ProxyResponseTimeout <= 0 {
		return fmt.Errorf("PROXY_RESPONSE_TIMEOUT must be positive, got %s", c.ProxyResponseTimeout)
	}
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/Lv-up-Planner/initRepo/pkg/config"
	"github.com/Lv-up-Planner/initRepo/pkg/tracing"
)

// Config holds all configuration for the load balancer.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"LB_HTTP_PORT" envDefault:"8000"`

	// Gateway instances that receive traffic in turn.
	Backends []string `env:"BACKENDS" envDefault:"http://localhost:8080" envSeparator:","`

	// Services whose readiness is reported by GET /lb/services.
	Services map[string]string `env:"LB_SERVICES" envDefault:"gateway=http://localhost:8080,auth=http://localhost:8001,user=http://localhost:8002,blog=http://localhost:8003" envSeparator:"," envKeyValSeparator:"="`

	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"15s"`
	HealthCheckTimeout  time.Duration `env:"HEALTH_CHECK_TIMEOUT" envDefault:"2s"`
	StatsWindow         time.Duration `env:"STATS_WINDOW" envDefault:"60s"`
	ProxyTimeout        time.Duration `env:"PROXY_TIMEOUT" envDefault:"30s"`

	// Observability
	Tracing tracing.Config

	MetricsAllowedCIDRs []string `env:"METRICS_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16" envSeparator:","`
	PprofAllowedCIDRs   []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load loadbalancer config: %w", err)
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
	if len(c.Backends) == 0 {
		return fmt.Errorf("BACKENDS must list at least one backend")
	}
	for _, b := range c.Backends {
		if !absoluteURL(b) {
			return fmt.Errorf("BACKENDS entry must be an absolute URL, got %q", b)
		}
	}
	for name, u := range c.Services {
		if !absoluteURL(u) {
			return fmt.Errorf("LB_SERVICES entry %q must be an absolute URL, got %q", name, u)
		}
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must be positive, got %s", c.HealthCheckInterval)
	}
	if c.StatsWindow <= 0 {
		return fmt.Errorf("STATS_WINDOW must be positive, got %s", c.StatsWindow)
	}
	return nil
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

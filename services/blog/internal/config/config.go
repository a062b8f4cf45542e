package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	pkgconfig "github.com/Lv-up-Planner/initRepo/pkg/config"
	"github.com/Lv-up-Planner/initRepo/pkg/database"
	"github.com/Lv-up-Planner/initRepo/pkg/tracing"
)

// Token strategies selectable with TOKEN_STRATEGY.
const (
	TokenStrategyOpaque = "opaque"
	TokenStrategyJWT    = "jwt"
	TokenStrategyRemote = "remote"
)

// defaultJWTSecret is accepted in development only.
const defaultJWTSecret = "change-this-to-a-secure-secret-in-production"

// Config holds all configuration for the blog service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"BLOG_HTTP_PORT" envDefault:"8003"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"planner"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"planner_secret"`
	PostgresDB   string `env:"BLOG_DB_NAME" envDefault:"blog_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`
	SlowQueryThresholdMs  int   `env:"DB_SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Cache
	CacheBackend  string        `env:"CACHE_BACKEND" envDefault:"redis"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Profile cache invalidation consumer. An empty group selects
	// blog-cache-<hostname> so every instance receives every event.
	CacheConsumerEnabled bool          `env:"CACHE_CONSUMER_ENABLED" envDefault:"true"`
	CacheConsumerGroup   string        `env:"CACHE_CONSUMER_GROUP" envDefault:""`
	CacheConsumerDLQ     bool          `env:"CACHE_CONSUMER_DLQ" envDefault:"true"`
	EventDedupTTL        time.Duration `env:"EVENT_DEDUP_TTL" envDefault:"10m"`

	// Credentials and tokens
	BcryptCost     int           `env:"BCRYPT_COST" envDefault:"12"`
	TokenStrategy  string        `env:"TOKEN_STRATEGY" envDefault:"opaque"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret-in-production"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"planner-auth"`
	JWTExpiry      time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	AuthServiceURL string        `env:"AUTH_SERVICE_URL" envDefault:"http://localhost:8001"`

	UpstreamTimeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"5s"`
	UpstreamMaxRetries int           `env:"UPSTREAM_MAX_RETRIES" envDefault:"2"`

	// Progression
	XPInitialThreshold int `env:"XP_INITIAL_THRESHOLD" envDefault:"100"`
	XPLevelIncrement   int `env:"XP_LEVEL_INCREMENT" envDefault:"20"`

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
		return nil, fmt.Errorf("load blog config: %w", err)
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
	switch c.CacheBackend {
	case "redis", "memory", "none":
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of redis, memory, none, got %q", c.CacheBackend)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.Environment != "development" && c.BcryptCost < bcrypt.DefaultCost {
		return fmt.Errorf("BCRYPT_COST below %d is only allowed in development", bcrypt.DefaultCost)
	}
	if c.KafkaEnabled && c.CacheConsumerEnabled && c.EventDedupTTL <= 0 {
		return fmt.Errorf("EVENT_DEDUP_TTL must be positive, got %s", c.EventDedupTTL)
	}
	if c.XPInitialThreshold <= 0 {
		return fmt.Errorf("XP_INITIAL_THRESHOLD must be positive, got %d", c.XPInitialThreshold)
	}
	if c.XPLevelIncrement < 0 {
		return fmt.Errorf("XP_LEVEL_INCREMENT must not be negative, got %d", c.XPLevelIncrement)
	}

	switch c.TokenStrategy {
	case TokenStrategyOpaque:
		if c.SessionTTL <= 0 {
			return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
		}
	case TokenStrategyJWT, TokenStrategyRemote:
		if err := c.validateJWT(); err != nil {
			return err
		}
		if c.TokenStrategy == TokenStrategyRemote {
			u, err := url.Parse(c.AuthServiceURL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("AUTH_SERVICE_URL must be an absolute URL, got %q", c.AuthServiceURL)
			}
		}
	default:
		return fmt.Errorf("TOKEN_STRATEGY must be one of opaque, jwt, remote, got %q", c.TokenStrategy)
	}
	return nil
}

func (c *Config) validateJWT() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
	}
	if c.Environment != "development" && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set explicitly outside development")
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive, got %s", c.JWTExpiry)
	}
	return nil
}

// CacheConsumerGroupID returns the consumer group of the cache invalidation
// consumer.
func (c *Config) CacheConsumerGroupID() string {
	if c.CacheConsumerGroup != "" {
		return c.CacheConsumerGroup
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "blog-cache-" + host
}

// Postgres returns the connection settings for database.Open.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// SlowQueryThreshold is zero when slow query logging is off.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(max(c.SlowQueryThresholdMs, 0)) * time.Millisecond
}

// Redis returns the cache client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

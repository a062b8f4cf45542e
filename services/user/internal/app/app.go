package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Lv-up-Planner/initRepo/pkg/cache"
	"github.com/Lv-up-Planner/initRepo/pkg/credential"
	"github.com/Lv-up-Planner/initRepo/pkg/database"
	"github.com/Lv-up-Planner/initRepo/pkg/health"
	pkgkafka "github.com/Lv-up-Planner/initRepo/pkg/kafka"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/pkg/server"
	"github.com/Lv-up-Planner/initRepo/pkg/tracing"
	"github.com/Lv-up-Planner/initRepo/services/user/internal/config"
	"github.com/Lv-up-Planner/initRepo/services/user/internal/domain"
	"github.com/Lv-up-Planner/initRepo/services/user/internal/event"
	handler "github.com/Lv-up-Planner/initRepo/services/user/internal/handler/http"
	"github.com/Lv-up-Planner/initRepo/services/user/internal/service"
	"github.com/Lv-up-Planner/initRepo/services/user/migrations"
)

// App is the user service: the credential store behind an HTTP API.
type App struct {
	*server.Server
}

// NewApp connects the backing stores and builds the HTTP handler. Nothing
// is served until Run.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := server.New(logger)

	tracerShutdown, err := tracing.InitTracer(ctx, "user", cfg.Environment, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	srv.OnCloseContext("tracer", server.FlushTimeout, tracerShutdown)

	pool, err := database.Open(ctx, cfg.Postgres(), database.Setup{
		Service:    "user",
		Migrations: migrations.FS,
		SlowQuery:  cfg.SlowQueryThreshold(),
	}, logger)
	if err != nil {
		return nil, errors.Join(err, srv.Close())
	}

	backend, redisClient := cache.OpenBackend(cfg.CacheBackend, func() *redis.Client {
		return database.OpenRedisClient(cfg.Redis())
	})
	userCache := cache.New[domain.User](backend, cache.Options{
		Name:   "user",
		Prefix: "user:",
		TTL:    cfg.CacheTTL,
		Logger: logger,
	})
	logger.Info("user cache ready", slog.String("backend", backend.Name()), slog.Duration("ttl", cfg.CacheTTL))

	checks := health.NewHandler()
	checks.RegisterCritical("postgres", database.PingChecker(pool))
	if redisClient != nil {
		checks.RegisterNonCritical("redis", userCache.Ping)
	}

	var publisher pkgkafka.Publisher = pkgkafka.NopPublisher{}
	if cfg.KafkaEnabled {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = producer
		checks.RegisterNonCritical("kafka", producer.Ping)
		srv.OnClose("kafka producer", producer.Close)
		logger.Info("kafka producer ready", slog.Any("brokers", cfg.KafkaBrokers))
	}
	if redisClient != nil {
		srv.OnClose("redis", redisClient.Close)
	}
	srv.OnClose("postgres", func() error { pool.Close(); return nil })

	store, err := credential.NewStore(pool, cfg.BcryptCost, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create credential store: %w", err), srv.Close())
	}
	userService := service.NewUserService(store, userCache, event.NewProducer(publisher, logger), logger)

	router := handler.NewRouter(userService, checks, logger, handler.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	})
	srv.Listen(server.NewHTTPServer(cfg.HTTPPort, router, 15*time.Second))
	return &App{Server: srv}, nil
}

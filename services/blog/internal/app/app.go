package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Lv-up-Planner/initRepo/pkg/cache"
	"github.com/Lv-up-Planner/initRepo/pkg/credential"
	"github.com/Lv-up-Planner/initRepo/pkg/database"
	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/httpclient"
	pkgkafka "github.com/Lv-up-Planner/initRepo/pkg/kafka"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/pkg/server"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
	"github.com/Lv-up-Planner/initRepo/pkg/tracing"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/config"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/event"
	handler "github.com/Lv-up-Planner/initRepo/services/blog/internal/handler/http"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/repository/postgres"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/service"
	"github.com/Lv-up-Planner/initRepo/services/blog/migrations"
)

// App is the blog service: accounts, profiles, todos and posts behind one
// HTTP API, plus the consumer that keeps the profile cache fresh.
type App struct {
	*server.Server
}

// NewApp connects the backing stores, selects the token strategy and builds
// the HTTP handler. Nothing is served until Run.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := server.New(logger)

	tracerShutdown, err := tracing.InitTracer(ctx, "blog", cfg.Environment, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	srv.OnCloseContext("tracer", server.FlushTimeout, tracerShutdown)

	pool, err := database.Open(ctx, cfg.Postgres(), database.Setup{
		Service:    "blog",
		Migrations: migrations.FS,
		SlowQuery:  cfg.SlowQueryThreshold(),
	}, logger)
	if err != nil {
		return nil, errors.Join(err, srv.Close())
	}

	backend, redisClient := cache.OpenBackend(cfg.CacheBackend, func() *redis.Client {
		return database.OpenRedisClient(cfg.Redis())
	})
	profileCache := cache.New[domain.Profile](backend, cache.Options{
		Name:   "profile",
		Prefix: "profile:",
		TTL:    cfg.CacheTTL,
		Logger: logger,
	})
	logger.Info("profile cache ready", slog.String("backend", backend.Name()), slog.Duration("ttl", cfg.CacheTTL))

	checks := health.NewHandler()
	checks.RegisterCritical("postgres", database.PingChecker(pool))
	if redisClient != nil {
		checks.RegisterNonCritical("redis", profileCache.Ping)
	}

	var publisher pkgkafka.Publisher = pkgkafka.NopPublisher{}
	var producer *pkgkafka.Producer
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = producer
		checks.RegisterNonCritical("kafka", producer.Ping)
		logger.Info("kafka producer ready", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)
	profiles := service.NewProfileService(postgres.NewProfileRepository(pool), profileCache, eventProducer, logger)

	// Consumer and DLQ close before the producer they may still publish
	// through, and Redis and PostgreSQL go last.
	consumer, dlq := newCacheConsumer(cfg, profiles, logger)
	if consumer != nil {
		srv.Go("cache consumer", consumer.Start)
		srv.OnClose("kafka consumer", consumer.Close)
	}
	if dlq != nil {
		srv.OnClose("kafka dlq producer", dlq.Close)
	}
	if producer != nil {
		srv.OnClose("kafka producer", producer.Close)
	}
	if redisClient != nil {
		srv.OnClose("redis", redisClient.Close)
	}
	srv.OnClose("postgres", func() error { pool.Close(); return nil })

	authority, sessions, err := newAuthority(cfg, pool, checks, logger)
	if err != nil {
		return nil, errors.Join(err, srv.Close())
	}
	logger.Info("token authority ready", slog.String("strategy", cfg.TokenStrategy))

	creds, err := credential.NewStore(pool, cfg.BcryptCost, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create credential store: %w", err), srv.Close())
	}
	progression := domain.Progression{
		InitialThreshold: cfg.XPInitialThreshold,
		Increment:        cfg.XPLevelIncrement,
	}
	svcs := handler.Services{
		Accounts: service.NewAccountService(
			postgres.NewAccountRepository(pool, creds),
			creds,
			authority,
			sessions,
			progression,
			eventProducer,
			logger,
		),
		Profiles: profiles,
		Todos: service.NewTodoService(
			postgres.NewTodoRepository(pool),
			postgres.NewLedger(pool, progression),
			profiles,
			eventProducer,
			logger,
		),
		Posts: service.NewPostService(postgres.NewPostRepository(pool), logger),
	}

	router := handler.NewRouter(svcs, authority, checks, logger, handler.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	})
	srv.Listen(server.NewHTTPServer(cfg.HTTPPort, router, 15*time.Second))
	return &App{Server: srv}, nil
}

// newCacheConsumer builds the consumer that keeps this instance's profile
// cache in step with writes made elsewhere. Both results are nil when Kafka
// or the consumer is disabled.
func newCacheConsumer(cfg *config.Config, profiles event.ProfileInvalidator, logger *slog.Logger) (*pkgkafka.Consumer, *pkgkafka.DLQProducer) {
	if !cfg.KafkaEnabled || !cfg.CacheConsumerEnabled {
		return nil, nil
	}

	var (
		dlq        *pkgkafka.DLQProducer
		deadLetter pkgkafka.DeadLetterPublisher
	)
	if cfg.CacheConsumerDLQ {
		dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		deadLetter = dlq
	}

	handler := pkgkafka.Dedup(
		pkgkafka.NewMemorySeenStore(cfg.EventDedupTTL),
		event.NewCacheInvalidationHandler(profiles, logger),
		logger,
	)
	group := cfg.CacheConsumerGroupID()
	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: group,
		Topics:  event.CacheInvalidationTopics(),
	}, handler, deadLetter, logger)

	logger.Info("cache invalidation consumer initialized",
		slog.String("group", group),
		slog.Bool("dlq", dlq != nil),
	)
	return consumer, dlq
}

// newAuthority builds the configured token strategy. The returned revoker is
// nil unless sessions are stored server-side.
func newAuthority(
	cfg *config.Config,
	pool *pgxpool.Pool,
	healthHandler *health.Handler,
	logger *slog.Logger,
) (token.Authority, service.SessionRevoker, error) {
	switch cfg.TokenStrategy {
	case config.TokenStrategyOpaque:
		sessions := token.NewSessionAuthority(postgres.NewSessionRepository(pool), cfg.SessionTTL)
		return sessions, sessions, nil

	case config.TokenStrategyJWT, config.TokenStrategyRemote:
		jwtAuthority, err := token.NewJWTAuthority(token.JWTConfig{
			Secret: cfg.JWTSecret,
			Issuer: cfg.JWTIssuer,
			TTL:    cfg.JWTExpiry,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create jwt authority: %w", err)
		}
		if cfg.TokenStrategy == config.TokenStrategyJWT {
			return jwtAuthority, nil, nil
		}

		httpCfg := httpclient.DefaultConfig()
		httpCfg.Timeout = cfg.UpstreamTimeout
		httpCfg.MaxRetries = cfg.UpstreamMaxRetries
		httpCfg.RetryWaitMin = 100 * time.Millisecond
		httpCfg.RetryWaitMax = time.Second
		authHTTP := httpclient.NewBreaker(
			httpclient.New(httpCfg),
			httpclient.DefaultBreakerConfig("auth-service"),
			logger,
		)
		healthHandler.RegisterNonCritical("auth-service", health.HTTPChecker(authHTTP, cfg.AuthServiceURL+"/health/live"))
		return token.NewDelegatingAuthority(jwtAuthority, token.NewRemoteVerifier(authHTTP, cfg.AuthServiceURL)), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown token strategy %q", cfg.TokenStrategy)
	}
}

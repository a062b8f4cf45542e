package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/httpclient"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/pkg/server"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
	"github.com/Lv-up-Planner/initRepo/pkg/tracing"
	"github.com/Lv-up-Planner/initRepo/services/auth/internal/client"
	"github.com/Lv-up-Planner/initRepo/services/auth/internal/config"
	handler "github.com/Lv-up-Planner/initRepo/services/auth/internal/handler/http"
	"github.com/Lv-up-Planner/initRepo/services/auth/internal/service"
)

// App is the auth service. It holds no state of its own: logins are checked
// against the user service and tokens are signed locally.
type App struct {
	*server.Server
}

// NewApp builds the token authority, the user service client and the HTTP
// handler. Nothing is served until Run.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := server.New(logger)

	tracerShutdown, err := tracing.InitTracer(ctx, "auth", cfg.Environment, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	srv.OnCloseContext("tracer", server.FlushTimeout, tracerShutdown)

	jwtAuthority, err := token.NewJWTAuthority(token.JWTConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.JWTExpiry,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create jwt authority: %w", err), srv.Close())
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.UpstreamTimeout
	httpCfg.MaxRetries = cfg.UpstreamMaxRetries
	httpCfg.RetryWaitMin = 100 * time.Millisecond
	httpCfg.RetryWaitMax = time.Second
	userHTTP := httpclient.NewBreaker(httpclient.New(httpCfg), httpclient.DefaultBreakerConfig("user-service"), logger)

	// Verification keeps working while the user service is down, so it
	// only affects readiness as a non-critical check.
	checks := health.NewHandler()
	checks.RegisterNonCritical("user-service", health.HTTPChecker(userHTTP, cfg.UserServiceURL+"/health/live"))

	authService := service.NewAuthService(client.NewUserClient(userHTTP, cfg.UserServiceURL), jwtAuthority, logger)
	router := handler.NewRouter(authService, checks, logger, handler.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	})
	srv.Listen(server.NewHTTPServer(cfg.HTTPPort, router, 15*time.Second))
	return &App{Server: srv}, nil
}

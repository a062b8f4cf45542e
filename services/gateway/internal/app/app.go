package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/httpclient"
	"github.com/Lv-up-Planner/initRepo/pkg/server"
	"github.com/Lv-up-Planner/initRepo/pkg/tracing"
	"github.com/Lv-up-Planner/initRepo/services/gateway/internal/config"
	"github.com/Lv-up-Planner/initRepo/services/gateway/internal/handler"
	gwmiddleware "github.com/Lv-up-Planner/initRepo/services/gateway/internal/middleware"
	"github.com/Lv-up-Planner/initRepo/services/gateway/internal/proxy"
)

// App is the API gateway. It keeps no backing store; everything it serves
// comes from the upstream services.
type App struct {
	*server.Server
}

// NewApp builds the reverse proxy, the rate limiter and the router.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := server.New(logger)

	tracerShutdown, err := tracing.InitTracer(ctx, "gateway", cfg.Environment, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	srv.OnCloseContext("tracer", server.FlushTimeout, tracerShutdown)

	limiter := gwmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	// Probes fail fast; a retry would only delay /stats.
	probeCfg := httpclient.DefaultConfig()
	probeCfg.Timeout = 2 * time.Second
	probeCfg.MaxRetries = 0
	probe := httpclient.New(probeCfg)

	// An unreachable upstream does not make the gateway unready: routes to
	// the other services still work.
	checks := health.NewHandler()
	upstreams := cfg.Upstreams()
	for name, base := range upstreams {
		checks.RegisterNonCritical(name, health.HTTPChecker(probe, strings.TrimRight(base, "/")+"/health/live"))
	}

	router := handler.NewRouter(cfg, handler.Dependencies{
		Proxy:       proxy.NewServiceProxy(cfg, logger),
		RateLimiter: limiter,
		Stats:       handler.NewStatsHandler(probe, upstreams, limiter),
		Health:      checks,
	}, logger)
	// Proxied calls may take the full upstream timeout.
	srv.Listen(server.NewHTTPServer(cfg.HTTPPort, router, cfg.ProxyResponseTimeout+20*time.Second))
	return &App{Server: srv}, nil
}

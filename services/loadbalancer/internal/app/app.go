package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/httpclient"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/pkg/server"
	"github.com/Lv-up-Planner/initRepo/pkg/tracing"
	"github.com/Lv-up-Planner/initRepo/services/loadbalancer/internal/balancer"
	"github.com/Lv-up-Planner/initRepo/services/loadbalancer/internal/config"
	"github.com/Lv-up-Planner/initRepo/services/loadbalancer/internal/handler"
	"github.com/Lv-up-Planner/initRepo/services/loadbalancer/internal/stats"
)

// App is the load balancer: one listener in front of a pool of identical
// backends that are probed in the background.
type App struct {
	*server.Server
}

// NewApp builds the backend pool, its prober and the router.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := server.New(logger)

	tracerShutdown, err := tracing.InitTracer(ctx, "loadbalancer", cfg.Environment, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	srv.OnCloseContext("tracer", server.FlushTimeout, tracerShutdown)

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ResponseHeaderTimeout: cfg.ProxyTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
	}
	pool, err := balancer.NewPool(cfg.Backends, transport, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create backend pool: %w", err), srv.Close())
	}
	srv.OnClose("backend transport", func() error { transport.CloseIdleConnections(); return nil })

	probeCfg := httpclient.DefaultConfig()
	probeCfg.Timeout = cfg.HealthCheckTimeout
	probeCfg.MaxRetries = 0
	probe := httpclient.New(probeCfg)
	srv.Go("backend prober", func(ctx context.Context) error {
		pool.RunHealthChecks(ctx, probe, cfg.HealthCheckInterval, cfg.HealthCheckTimeout)
		return nil
	})
	logger.Info("balancing across backends", slog.Any("backends", cfg.Backends))

	h := handler.NewHandler(pool, stats.NewCollector(cfg.StatsWindow), probe, cfg.Services)
	router := handler.NewRouter(h, health.NewHandler(), logger, handler.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			ExposedHeaders: []string{"X-Correlation-ID"},
			Environment:    cfg.Environment,
		},
		MetricsAllowedCIDRs: cfg.MetricsAllowedCIDRs,
		PprofAllowedCIDRs:   cfg.PprofAllowedCIDRs,
	})
	srv.Listen(server.NewHTTPServer(cfg.HTTPPort, router, cfg.ProxyTimeout+5*time.Second))
	return &App{Server: srv}, nil
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/services/auth/internal/service"
)

// RouterConfig carries the settings the router needs beyond its handlers.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	authService *service.AuthService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Tracing("auth"))
	r.Use(middleware.PrometheusMetrics("auth"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.With(middleware.IPAllowlist(cfg.PprofAllowedCIDRs, logger)).Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	authHandler := NewAuthHandler(authService, logger)
	r.With(middleware.NoStore).Get("/stats", authHandler.Stats)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.NoStore)

		r.Post("/login", authHandler.Login)
		r.Get("/verify", authHandler.Verify)
		r.Post("/verify", authHandler.Verify)
	})

	return r
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/services/user/internal/service"
)

// RouterConfig carries the settings the router needs beyond its handlers.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all user service routes registered.
func NewRouter(
	userService *service.UserService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Tracing("user"))
	r.Use(middleware.PrometheusMetrics("user"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.With(middleware.IPAllowlist(cfg.PprofAllowedCIDRs, logger)).Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	userHandler := NewUserHandler(userService, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.Post("/users", userHandler.Register)
		r.Get("/users/id/{id}", userHandler.GetByID)
		r.Get("/users/{username}", userHandler.GetByUsername)
		r.Put("/users/{username}/password", userHandler.ChangePassword)
		r.Get("/stats", userHandler.Stats)

		// Responses carry identity data the caller is about to trust.
		r.With(middleware.NoStore).Post("/users/verify-credentials", userHandler.VerifyCredentials)
	})

	return r
}

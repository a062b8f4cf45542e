package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	pkgmiddleware "github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/services/gateway/internal/config"
	gwmiddleware "github.com/Lv-up-Planner/initRepo/services/gateway/internal/middleware"
	"github.com/Lv-up-Planner/initRepo/services/gateway/internal/proxy"
)

// Dependencies groups what the router mounts besides the config.
type Dependencies struct {
	Proxy       *proxy.ServiceProxy
	RateLimiter *gwmiddleware.RateLimiter
	Stats       http.Handler
	Health      *health.Handler
}

// NewRouter creates a chi router with global middleware, health endpoints,
// and proxy routes to the auth, user and blog services.
func NewRouter(cfg *config.Config, deps Dependencies, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(pkgmiddleware.CORS(pkgmiddleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: cfg.CORSAllowedMethods,
		AllowedHeaders: cfg.CORSAllowedHeaders,
		ExposedHeaders: []string{"X-Correlation-ID", "Retry-After"},
		MaxAge:         cfg.CORSMaxAge,
		Environment:    cfg.Environment,
	}))
	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(deps.RateLimiter.Middleware)
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(pkgmiddleware.PrometheusMetrics("gateway"))
	r.Use(pkgmiddleware.Tracing("gateway"))
	r.Use(pkgmiddleware.RequestLogger(logger))

	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/stats", deps.Stats.ServeHTTP)

	r.With(pkgmiddleware.IPAllowlist(cfg.MetricsAllowedCIDRs, logger)).Handle("/metrics", promhttp.Handler())
	pkgmiddleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	sp := deps.Proxy
	r.Route("/api", func(r chi.Router) {
		// Auth service
		r.Handle("/login", sp.Handler("auth", proxy.ReplacePrefix("/api/login", "/login")))
		r.Handle("/verify", sp.Handler("auth", proxy.ReplacePrefix("/api/verify", "/verify")))

		// User service
		r.Handle("/register", sp.Handler("user", proxy.ReplacePrefix("/api/register", "/users")))
		users := sp.Handler("user", proxy.ReplacePrefix("/api/users", "/users"))
		r.Handle("/users", users)
		r.Handle("/users/*", users)

		// Blog service, paths preserved.
		blog := sp.Handler("blog", nil)
		for _, p := range []string{
			"/posts", "/posts/*",
			"/todos", "/todos/*",
			"/profile", "/profile/*",
			"/leaderboard",
			"/logout", "/logout-all",
		} {
			r.Handle(p, blog)
		}
	})

	return r
}

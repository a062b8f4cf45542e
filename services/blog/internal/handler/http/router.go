package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/service"
)

// Services bundles the application services the router dispatches to.
type Services struct {
	Accounts *service.AccountService
	Profiles *service.ProfileService
	Todos    *service.TodoService
	Posts    *service.PostService
}

// RouterConfig carries the settings the router needs beyond its handlers.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all blog service routes registered.
// Routes under /api other than register, login and post reads require a
// bearer token accepted by verifier.
func NewRouter(
	svcs Services,
	verifier token.Verifier,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Tracing("blog"))
	r.Use(middleware.PrometheusMetrics("blog"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.With(middleware.IPAllowlist(cfg.PprofAllowedCIDRs, logger)).Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	accountHandler := NewAccountHandler(svcs.Accounts, logger)
	profileHandler := NewProfileHandler(svcs.Profiles, logger)
	todoHandler := NewTodoHandler(svcs.Todos, logger)
	postHandler := NewPostHandler(svcs.Posts, logger)

	r.Get("/stats", profileHandler.Stats)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.Post("/register", accountHandler.Register)
		r.With(middleware.NoStore).Post("/login", accountHandler.Login)
		r.Get("/leaderboard", profileHandler.Leaderboard)
		r.With(middleware.CacheControl(30)).Get("/posts", postHandler.List)
		r.Get("/posts/{id}", postHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(verifier, logger))
			r.Use(middleware.NoStore)

			r.Post("/logout", accountHandler.Logout)
			r.Post("/logout-all", accountHandler.LogoutAll)

			r.Get("/profile", profileHandler.Get)
			r.Patch("/profile", profileHandler.Update)

			r.Post("/todos", todoHandler.Create)
			r.Get("/todos", todoHandler.List)
			r.Get("/todos/{id}", todoHandler.Get)
			r.Post("/todos/{id}/complete", todoHandler.Complete)
			r.Delete("/todos/{id}", todoHandler.Delete)

			r.Post("/posts", postHandler.Create)
			r.Patch("/posts/{id}", postHandler.Update)
			r.Delete("/posts/{id}", postHandler.Delete)
		})
	})

	return r
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/httputil"
	pkgmiddleware "github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/services/loadbalancer/internal/balancer"
	"github.com/Lv-up-Planner/initRepo/services/loadbalancer/internal/stats"
)

// RouterConfig carries the HTTP-level settings of the load balancer.
type RouterConfig struct {
	CORS                pkgmiddleware.CORSConfig
	MetricsAllowedCIDRs []string
	PprofAllowedCIDRs   []string
}

const (
	// statsTimeout bounds each service's /stats fetch.
	statsTimeout = 2 * time.Second

	// userService is the service whose user counts and cache stats are
	// also shown at the top level of GET /lb/stats.
	userService = "user"
)

// StatsResponse is the body of GET /lb/stats.
type StatsResponse struct {
	Status    health.Status                 `json:"status"`
	Timestamp time.Time                     `json:"timestamp"`
	Requests  stats.Snapshot                `json:"requests"`
	Backends  []balancer.BackendStatus      `json:"backends"`
	Services  map[string]stats.ServiceStats `json:"services"`
	Database  json.RawMessage               `json:"database,omitempty"`
	Cache     json.RawMessage               `json:"cache,omitempty"`
}

// ServicesResponse is the body of GET /lb/services.
type ServicesResponse struct {
	Status   health.Status                  `json:"status"`
	Services map[string]health.TargetStatus `json:"services"`
}

// Handler serves the load balancer's own endpoints.
type Handler struct {
	pool       *balancer.Pool
	collector  *stats.Collector
	getter     health.Getter
	services   map[string]string
	aggregator *stats.Aggregator
}

// NewHandler returns a Handler. services maps a name to its base URL. Its
// readiness endpoint is probed on every GET /lb/services and its /stats is
// merged into every GET /lb/stats.
func NewHandler(pool *balancer.Pool, collector *stats.Collector, getter health.Getter, services map[string]string) *Handler {
	targets := make(map[string]string, len(services))
	for name, base := range services {
		targets[name] = strings.TrimRight(base, "/") + "/health/ready"
	}
	return &Handler{
		pool:       pool,
		collector:  collector,
		getter:     getter,
		services:   targets,
		aggregator: stats.NewAggregator(getter, services, statsTimeout),
	}
}

// Stats handles GET /lb/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	status := health.StatusUp
	if !h.pool.Healthy() {
		status = health.StatusDown
	}
	resp := StatsResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Requests:  h.collector.Snapshot(),
		Backends:  h.pool.Statuses(),
		Services:  h.aggregator.Collect(r.Context()),
	}
	resp.Database, resp.Cache = userSections(resp.Services[userService])
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}

// userSections picks the user counts and cache stats out of the user
// service's /stats payload.
func userSections(s stats.ServiceStats) (database, cache json.RawMessage) {
	if len(s.Data) == 0 {
		return nil, nil
	}
	var sections struct {
		Users json.RawMessage `json:"users"`
		Cache json.RawMessage `json:"cache"`
	}
	if err := json.Unmarshal(s.Data, &sections); err != nil {
		return nil, nil
	}
	return sections.Users, sections.Cache
}

// Services handles GET /lb/services.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	results := health.Probe(r.Context(), h.getter, h.services)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ServicesResponse{
		Status:   health.Overall(results),
		Services: results,
	}})
}

// Ready answers 200 while at least one backend is healthy.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.pool.Healthy() {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, health.Response{Status: health.StatusDown, Timestamp: time.Now().UTC()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, health.Response{Status: health.StatusUp, Timestamp: time.Now().UTC()})
}

// NewRouter mounts the load balancer endpoints and sends everything else to
// the pool through the stats collector.
func NewRouter(h *Handler, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(pkgmiddleware.CORS(cfg.CORS))
	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(pkgmiddleware.Tracing("loadbalancer"))
	r.Use(pkgmiddleware.PrometheusMetrics("loadbalancer"))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", h.Ready)

	r.With(pkgmiddleware.IPAllowlist(cfg.MetricsAllowedCIDRs, logger)).Handle("/metrics", promhttp.Handler())
	pkgmiddleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	r.Route("/lb", func(r chi.Router) {
		r.Use(pkgmiddleware.NoStore)
		r.Get("/stats", h.Stats)
		r.Get("/services", h.Services)
	})

	r.Handle("/*", h.collector.Middleware(h.pool))

	return r
}

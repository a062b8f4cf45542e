package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/httputil"
	gwmiddleware "github.com/Lv-up-Planner/initRepo/services/gateway/internal/middleware"
)

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Status    health.Status                  `json:"status"`
	Timestamp time.Time                      `json:"timestamp"`
	Upstreams map[string]health.TargetStatus `json:"upstreams"`
	RateLimit gwmiddleware.RateLimitStats    `json:"rate_limit"`
}

// StatsHandler reports the readiness of every upstream and the limiter state.
type StatsHandler struct {
	getter  health.Getter
	targets map[string]string
	limiter *gwmiddleware.RateLimiter
}

// NewStatsHandler probes each upstream base URL at /health/ready.
func NewStatsHandler(getter health.Getter, upstreams map[string]string, limiter *gwmiddleware.RateLimiter) *StatsHandler {
	targets := make(map[string]string, len(upstreams))
	for name, base := range upstreams {
		targets[name] = strings.TrimRight(base, "/") + "/health/ready"
	}
	return &StatsHandler{getter: getter, targets: targets, limiter: limiter}
}

// ServeHTTP handles GET /stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upstreams := health.Probe(r.Context(), h.getter, h.targets)
	resp := StatsResponse{
		Status:    health.Overall(upstreams),
		Timestamp: time.Now().UTC(),
		Upstreams: upstreams,
	}
	if h.limiter != nil {
		resp.RateLimit = h.limiter.Stats()
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}

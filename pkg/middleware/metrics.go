package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics holds the request instruments registered on one registry.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

// NewHTTPMetrics registers the planner HTTP instruments on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	f := promauto.With(reg)
	labels := []string{"service", "method", "route", "status"}
	return &HTTPMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_http_requests_total",
			Help: "HTTP requests served, by route and status.",
		}, labels),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planner_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, labels),
		inFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "planner_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}, []string{"service"}),
	}
}

var defaultHTTPMetrics = sync.OnceValue(func() *HTTPMetrics {
	return NewHTTPMetrics(prometheus.DefaultRegisterer)
})

// PrometheusMetrics instruments requests on the default registry.
func PrometheusMetrics(service string) func(http.Handler) http.Handler {
	return defaultHTTPMetrics().Middleware(service)
}

// Middleware records one observation per request. The route label is the
// chi pattern, so path parameters do not explode cardinality.
func (m *HTTPMetrics) Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gauge := m.inFlight.WithLabelValues(service)
			gauge.Inc()
			defer gauge.Dec()

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			lv := []string{service, r.Method, routePattern(r), strconv.Itoa(statusOf(ww))}
			m.requests.WithLabelValues(lv...).Inc()
			m.duration.WithLabelValues(lv...).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern is the matched chi route, or "unmatched" for 404s and
// requests served outside a chi router.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusOf treats a handler that never wrote a header as 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// Package proxy forwards gateway routes to the auth, user and blog services.
package proxy

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	pkghttputil "github.com/Lv-up-Planner/initRepo/pkg/httputil"
	"github.com/Lv-up-Planner/initRepo/pkg/logger"
	"github.com/Lv-up-Planner/initRepo/services/gateway/internal/config"
)

var upstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "planner",
	Subsystem: "gateway",
	Name:      "upstream_failures_total",
	Help:      "Proxied requests that got no response from the upstream.",
}, []string{"upstream"})

// PathRewrite maps the gateway path to the upstream path.
type PathRewrite func(path string) string

// ReplacePrefix swaps a leading from for to and leaves other paths alone.
func ReplacePrefix(from, to string) PathRewrite {
	return func(path string) string {
		if rest, ok := strings.CutPrefix(path, from); ok {
			return to + rest
		}
		return path
	}
}

// ServiceProxy holds one reverse proxy per configured upstream. They share
// a transport so idle connections are pooled across routes.
type ServiceProxy struct {
	upstreams map[string]*httputil.ReverseProxy
	logger    *slog.Logger
}

// NewServiceProxy builds a proxy for every upstream in cfg. An upstream whose
// URL does not parse is logged and skipped, so its routes answer 502.
func NewServiceProxy(cfg *config.Config, logger *slog.Logger) *ServiceProxy {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.ProxyDialTimeout}).DialContext,
		ResponseHeaderTimeout: cfg.ProxyResponseTimeout,
		IdleConnTimeout:       cfg.ProxyIdleTimeout,
		MaxIdleConns:          cfg.ProxyMaxIdleConns,
		MaxIdleConnsPerHost:   cfg.ProxyMaxIdleConns,
	}

	sp := &ServiceProxy{upstreams: make(map[string]*httputil.ReverseProxy), logger: logger}
	for name, raw := range cfg.Upstreams() {
		target, err := url.Parse(raw)
		if err != nil || target.Host == "" {
			logger.Error("upstream skipped: bad URL", slog.String("upstream", name), slog.String("url", raw))
			continue
		}
		sp.upstreams[name] = &httputil.ReverseProxy{
			Rewrite:      forward(target),
			Transport:    transport,
			ErrorHandler: sp.failed(name),
		}
		logger.Info("upstream registered", slog.String("upstream", name), slog.String("url", raw))
	}
	return sp
}

// forward points the outbound request at target and carries the caller's
// correlation ID and trace context along.
func forward(target *url.URL) func(*httputil.ProxyRequest) {
	return func(pr *httputil.ProxyRequest) {
		pr.SetURL(target)
		pr.SetXForwarded()

		ctx := pr.In.Context()
		if id := logger.CorrelationIDFromContext(ctx); id != "" {
			pr.Out.Header.Set(logger.CorrelationHeader, id)
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(pr.Out.Header))
	}
}

// Handler proxies to the named upstream after applying rewrite to the path.
// A nil rewrite forwards the path unchanged.
func (sp *ServiceProxy) Handler(upstream string, rewrite PathRewrite) http.Handler {
	rp, ok := sp.upstreams[upstream]
	if !ok {
		sp.logger.Error("route has no upstream", slog.String("upstream", upstream))
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			pkghttputil.WriteJSON(w, http.StatusBadGateway, pkghttputil.Response{
				Error: &pkghttputil.ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "service not configured"},
			})
		})
	}
	if rewrite == nil {
		return rp
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := r.Clone(r.Context())
		out.URL.Path = rewrite(r.URL.Path)
		out.URL.RawPath = ""
		rp.ServeHTTP(w, out)
	})
}

// failed answers 502 when the upstream could not be reached or timed out.
// Responses the upstream did send, 5xx included, pass through untouched.
func (sp *ServiceProxy) failed(upstream string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		upstreamFailures.WithLabelValues(upstream).Inc()
		logger.WithContext(r.Context(), sp.logger).Error("upstream unreachable",
			slog.String("upstream", upstream),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		pkghttputil.WriteJSON(w, http.StatusBadGateway, pkghttputil.Response{
			Error: &pkghttputil.ErrorResponse{
				Code:      "BAD_GATEWAY",
				Message:   "upstream service unavailable",
				RequestID: logger.CorrelationIDFromContext(r.Context()),
			},
		})
	}
}

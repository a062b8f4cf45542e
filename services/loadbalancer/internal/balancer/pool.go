// Package balancer distributes requests round-robin over the healthy
// backends of a pool.
package balancer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	pkghttputil "github.com/Lv-up-Planner/initRepo/pkg/httputil"
	"github.com/Lv-up-Planner/initRepo/pkg/logger"
)

var backendUp = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "lb_backend_up",
		Help: "Whether the last health probe of a backend succeeded (1) or not (0).",
	},
	[]string{"backend"},
)

// Backend is one upstream of the pool.
type Backend struct {
	URL     *url.URL
	proxy   *httputil.ReverseProxy
	healthy atomic.Bool
}

// Healthy reports the result of the last probe. Backends start healthy.
func (b *Backend) Healthy() bool {
	return b.healthy.Load()
}

func (b *Backend) setHealthy(ok bool) {
	b.healthy.Store(ok)
	v := 0.0
	if ok {
		v = 1
	}
	backendUp.WithLabelValues(b.URL.String()).Set(v)
}

// BackendStatus is the JSON view of a backend.
type BackendStatus struct {
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
}

// Pool hands requests to its backends in turn, skipping unhealthy ones.
type Pool struct {
	backends []*Backend
	next     atomic.Uint64
	logger   *slog.Logger
}

// NewPool builds a pool over rawURLs. Every backend shares transport.
func NewPool(rawURLs []string, transport http.RoundTripper, log *slog.Logger) (*Pool, error) {
	if len(rawURLs) == 0 {
		return nil, fmt.Errorf("balancer: no backends")
	}
	p := &Pool{logger: log}
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("balancer: invalid backend URL %q", raw)
		}
		b := &Backend{URL: u}
		b.proxy = &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(u)
				pr.SetXForwarded()
				if id := logger.CorrelationIDFromContext(pr.In.Context()); id != "" {
					pr.Out.Header.Set("X-Correlation-ID", id)
				}
			},
			Transport:    transport,
			ErrorHandler: p.errorHandler(u.String()),
		}
		b.setHealthy(true)
		p.backends = append(p.backends, b)
	}
	return p, nil
}

// Next returns the next healthy backend, or nil when none is healthy.
func (p *Pool) Next() *Backend {
	n := uint64(len(p.backends))
	start := p.next.Add(1) - 1
	for i := uint64(0); i < n; i++ {
		b := p.backends[(start+i)%n]
		if b.Healthy() {
			return b
		}
	}
	return nil
}

// ServeHTTP proxies r to the next healthy backend.
func (p *Pool) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b := p.Next()
	if b == nil {
		pkghttputil.WriteJSON(w, http.StatusServiceUnavailable, pkghttputil.Response{
			Error: &pkghttputil.ErrorResponse{
				Code:      "SERVICE_UNAVAILABLE",
				Message:   "no healthy backend",
				RequestID: logger.CorrelationIDFromContext(r.Context()),
			},
		})
		return
	}
	b.proxy.ServeHTTP(w, r)
}

func (p *Pool) errorHandler(backend string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		logger.WithContext(r.Context(), p.logger).Error("backend error",
			slog.String("backend", backend),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		pkghttputil.WriteJSON(w, http.StatusBadGateway, pkghttputil.Response{
			Error: &pkghttputil.ErrorResponse{
				Code:      "BAD_GATEWAY",
				Message:   "backend unavailable",
				RequestID: logger.CorrelationIDFromContext(r.Context()),
			},
		})
	}
}

// Statuses returns the health of every backend in configuration order.
func (p *Pool) Statuses() []BackendStatus {
	out := make([]BackendStatus, len(p.backends))
	for i, b := range p.backends {
		out[i] = BackendStatus{URL: b.URL.String(), Healthy: b.Healthy()}
	}
	return out
}

// Healthy reports whether at least one backend is healthy.
func (p *Pool) Healthy() bool {
	for _, b := range p.backends {
		if b.Healthy() {
			return true
		}
	}
	return false
}

// CheckHealth probes every backend's /health/live once and updates its state.
func (p *Pool) CheckHealth(ctx context.Context, getter health.Getter) {
	targets := make(map[string]string, len(p.backends))
	for _, b := range p.backends {
		targets[b.URL.String()] = strings.TrimRight(b.URL.String(), "/") + "/health/live"
	}
	results := health.Probe(ctx, getter, targets)
	for _, b := range p.backends {
		res := results[b.URL.String()]
		ok := res.Status == health.StatusUp
		if ok != b.Healthy() {
			p.logger.Warn("backend health changed",
				slog.String("backend", b.URL.String()),
				slog.Bool("healthy", ok),
				slog.String("error", res.Error),
			)
		}
		b.setHealthy(ok)
	}
}

// RunHealthChecks probes the pool every interval until ctx is canceled. Each
// round is bounded by timeout.
func (p *Pool) RunHealthChecks(ctx context.Context, getter health.Getter, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		roundCtx, cancel := context.WithTimeout(ctx, timeout)
		p.CheckHealth(roundCtx, getter)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Package health serves liveness and readiness endpoints and probes the
// health endpoints of other services.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lv-up-Planner/initRepo/pkg/httputil"
)

// DefaultTimeout bounds one readiness check run.
const DefaultTimeout = 5 * time.Second

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
	// StatusDegraded means every critical dependency is up but at least one
	// non-critical dependency (cache, broker) is not.
	StatusDegraded Status = "degraded"
)

type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status    Status `json:"status"`
	Critical  bool   `json:"critical"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type registration struct {
	check    Checker
	critical bool
}

// Handler runs registered checks for /health/ready. Safe for concurrent use.
type Handler struct {
	mu      sync.RWMutex
	checks  map[string]registration
	timeout time.Duration
}

func NewHandler() *Handler {
	return &Handler{checks: make(map[string]registration), timeout: DefaultTimeout}
}

// SetTimeout changes the bound on one Check run.
func (h *Handler) SetTimeout(d time.Duration) {
	h.mu.Lock()
	h.timeout = d
	h.mu.Unlock()
}

// RegisterCritical adds a check whose failure makes the service unready.
// Registering a name again replaces the earlier check.
func (h *Handler) RegisterCritical(name string, check Checker) {
	h.register(name, registration{check: check, critical: true})
}

// RegisterNonCritical adds a check whose failure only degrades the service.
// The cache is registered this way: requests keep working without it.
func (h *Handler) RegisterNonCritical(name string, check Checker) {
	h.register(name, registration{check: check})
}

func (h *Handler) register(name string, reg registration) {
	h.mu.Lock()
	h.checks[name] = reg
	h.mu.Unlock()
}

// Check runs every registered check concurrently and folds the results:
// down if a critical check failed, degraded if only non-critical ones did.
func (h *Handler) Check(ctx context.Context) Response {
	h.mu.RLock()
	regs := make(map[string]registration, len(h.checks))
	for name, reg := range h.checks {
		regs[name] = reg
	}
	timeout := h.timeout
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(regs))
		g       errgroup.Group
	)
	for name, reg := range regs {
		g.Go(func() error {
			start := time.Now()
			res := CheckResult{Status: StatusUp, Critical: reg.critical}
			if err := reg.check(ctx); err != nil {
				res.Status, res.Error = StatusDown, err.Error()
			}
			res.LatencyMS = time.Since(start).Milliseconds()
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Response{Status: fold(results), Timestamp: time.Now().UTC(), Checks: results}
}

func fold(results map[string]CheckResult) Status {
	overall := StatusUp
	for _, r := range results {
		switch {
		case r.Status != StatusDown:
		case r.Critical:
			return StatusDown
		default:
			overall = StatusDegraded
		}
	}
	return overall
}

// LivenessHandler answers 200 while the process can serve HTTP at all.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, Response{Status: StatusUp, Timestamp: time.Now().UTC()})
	}
}

// ReadinessHandler answers 503 when a critical check fails. A degraded
// service still answers 200.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		status := http.StatusOK
		if resp.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}

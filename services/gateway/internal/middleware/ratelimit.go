package middleware

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/Lv-up-Planner/initRepo/pkg/httputil"
	"github.com/Lv-up-Planner/initRepo/pkg/logger"
)

// idleTimeout is how long a client's bucket is kept after its last request.
const idleTimeout = 3 * time.Minute

var rejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "planner",
	Subsystem: "gateway",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the per-client rate limiter.",
})

// RateLimitStats is what /stats shows about the limiter.
type RateLimitStats struct {
	RPS      int   `json:"rps"`
	Burst    int   `json:"burst"`
	Visitors int   `json:"visitors"`
	Rejected int64 `json:"rejected"`
}

// RateLimiter gives every client IP its own token bucket. Buckets idle for
// longer than idleTimeout are dropped, so a returning client starts full.
type RateLimiter struct {
	rps      int
	burst    int
	buckets  *gocache.Cache
	logger   *slog.Logger
	rejected atomic.Int64
}

// NewRateLimiter allows each client rps requests per second on average and
// up to burst at once.
func NewRateLimiter(rps, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		rps:     rps,
		burst:   burst,
		buckets: gocache.New(idleTimeout, idleTimeout),
		logger:  logger,
	}
}

// bucket returns ip's limiter and pushes its expiry back.
func (rl *RateLimiter) bucket(ip string) *rate.Limiter {
	for {
		if v, ok := rl.buckets.Get(ip); ok {
			lim := v.(*rate.Limiter)
			rl.buckets.SetDefault(ip, lim)
			return lim
		}
		lim := rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
		if rl.buckets.Add(ip, lim, gocache.DefaultExpiration) == nil {
			return lim
		}
		// Another request for ip created the bucket first.
	}
}

// Middleware answers 429 with Retry-After once the client's bucket is empty.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.ClientIP(r)
		if rl.bucket(ip).Allow() {
			next.ServeHTTP(w, r)
			return
		}

		rl.rejected.Add(1)
		rejectedTotal.Inc()
		logger.WithContext(r.Context(), rl.logger).Warn("rate limited",
			slog.String("ip", ip),
			slog.String("path", r.URL.Path),
		)
		w.Header().Set("Retry-After", "1")
		httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "RATE_LIMITED", Message: "too many requests"},
		})
	})
}

func (rl *RateLimiter) Stats() RateLimitStats {
	return RateLimitStats{
		RPS:      rl.rps,
		Burst:    rl.burst,
		Visitors: rl.buckets.ItemCount(),
		Rejected: rl.rejected.Load(),
	}
}

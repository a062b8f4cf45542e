// Package stats keeps request statistics for the load balancer over a
// sliding time window.
package stats

import (
	"net/http"
	"sync"
	"time"
)

type sample struct {
	at      time.Time
	latency time.Duration
	success bool
}

// Snapshot summarizes the requests seen so far.
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalSuccesses int64   `json:"total_successes"`
	WindowSeconds  float64 `json:"window_seconds"`
	WindowRequests int     `json:"window_requests"`
	RPS            float64 `json:"requests_per_second"`
	SuccessRate    float64 `json:"success_rate"`
	AvgLatencyMS   float64 `json:"avg_response_time_ms"`
	HasTraffic     bool    `json:"has_real_traffic"`
}

// Collector records request outcomes. Rates and latency are computed over
// the trailing window; the totals cover the process lifetime.
type Collector struct {
	mu        sync.Mutex
	window    time.Duration
	samples   []sample
	total     int64
	successes int64
	now       func() time.Time
}

// NewCollector returns a collector over the given window.
func NewCollector(window time.Duration) *Collector {
	return &Collector{window: window, now: time.Now}
}

// Record adds one request. A status below 400 counts as a success.
func (c *Collector) Record(status int, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	ok := status < http.StatusBadRequest
	c.total++
	if ok {
		c.successes++
	}
	c.samples = append(c.samples, sample{at: now, latency: latency, success: ok})
	c.prune(now)
}

// prune drops samples older than the window. Samples are appended in time
// order so the expired ones form a prefix. Must hold c.mu.
func (c *Collector) prune(now time.Time) {
	cutoff := now.Add(-c.window)
	i := 0
	for i < len(c.samples) && !c.samples[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		c.samples = append(c.samples[:0], c.samples[i:]...)
	}
}

// Snapshot returns the current statistics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune(c.now())

	s := Snapshot{
		TotalRequests:  c.total,
		TotalSuccesses: c.successes,
		WindowSeconds:  c.window.Seconds(),
		WindowRequests: len(c.samples),
		HasTraffic:     len(c.samples) > 0,
	}
	if len(c.samples) == 0 {
		return s
	}

	var (
		latency time.Duration
		ok      int
	)
	for _, smp := range c.samples {
		latency += smp.latency
		if smp.success {
			ok++
		}
	}
	n := float64(len(c.samples))
	s.RPS = n / c.window.Seconds()
	s.SuccessRate = float64(ok) / n * 100
	s.AvgLatencyMS = float64(latency.Microseconds()) / 1000 / n
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records every request except HEAD probes.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		c.Record(rec.status, time.Since(start))
	})
}

package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
)

// maxStatsBody caps how much of a /stats answer is read.
const maxStatsBody = 1 << 20

const (
	ServiceOnline  = "online"
	ServiceOffline = "offline"
)

// ServiceStats is one service's answer to GET /stats. Data is the payload of
// the service's response envelope, passed through as is.
type ServiceStats struct {
	Status    string          `json:"service_status"`
	URL       string          `json:"url"`
	LatencyMS int64           `json:"latency_ms"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Aggregator fetches /stats from every configured service.
type Aggregator struct {
	getter  health.Getter
	targets map[string]string
	timeout time.Duration
}

// NewAggregator returns an Aggregator over services, which maps a name to
// its base URL. Each fetch is bounded by timeout.
func NewAggregator(getter health.Getter, services map[string]string, timeout time.Duration) *Aggregator {
	targets := make(map[string]string, len(services))
	for name, base := range services {
		targets[name] = strings.TrimRight(base, "/") + "/stats"
	}
	return &Aggregator{getter: getter, targets: targets, timeout: timeout}
}

// Collect fetches every service concurrently. A service that cannot be
// reached or answers badly is reported offline; it never fails the others.
func (a *Aggregator) Collect(ctx context.Context) map[string]ServiceStats {
	var (
		mu      sync.Mutex
		results = make(map[string]ServiceStats, len(a.targets))
		g       errgroup.Group
	)
	for name, url := range a.targets {
		g.Go(func() error {
			st := a.fetch(ctx, url)
			mu.Lock()
			results[name] = st
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Aggregator) fetch(ctx context.Context, url string) ServiceStats {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	data, err := a.get(ctx, url)
	st := ServiceStats{Status: ServiceOnline, URL: url, LatencyMS: time.Since(start).Milliseconds(), Data: data}
	if err != nil {
		st.Status = ServiceOffline
		st.Error = err.Error()
	}
	return st
}

func (a *Aggregator) get(ctx context.Context, url string) (json.RawMessage, error) {
	resp, err := a.getter.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatsBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	if len(envelope.Data) == 0 {
		return json.RawMessage(body), nil
	}
	return envelope.Data, nil
}

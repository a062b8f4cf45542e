package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Getter issues a GET request. *httpclient.Client and
// *httpclient.Breaker both satisfy it.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// TargetStatus is the outcome of probing one remote health endpoint.
type TargetStatus struct {
	Status    Status `json:"status"`
	URL       string `json:"url"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HTTPChecker returns a Checker that succeeds when url answers 2xx.
func HTTPChecker(getter Getter, url string) Checker {
	return func(ctx context.Context) error {
		resp, err := getter.Get(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
		}
		return nil
	}
}

// Probe checks every target concurrently and returns one status per name.
// A failing target never cancels the others.
func Probe(ctx context.Context, getter Getter, targets map[string]string) map[string]TargetStatus {
	var (
		mu      sync.Mutex
		results = make(map[string]TargetStatus, len(targets))
		g       errgroup.Group
	)
	for name, url := range targets {
		g.Go(func() error {
			start := time.Now()
			st := TargetStatus{Status: StatusUp, URL: url}
			if err := HTTPChecker(getter, url)(ctx); err != nil {
				st.Status = StatusDown
				st.Error = err.Error()
			}
			st.LatencyMS = time.Since(start).Milliseconds()

			mu.Lock()
			results[name] = st
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Overall folds target statuses into one: down when every target is down,
// degraded when some are, up otherwise.
func Overall(results map[string]TargetStatus) Status {
	down := 0
	for _, r := range results {
		if r.Status == StatusDown {
			down++
		}
	}
	switch {
	case down == 0:
		return StatusUp
	case down == len(results):
		return StatusDown
	default:
		return StatusDegraded
	}
}

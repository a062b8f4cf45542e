package balancer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lv-up-Planner/initRepo/pkg/httpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGetter() *httpclient.Client {
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.Timeout = time.Second
	return httpclient.New(cfg)
}

// namedBackend answers every request with its name; /health/live follows
// the healthy flag.
func namedBackend(t *testing.T, name string, healthy *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health/live" {
			if healthy != nil && !healthy.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = io.WriteString(w, name)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hit(t *testing.T, p *Pool) (int, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	return rr.Code, rr.Body.String()
}

func TestNewPool_Validation(t *testing.T) {
	_, err := NewPool(nil, http.DefaultTransport, testLogger())
	assert.Error(t, err)

	_, err = NewPool([]string{"not-a-url"}, http.DefaultTransport, testLogger())
	assert.Error(t, err)
}

func TestPool_RoundRobin(t *testing.T) {
	a := namedBackend(t, "a", nil)
	b := namedBackend(t, "b", nil)
	p, err := NewPool([]string{a.URL, b.URL}, http.DefaultTransport, testLogger())
	require.NoError(t, err)

	var got []string
	for i := 0; i < 4; i++ {
		code, body := hit(t, p)
		require.Equal(t, http.StatusOK, code)
		got = append(got, body)
	}

	assert.Equal(t, []string{"a", "b", "a", "b"}, got)
}

func TestPool_SkipsUnhealthyBackend(t *testing.T) {
	var bHealthy atomic.Bool
	a := namedBackend(t, "a", nil)
	b := namedBackend(t, "b", &bHealthy)
	p, err := NewPool([]string{a.URL, b.URL}, http.DefaultTransport, testLogger())
	require.NoError(t, err)

	p.CheckHealth(context.Background(), testGetter())

	for i := 0; i < 3; i++ {
		_, body := hit(t, p)
		assert.Equal(t, "a", body)
	}
	assert.Equal(t, []BackendStatus{{URL: a.URL, Healthy: true}, {URL: b.URL, Healthy: false}}, p.Statuses())

	bHealthy.Store(true)
	p.CheckHealth(context.Background(), testGetter())

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		_, body := hit(t, p)
		seen[body] = true
	}
	assert.True(t, seen["a"] && seen["b"])
}

func TestPool_NoHealthyBackend_Returns503(t *testing.T) {
	down := namedBackend(t, "down", nil)
	down.Close()
	p, err := NewPool([]string{down.URL}, http.DefaultTransport, testLogger())
	require.NoError(t, err)

	p.CheckHealth(context.Background(), testGetter())
	assert.False(t, p.Healthy())

	code, body := hit(t, p)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "no healthy backend")
}

func TestPool_BackendErrorBetweenProbes_Returns502(t *testing.T) {
	gone := namedBackend(t, "gone", nil)
	p, err := NewPool([]string{gone.URL}, http.DefaultTransport, testLogger())
	require.NoError(t, err)
	gone.Close()

	code, body := hit(t, p)

	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body, "BAD_GATEWAY")
}

func TestPool_RunHealthChecksStopsOnCancel(t *testing.T) {
	a := namedBackend(t, "a", nil)
	p, err := NewPool([]string{a.URL}, http.DefaultTransport, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.RunHealthChecks(ctx, testGetter(), 10*time.Millisecond, time.Second)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("health loop did not stop")
	}
	assert.True(t, p.Healthy())
}

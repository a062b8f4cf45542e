package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/httpclient"
	"github.com/Lv-up-Planner/initRepo/services/gateway/internal/config"
	gwmiddleware "github.com/Lv-up-Planner/initRepo/services/gateway/internal/middleware"
	"github.com/Lv-up-Planner/initRepo/services/gateway/internal/proxy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serviceEchoServer responds with the service name and the path it received,
// so tests can tell which upstream handled a request.
func serviceEchoServer(serviceName string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service": serviceName,
			"path":    r.URL.Path,
			"method":  r.Method,
		})
	}))
}

type testRouter struct {
	handler http.Handler
	servers map[string]*httptest.Server
	limiter *gwmiddleware.RateLimiter
}

func testConfig(servers map[string]*httptest.Server) *config.Config {
	return &config.Config{
		Environment:          "development",
		RateLimitRPS:         10000,
		RateLimitBurst:       20000,
		CORSAllowedOrigins:   []string{"*"},
		CORSAllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		CORSAllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID"},
		CORSMaxAge:           3600,
		MetricsAllowedCIDRs:  []string{"127.0.0.0/8", "10.0.0.0/8"},
		PprofAllowedCIDRs:    []string{"127.0.0.0/8"},
		AuthServiceURL:       servers["auth"].URL,
		UserServiceURL:       servers["user"].URL,
		BlogServiceURL:       servers["blog"].URL,
		ProxyDialTimeout:     5 * time.Second,
		ProxyResponseTimeout: 30 * time.Second,
		ProxyIdleTimeout:     90 * time.Second,
		ProxyMaxIdleConns:    100,
	}
}

func newTestRouter(t *testing.T, rps, burst int) *testRouter {
	t.Helper()

	servers := make(map[string]*httptest.Server)
	for _, name := range []string{"auth", "user", "blog"} {
		servers[name] = serviceEchoServer(name)
	}
	t.Cleanup(func() {
		for _, s := range servers {
			s.Close()
		}
	})

	cfg := testConfig(servers)
	logger := testLogger()

	limiter := gwmiddleware.NewRateLimiter(rps, burst, logger)

	clientCfg := httpclient.DefaultConfig()
	clientCfg.MaxRetries = 0
	clientCfg.Timeout = 2 * time.Second

	router := NewRouter(cfg, Dependencies{
		Proxy:       proxy.NewServiceProxy(cfg, logger),
		RateLimiter: limiter,
		Stats:       NewStatsHandler(httpclient.New(clientCfg), cfg.Upstreams(), limiter),
		Health:      health.NewHandler(),
	}, logger)

	return &testRouter{handler: router, servers: servers, limiter: limiter}
}

func (tr *testRouter) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rr := httptest.NewRecorder()
	tr.handler.ServeHTTP(rr, req)
	return rr
}

func echoBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestRouter_HealthEndpoints(t *testing.T) {
	tr := newTestRouter(t, 10000, 20000)

	assert.Equal(t, http.StatusOK, tr.do(http.MethodGet, "/health/live").Code)
	assert.Equal(t, http.StatusOK, tr.do(http.MethodGet, "/health/ready").Code)
}

func TestRouter_ProxiesToCorrectUpstream(t *testing.T) {
	tr := newTestRouter(t, 10000, 20000)

	tests := []struct {
		method   string
		path     string
		service  string
		upstream string
	}{
		{http.MethodPost, "/api/login", "auth", "/login"},
		{http.MethodGet, "/api/verify", "auth", "/verify"},
		{http.MethodPost, "/api/verify", "auth", "/verify"},
		{http.MethodPost, "/api/register", "user", "/users"},
		{http.MethodGet, "/api/users/alice", "user", "/users/alice"},
		{http.MethodGet, "/api/users/id/4f1c", "user", "/users/id/4f1c"},
		{http.MethodGet, "/api/posts", "blog", "/api/posts"},
		{http.MethodPatch, "/api/posts/123", "blog", "/api/posts/123"},
		{http.MethodPost, "/api/todos", "blog", "/api/todos"},
		{http.MethodPost, "/api/todos/abc/complete", "blog", "/api/todos/abc/complete"},
		{http.MethodGet, "/api/profile", "blog", "/api/profile"},
		{http.MethodGet, "/api/leaderboard", "blog", "/api/leaderboard"},
		{http.MethodPost, "/api/logout", "blog", "/api/logout"},
		{http.MethodPost, "/api/logout-all", "blog", "/api/logout-all"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := tr.do(tt.method, tt.path)

			require.Equal(t, http.StatusOK, rr.Code)
			body := echoBody(t, rr)
			assert.Equal(t, tt.service, body["service"])
			assert.Equal(t, tt.upstream, body["path"])
			assert.Equal(t, tt.method, body["method"])
		})
	}
}

func TestRouter_UnknownPath_Returns404(t *testing.T) {
	tr := newTestRouter(t, 10000, 20000)

	assert.Equal(t, http.StatusNotFound, tr.do(http.MethodGet, "/nonexistent").Code)
	assert.Equal(t, http.StatusNotFound, tr.do(http.MethodGet, "/api/v1/unknown").Code)
}

func TestRouter_UpstreamDown_Returns502(t *testing.T) {
	tr := newTestRouter(t, 10000, 20000)
	tr.servers["blog"].Close()

	rr := tr.do(http.MethodGet, "/api/leaderboard")

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "BAD_GATEWAY")
	assert.NotEmpty(t, rr.Header().Get("X-Correlation-ID"))
}

func TestRouter_SetsCorrelationID(t *testing.T) {
	tr := newTestRouter(t, 10000, 20000)

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("X-Correlation-ID", "corr-abc")
	rr := httptest.NewRecorder()
	tr.handler.ServeHTTP(rr, req)

	assert.Equal(t, "corr-abc", rr.Header().Get("X-Correlation-ID"))
}

func TestRouter_RateLimited(t *testing.T) {
	tr := newTestRouter(t, 1, 2)

	assert.Equal(t, http.StatusOK, tr.do(http.MethodGet, "/api/posts").Code)
	assert.Equal(t, http.StatusOK, tr.do(http.MethodGet, "/api/posts").Code)

	rr := tr.do(http.MethodGet, "/api/posts")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "RATE_LIMITED")
	assert.Equal(t, int64(1), tr.limiter.Stats().Rejected)
}

func TestRouter_CORSPreflight(t *testing.T) {
	tr := newTestRouter(t, 10000, 20000)

	req := httptest.NewRequest(http.MethodOptions, "/api/todos", nil)
	req.Header.Set("Origin", "https://planner.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	tr.handler.ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Stats_AllUpstreamsUp(t *testing.T) {
	tr := newTestRouter(t, 10000, 20000)

	rr := tr.do(http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, health.StatusUp, body.Data.Status)
	require.Len(t, body.Data.Upstreams, 3)
	assert.Equal(t, tr.servers["user"].URL+"/health/ready", body.Data.Upstreams["user"].URL)
	assert.Equal(t, 10000, body.Data.RateLimit.RPS)
}

func TestRouter_Stats_OneUpstreamDown(t *testing.T) {
	tr := newTestRouter(t, 10000, 20000)
	tr.servers["auth"].Close()

	rr := tr.do(http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, health.StatusDegraded, body.Data.Status)
	assert.Equal(t, health.StatusDown, body.Data.Upstreams["auth"].Status)
	assert.NotEmpty(t, body.Data.Upstreams["auth"].Error)
	assert.Equal(t, health.StatusUp, body.Data.Upstreams["blog"].Status)
}

func TestRouter_Metrics_AllowedIP(t *testing.T) {
	tr := newTestRouter(t, 10000, 20000)

	rr := tr.do(http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestRouter_Metrics_BlockedIP(t *testing.T) {
	tr := newTestRouter(t, 10000, 20000)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.50:12345"
	rr := httptest.NewRecorder()
	tr.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "FORBIDDEN")
}

package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

func testBreaker(name string) *Breaker {
	cfg := DefaultBreakerConfig(name)
	cfg.Timeout = 50 * time.Millisecond
	cfg.MinRequests = 3
	return NewBreaker(New(fastConfig(0)), cfg, slog.New(slog.DiscardHandler))
}

func statusServer(t *testing.T, status *atomic.Int32, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDefaultBreakerConfig(t *testing.T) {
	cfg := DefaultBreakerConfig("auth-service")
	assert.Equal(t, "auth-service", cfg.Name)
	assert.Equal(t, 0.5, cfg.FailureRatio)
	assert.Equal(t, uint32(5), cfg.MinRequests)
}

func TestBreaker_TripsAndRecovers(t *testing.T) {
	var status, calls atomic.Int32
	status.Store(http.StatusInternalServerError)
	srv := statusServer(t, &status, &calls)
	b := testBreaker("trip-recover")

	for range 3 {
		_, err := b.Get(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream answered 500")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())

	status.Store(http.StatusOK)
	time.Sleep(80 * time.Millisecond)
	resp, err := b.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	var status, calls atomic.Int32
	status.Store(http.StatusUnauthorized)
	srv := statusServer(t, &status, &calls)
	b := testBreaker("client-errors")

	for range 5 {
		resp, err := b.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_DoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"data":{"id":"u-1","username":"` + in["username"] + `"}}`))
		case "/rejected":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"invalid credentials"}}`))
		case "/garbled":
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()
	b := testBreaker("users")
	ctx := context.Background()

	req, err := NewJSONRequest(ctx, http.MethodPost, srv.URL+"/ok", map[string]string{"username": "ada"})
	require.NoError(t, err)
	var out struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, b.DoJSON(ctx, req, &out))
	assert.Equal(t, "u-1", out.ID)
	assert.Equal(t, "ada", out.Username)

	req, _ = NewJSONRequest(ctx, http.MethodGet, srv.URL+"/rejected", nil)
	err = b.DoJSON(ctx, req, &out)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, "users: invalid credentials", apperrors.From(err).Message)

	req, _ = NewJSONRequest(ctx, http.MethodGet, srv.URL+"/garbled", nil)
	assert.ErrorContains(t, b.DoJSON(ctx, req, &out), "decode users response")
}

func TestNewJSONRequest(t *testing.T) {
	req, err := NewJSONRequest(context.Background(), http.MethodGet, "http://auth/verify", nil)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))

	_, err = NewJSONRequest(context.Background(), http.MethodPost, "http://auth/login", make(chan int))
	assert.ErrorContains(t, err, "encode request body")

	req, err = NewJSONRequest(context.Background(), http.MethodPost, "http://auth/login", map[string]int{"n": 1})
	require.NoError(t, err)
	require.NotNil(t, req.GetBody)
	body, _ := req.GetBody()
	raw, _ := io.ReadAll(body)
	assert.JSONEq(t, `{"n":1}`, string(raw))
}

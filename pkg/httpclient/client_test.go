package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Lv-up-Planner/initRepo/pkg/logger"
)

// fastConfig retries quickly so tests stay short.
func fastConfig(retries int) Config {
	return Config{
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    5 * time.Millisecond,
		MaxConnsPerHost: 4,
	}
}

// flaky answers failStatus for the first failures calls, then 200.
func flaky(t *testing.T, failures int32, failStatus int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= failures {
			w.WriteHeader(failStatus)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Less(t, cfg.RetryWaitMin, cfg.RetryWaitMax)
}

func TestDo_Retries(t *testing.T) {
	tests := []struct {
		name       string
		failures   int32
		failStatus int
		retries    int
		wantStatus int
		wantCalls  int32
	}{
		{"success first try", 0, 0, 2, http.StatusOK, 1},
		{"recovers from 503", 2, http.StatusServiceUnavailable, 2, http.StatusOK, 3},
		{"gives up with last 5xx", 5, http.StatusBadGateway, 2, http.StatusBadGateway, 3},
		{"501 is final", 1, http.StatusNotImplemented, 2, http.StatusNotImplemented, 1},
		{"4xx is final", 1, http.StatusUnauthorized, 2, http.StatusUnauthorized, 1},
		{"no retries configured", 1, http.StatusInternalServerError, 0, http.StatusInternalServerError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := flaky(t, tt.failures, tt.failStatus)

			resp, err := New(fastConfig(tt.retries)).Get(context.Background(), srv.URL)
			require.NoError(t, err)
			_ = resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestDo_ResendsBodyOnRetry(t *testing.T) {
	srv, calls := flaky(t, 1, http.StatusServiceUnavailable)

	req, err := NewJSONRequest(context.Background(), http.MethodPost, srv.URL, map[string]string{"username": "ada"})
	require.NoError(t, err)
	resp, err := New(fastConfig(1)).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"username":"ada"}`, string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_UnreachableFailsAfterRetries(t *testing.T) {
	_, err := New(fastConfig(2)).Get(context.Background(), "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempt(s)")
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	srv, _ := flaky(t, 100, http.StatusServiceUnavailable)
	cfg := fastConfig(5)
	cfg.RetryWaitMin, cfg.RetryWaitMax = time.Second, time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := New(cfg).Get(ctx, srv.URL)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_PropagatesTraceAndCorrelation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var traceparent, correlation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		correlation = r.Header.Get(logger.CorrelationHeader)
	}))
	defer srv.Close()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))
	ctx = logger.WithCorrelationID(ctx, "corr-42")

	resp, err := New(fastConfig(0)).Get(ctx, srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", traceparent)
	assert.Equal(t, "corr-42", correlation)
}

func TestBackoff(t *testing.T) {
	c := New(Config{RetryWaitMin: 100 * time.Millisecond, RetryWaitMax: time.Second})
	for attempt, base := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second} {
		got := c.backoff(attempt)
		assert.GreaterOrEqual(t, got, base*3/4, "attempt %d", attempt)
		assert.LessOrEqual(t, got, base*5/4, "attempt %d", attempt)
	}
	assert.Zero(t, New(Config{}).backoff(3))
}

func TestRetryableErr(t *testing.T) {
	assert.False(t, retryableErr(context.Canceled))
	assert.False(t, retryableErr(context.DeadlineExceeded))
	assert.False(t, retryableErr(io.ErrUnexpectedEOF))
}

// Package httpclient is the service-to-service HTTP client: bounded retries
// with jittered backoff, trace and correlation propagation, and a circuit
// breaker for calls on a request's critical path.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Lv-up-Planner/initRepo/pkg/logger"
)

type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
}

// DefaultConfig suits calls made while a client request is waiting.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// Client retries transport failures and 5xx answers other than 501.
type Client struct {
	http *http.Client
	cfg  Config
}

func New(cfg Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	transport.MaxIdleConnsPerHost = cfg.MaxConnsPerHost
	transport.MaxConnsPerHost = cfg.MaxConnsPerHost
	return &Client{http: &http.Client{Transport: transport, Timeout: cfg.Timeout}, cfg: cfg}
}

// Do sends req, retrying up to MaxRetries times. Bodies are rewound through
// GetBody before each retry, so requests built by NewJSONRequest are
// replayable. The final 5xx response, if any, is returned with a nil error.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	propagate(ctx, req.Header)

	for attempt := 0; ; attempt++ {
		resp, err := c.http.Do(req)
		last := attempt >= c.cfg.MaxRetries
		switch {
		case err != nil && (last || !retryableErr(err)):
			return nil, fmt.Errorf("%s %s failed after %d attempt(s): %w", req.Method, req.URL.Redacted(), attempt+1, err)
		case err == nil && (last || !retryableStatus(resp.StatusCode)):
			return resp, nil
		case err == nil:
			_ = resp.Body.Close()
		}

		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}
	}
}

func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// backoff doubles from RetryWaitMin up to RetryWaitMax with ±25% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.cfg.RetryWaitMin << min(attempt, 16)
	if c.cfg.RetryWaitMax > 0 && (wait > c.cfg.RetryWaitMax || wait <= 0) {
		wait = c.cfg.RetryWaitMax
	}
	if wait <= 0 {
		return 0
	}
	return wait + time.Duration(float64(wait)*0.25*(2*rand.Float64()-1)) // #nosec G404 -- jitter only
}

// propagate copies the caller's trace context and correlation ID onto an
// outgoing request.
func propagate(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	if id := logger.CorrelationIDFromContext(ctx); id != "" && h.Get(logger.CorrelationHeader) == "" {
		h.Set(logger.CorrelationHeader, id)
	}
}

func retryableStatus(code int) bool {
	return code >= http.StatusInternalServerError && code != http.StatusNotImplemented
}

// retryableErr retries network failures but never the caller's own cancellation.
func retryableErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

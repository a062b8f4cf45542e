package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

func TestRun_StopsWorkersBeforeClosing(t *testing.T) {
	var rec recorder
	s := New(quietLogger())
	s.Listen(&http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second})

	started := make(chan struct{})
	s.Go("consumer", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		rec.add("consumer stopped")
		return ctx.Err()
	})
	s.OnClose("producer", func() error { rec.add("producer"); return nil })
	s.OnClose("postgres", func() error { rec.add("postgres"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, []string{"consumer stopped", "producer", "postgres"}, rec.get())
}

func TestRun_ListenFailureClosesResources(t *testing.T) {
	var rec recorder
	s := New(quietLogger())
	s.Listen(&http.Server{Addr: "not a valid address", ReadHeaderTimeout: time.Second})
	s.OnClose("redis", func() error { rec.add("redis"); return nil })

	err := s.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")
	assert.Equal(t, []string{"redis"}, rec.get())
}

func TestClose_JoinsErrorsAndRunsOnce(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	s := New(quietLogger())
	s.OnClose("kafka", func() error { calls++; return boom })
	s.OnClose("postgres", func() error { calls++; return nil })

	err := s.Close()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "close kafka")
	assert.Equal(t, 2, calls)

	require.NoError(t, s.Close())
	assert.Equal(t, 2, calls)
}

func TestOnCloseContext_HasDeadline(t *testing.T) {
	s := New(quietLogger())
	var deadline time.Time
	s.OnCloseContext("tracer", FlushTimeout, func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	})

	require.NoError(t, s.Close())
	assert.WithinDuration(t, time.Now().Add(FlushTimeout), deadline, time.Second)
}

func TestShutdown_WithoutListener(t *testing.T) {
	closed := false
	s := New(quietLogger())
	s.OnClose("pool", func() error { closed = true; return nil })

	require.NoError(t, s.Shutdown())
	assert.True(t, closed)
}

func TestNewHTTPServer(t *testing.T) {
	srv := NewHTTPServer(8003, http.NotFoundHandler(), 35*time.Second)
	assert.Equal(t, ":8003", srv.Addr)
	assert.Equal(t, 35*time.Second, srv.WriteTimeout)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
}

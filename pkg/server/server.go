// Package server runs a service's HTTP listener next to its background
// workers and releases the service's clients in a fixed order on the way
// down.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	// DrainTimeout bounds how long Shutdown waits for in-flight requests.
	DrainTimeout = 5 * time.Second
	// FlushTimeout is the usual deadline for an OnCloseContext hook.
	FlushTimeout = 3 * time.Second
)

// NewHTTPServer returns the listener settings every service shares. The
// write timeout differs for proxies that wait on an upstream.
func NewHTTPServer(port int, handler http.Handler, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type closer struct {
	name  string
	close func() error
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

// Server owns one HTTP listener, the goroutines that run beside it and the
// resources released after both have stopped.
type Server struct {
	http    *http.Server
	logger  *slog.Logger
	workers []worker

	mu      sync.Mutex
	closers []closer
}

// New returns a Server with nothing to serve yet.
func New(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// Listen sets the HTTP server Run starts.
func (s *Server) Listen(srv *http.Server) {
	s.http = srv
}

// Go registers a worker that Run starts before listening. Its context is
// canceled, and Run waits for it to return, before any resource is closed.
func (s *Server) Go(name string, run func(ctx context.Context) error) {
	s.workers = append(s.workers, worker{name: name, run: run})
}

// OnClose registers fn to run during Close. Hooks run in registration order.
func (s *Server) OnClose(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, closer{name: name, close: fn})
}

// OnCloseContext is OnClose for hooks that take a deadline, such as flushing
// a tracer.
func (s *Server) OnCloseContext(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	s.OnClose(name, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	})
}

// Run serves HTTP and runs the workers until ctx is canceled or the
// listener fails. Either way everything is shut down before it returns.
func (s *Server) Run(ctx context.Context) error {
	workerCtx, stopWorkers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, w := range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("worker stopped", slog.String("worker", w.name), slog.String("error", err.Error()))
			}
		}()
	}

	errCh := make(chan error, 1)
	if s.http != nil {
		go func() {
			s.logger.Info("starting HTTP server", slog.String("addr", s.http.Addr))
			if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case serveErr = <-errCh:
	}
	stopWorkers()
	wg.Wait()

	if serveErr != nil {
		return errors.Join(serveErr, s.Close())
	}
	return s.Shutdown()
}

// Shutdown drains in-flight requests for up to DrainTimeout and then runs
// the close hooks.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	var errs []error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), DrainTimeout)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown failed", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	errs = append(errs, s.Close())

	s.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// Close runs the close hooks without touching the listener, for a service
// that failed to start. Each hook runs at most once.
func (s *Server) Close() error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.close(); err != nil {
			s.logger.Error("close failed", slog.String("component", c.name), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// Package server runs a service's HTTP listener with a global concurrency limit and
// graceful shutdown on context cancellation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"ride-booking/internal/general/logger"
	"ride-booking/internal/general/metrics"
)

const (
	shutdownTimeout     = 10 * time.Second
	defaultWriteTimeout = 15 * time.Second
)

// Options configures one service listener.
type Options struct {
	Service       string // label for metrics and logs
	Port          int
	MaxConcurrent int // <= 0 disables the limiter
	// WriteTimeout must exceed the longest handler deadline; zero uses defaultWriteTimeout.
	WriteTimeout time.Duration
}

// New mounts /metrics on mux and wraps it with instrumentation and the concurrency limiter.
func New(ctx context.Context, opts Options, mux *http.ServeMux) *http.Server {
	mux.Handle("GET /metrics", metrics.Handler())

	handler := metrics.Instrument(opts.Service, mux)
	handler = withConcurrencyLimit(opts.MaxConcurrent, handler)

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

// Serve runs srv until ctx is cancelled or the listener fails. A cancelled ctx triggers a
// graceful shutdown and a nil return.
func Serve(ctx context.Context, log *logger.Logger, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info(ctx, "http_shutdown_started", "Shutting down HTTP server", map[string]any{"addr": srv.Addr})

		shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
			return err
		}
		<-errCh
		return nil

	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"addr": srv.Addr})
		}
		return err
	}
}

// withConcurrencyLimit caps in-flight requests; a request waiting for a slot gives up when
// its client goes away or the server shuts down.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}

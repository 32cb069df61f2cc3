package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/config"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/health"
	middleware "github.com/mohammed-shakir/obras-dashboard/internal/core/middleware"
)

// Routes mounts application handlers.
type Routes interface {
	Routes(r chi.Router)
}

// NewHandler builds the chi router with probes, metrics and the API.
func NewHandler(cfg config.Config, logger *slog.Logger, api Routes, ready map[string]health.ReadinessReporter) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())
	if cfg.MetricsEnabled {
		r.Use(middleware.Metrics())
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(ready))
	api.Routes(r)
	return r
}

// Run serves until ctx is done, then drains in-flight requests for at most
// cfg.ShutdownTimeout. A bind failure is returned before serving starts.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, api Routes, ready map[string]health.ReadinessReporter) error {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           NewHandler(cfg, logger, api, ready),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()
	logger.Info("http listening", "addr", ln.Addr().String())

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}
	grace := cfg.ShutdownTimeout
	if grace <= 0 {
		grace = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	logger.Info("http shutting down", "grace", grace.String())
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

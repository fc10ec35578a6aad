// Command server starts the career-readiness HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpserver "github.com/fairyhunter13/career-readiness/internal/adapter/httpserver"
	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/app"
	"github.com/fairyhunter13/career-readiness/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg, app.Options{Queue: true})
	if err != nil {
		slog.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer c.Close()

	if cfg.SeedFile != "" {
		insert, err := c.InserterFor()
		if err == nil {
			_, err = app.LoadSeed(ctx, insert, cfg.SeedFile)
		}
		if err != nil {
			slog.Error("seeding failed", slog.Any("error", err))
		}
	}

	// Without a queue, triggers run inline here and nobody else sweeps stale locks.
	if c.Producer == nil {
		slog.Info("no queue configured; analysis runs inline in the API process")
		if sw := app.NewStaleLockSweeper(c.Store, c.Trigger, cfg.ProcessingTimeout, cfg.StaleSweepInterval); sw != nil && c.Processing != nil {
			go func() { _ = sw.Run(ctx) }()
		}
	}

	srv := httpserver.NewServer(cfg, c.Trigger, c.Status, c.Quick, c.Resume, c.ReadinessChecks()...)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port), slog.String("store", cfg.StoreBackend))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.Any("error", err))
	}
}

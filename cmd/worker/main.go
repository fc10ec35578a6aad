// Package main provides the worker entry point. The worker consumes analysis
// triggers from Redpanda and runs the pipeline for each.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/career-readiness/internal/app"
	"github.com/fairyhunter13/career-readiness/internal/config"
	"github.com/fairyhunter13/career-readiness/internal/domain"
	"github.com/fairyhunter13/career-readiness/internal/usecase"
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

	if err := run(cfg); err != nil {
		slog.Error("worker stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("worker stopped")
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))
	c, err := app.Build(ctx, cfg, app.Options{Queue: true, RequireAI: true})
	if err != nil {
		return err
	}
	defer c.Close()
	if c.Producer == nil {
		return fmt.Errorf("%w: KAFKA_BROKERS required for the worker", domain.ErrConfig)
	}

	policy := redpanda.DefaultRetryPolicy
	policy.MaxAttempts = cfg.MaxRetryAttempts
	retry := redpanda.NewRetryManager(c.Producer, policy)

	consumer, err := redpanda.NewConsumer(redpanda.ConsumerConfig{
		Brokers:    cfg.KafkaBrokers,
		GroupID:    cfg.ConsumerGroup,
		MaxWorkers: cfg.ConsumerMaxConcurrency,
	}, handler(c.Processing), retry)
	if err != nil {
		return err
	}
	defer consumer.Close()

	sweeper := app.NewStaleLockSweeper(c.Store, c.Trigger, cfg.ProcessingTimeout, cfg.StaleSweepInterval)

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting redpanda consumer", slog.String("group", cfg.ConsumerGroup))
		return consumer.Start(gctx)
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	if c.Cleanup != nil {
		g.Go(func() error {
			c.Cleanup.RunPeriodic(gctx, cfg.CleanupInterval)
			return nil
		})
	}
	g.Go(func() error {
		slog.Info("worker metrics listening", slog.Int("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("op=worker.metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	slog.Info("worker started, waiting for shutdown signal")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// handler adapts the pipeline to the consumer. Guard outcomes are successes:
// the record is done, exhausted, or held by another worker.
func handler(p *usecase.ProcessingService) redpanda.Handler {
	return func(ctx context.Context, task domain.AnalysisTask) error {
		out, err := p.Run(ctx, task.AssessmentID, task.AssessmentType)
		if err != nil {
			return err
		}
		observability.Logger(ctx).Info("analysis trigger handled",
			slog.String("outcome", string(out)),
			slog.Int("attempt", task.Attempt),
			slog.String("reason", task.Reason))
		return nil
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/bootstrap"
	"github.com/kirillkom/tutorial-pipeline/internal/config"
	"github.com/kirillkom/tutorial-pipeline/internal/observability/logging"
	"github.com/kirillkom/tutorial-pipeline/internal/observability/metrics"
	"github.com/kirillkom/tutorial-pipeline/internal/worker"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app.Engine.WithObserver(workerMetrics)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	consumer := worker.NewConsumer(app.Submissions, app.Advancer, app.Queue, app.RetryUC, worker.Options{
		AdvanceTimeout:  cfg.WorkerAdvanceTimeout,
		RedriveInterval: cfg.RedriveInterval,
		RedriveBatch:    cfg.RedriveBatchSize,
		Recorder:        workerMetrics,
	})
	go consumer.RunRedrive(ctx)

	slog.Info("worker_started",
		"metrics_addr", metricsServer.Addr,
		"redrive_interval", cfg.RedriveInterval.String(),
	)
	if err := app.Queue.SubscribeSubmissionReceived(ctx, consumer.Handle); err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		return
	}
	slog.Info("worker_stopped")
}

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

	httpadapter "github.com/kirillkom/tutorial-pipeline/internal/adapters/http"
	"github.com/kirillkom/tutorial-pipeline/internal/bootstrap"
	"github.com/kirillkom/tutorial-pipeline/internal/config"
	"github.com/kirillkom/tutorial-pipeline/internal/observability/logging"
	"github.com/kirillkom/tutorial-pipeline/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.AdminAPIKey == "" {
		slog.Warn("admin_auth_disabled", "reason", "ADMIN_API_KEY is empty")
	}

	opts := []httpadapter.Option{httpadapter.WithMetrics(metrics.NewHTTPServerMetrics("api"))}
	if app.Media != nil {
		opts = append(opts, httpadapter.WithMedia(app.Media))
	}
	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Ingestor: app.IngestUC,
		Reader:   app.Submissions,
		Advancer: app.Advancer,
		Retrier:  app.RetryUC,
		Reporter: app.ReportUC,
	}, opts...)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.PipelineBudget + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}

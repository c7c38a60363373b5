package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/tutorial-pipeline/internal/adapters/mcp"
	"github.com/kirillkom/tutorial-pipeline/internal/bootstrap"
	"github.com/kirillkom/tutorial-pipeline/internal/config"
	"github.com/kirillkom/tutorial-pipeline/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(app.IngestUC, app.Submissions, app.Advancer)
	if err := tools.ServeStdio(); err != nil {
		slog.Error("mcp_server_failed", "error", err)
	}
}

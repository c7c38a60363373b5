package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kirillkom/tutorial-pipeline/internal/bootstrap"
	"github.com/kirillkom/tutorial-pipeline/internal/config"
	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/observability/logging"
)

func withApp(ctx context.Context, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg := config.Load()
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "tutorialctl", level))

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()
	return fn(ctx, app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseStatuses(values []string) ([]domain.SubmissionStatus, error) {
	out := make([]domain.SubmissionStatus, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			status := domain.SubmissionStatus(part)
			if !knownStatus(status) {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			out = append(out, status)
		}
	}
	return out, nil
}

func knownStatus(status domain.SubmissionStatus) bool {
	switch status {
	case domain.StatusReceived,
		domain.StatusExtracting, domain.StatusExtracted,
		domain.StatusClassifying, domain.StatusClassified,
		domain.StatusGenerating, domain.StatusGenerated,
		domain.StatusPublishing, domain.StatusPublished,
		domain.StatusFailed, domain.StatusDead:
		return true
	default:
		return false
	}
}

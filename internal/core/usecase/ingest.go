package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
)

type IngestSubmissionUseCase struct {
	repo       ports.SubmissionRepository
	queue      ports.MessageQueue
	maxRetries int
}

func NewIngestSubmissionUseCase(
	repo ports.SubmissionRepository,
	queue ports.MessageQueue,
	maxRetries int,
) *IngestSubmissionUseCase {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &IngestSubmissionUseCase{
		repo:       repo,
		queue:      queue,
		maxRetries: maxRetries,
	}
}

// Submit stores a received submission and announces it on the queue. When the
// queue is down the row is kept, so a later redrive still picks it up.
func (uc *IngestSubmissionUseCase) Submit(ctx context.Context, req ports.SubmitRequest) (*domain.Submission, error) {
	rawURL, err := domain.NormalizeURL(req.URL)
	if err != nil {
		return nil, err
	}
	channel := req.Channel
	if channel == "" {
		channel = domain.ChannelAPI
	}
	now := time.Now().UTC()

	sub := &domain.Submission{
		ID:         uuid.NewString(),
		URL:        rawURL,
		SourceType: domain.DetectSourceType(rawURL),
		Channel:    channel,
		Sender:     strings.TrimSpace(req.Sender),
		HotNews:    req.HotNews,
		Status:     domain.StatusReceived,
		LastStep:   domain.StatusReceived,
		MaxRetries: uc.maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	if err := uc.queue.PublishSubmissionReceived(ctx, sub.ID); err != nil {
		uc.parkForRedrive(ctx, sub, err)
		return sub, fmt.Errorf("publish submission event: %w", err)
	}

	return sub, nil
}

// parkForRedrive marks an unqueued submission failed at received so the
// failed-submission sweeper republishes it.
func (uc *IngestSubmissionUseCase) parkForRedrive(ctx context.Context, sub *domain.Submission, cause error) {
	update := domain.SubmissionUpdate{
		Status:    domain.Ptr(domain.StatusFailed),
		LastError: domain.Ptr("queue publish failed: " + cause.Error()),
	}
	if err := uc.repo.Update(context.WithoutCancel(ctx), sub.ID, update); err != nil {
		slog.Error("submission_park_failed", "submission_id", sub.ID, "error", err)
		return
	}
	*sub = update.Apply(*sub)
	slog.Warn("submission_parked_for_redrive", "submission_id", sub.ID, "error", cause)
}

var firstURLRe = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"']+`)

// ExtractFirstURL returns the first http(s) URL in a free-form message body,
// without trailing punctuation.
func ExtractFirstURL(text string) (string, bool) {
	match := firstURLRe.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.TrimRight(match, ".,;:!?)]}"), true
}

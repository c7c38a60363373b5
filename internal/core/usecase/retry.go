package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
)

const (
	defaultRedriveLimit = 100
	defaultStaleAfter   = 3 * time.Minute
)

// stallableStatuses are the non-terminal statuses a crashed worker or a lost
// queue message can leave behind. Received rows are owned by ingest.
var stallableStatuses = []domain.SubmissionStatus{
	domain.StatusExtracting,
	domain.StatusExtracted,
	domain.StatusClassifying,
	domain.StatusClassified,
	domain.StatusGenerating,
	domain.StatusGenerated,
	domain.StatusPublishing,
}

type RetrySubmissionUseCase struct {
	repo       ports.SubmissionRepository
	queue      ports.MessageQueue
	staleAfter time.Duration
	now        func() time.Time
}

// NewRetrySubmissionUseCase builds the retrier. staleAfter is how long an
// in-flight row may go without an update before it counts as stalled; it must
// exceed both the lease TTL and the worker advance timeout.
func NewRetrySubmissionUseCase(repo ports.SubmissionRepository, queue ports.MessageQueue, staleAfter time.Duration) *RetrySubmissionUseCase {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &RetrySubmissionUseCase{repo: repo, queue: queue, staleAfter: staleAfter, now: time.Now}
}

func (uc *RetrySubmissionUseCase) stale(sub *domain.Submission) bool {
	return isStallable(sub.Status) && uc.now().Sub(sub.UpdatedAt) >= uc.staleAfter
}

func isStallable(status domain.SubmissionStatus) bool {
	for _, s := range stallableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Retry re-arms a failed, dead or stalled submission. Without fromScratch it
// resumes at last_step; with fromScratch every intermediate payload is cleared.
func (uc *RetrySubmissionUseCase) Retry(ctx context.Context, submissionID string, fromScratch bool) (*domain.Submission, error) {
	sub, err := uc.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("fetch submission by id: %w", err)
	}
	if sub.Status != domain.StatusFailed && sub.Status != domain.StatusDead && !uc.stale(sub) {
		return nil, domain.WrapError(
			domain.ErrNotRetryable,
			"retry submission",
			fmt.Errorf("status is %s", sub.Status),
		)
	}

	var update domain.SubmissionUpdate
	if fromScratch {
		update = domain.SubmissionUpdate{
			Status:        domain.Ptr(domain.StatusReceived),
			LastStep:      domain.Ptr(domain.StatusReceived),
			LastError:     domain.Ptr(""),
			RetryCount:    domain.Ptr(0),
			ClearPayloads: true,
		}
	} else {
		update = domain.SubmissionUpdate{Status: domain.Ptr(domain.StatusFailed)}
		if sub.Status == domain.StatusDead {
			update.RetryCount = domain.Ptr(0)
		}
	}

	if err := uc.repo.Update(ctx, sub.ID, update); err != nil {
		return nil, fmt.Errorf("reset submission: %w", err)
	}
	updated := update.Apply(*sub)

	if err := uc.queue.PublishSubmissionReceived(ctx, sub.ID); err != nil {
		return &updated, fmt.Errorf("publish submission event: %w", err)
	}
	slog.Info("submission_retried", "submission_id", sub.ID, "from_scratch", fromScratch, "last_step", string(sub.LastStep))
	return &updated, nil
}

// RedriveFailed republishes failed submissions, then stalled in-flight ones,
// and reports how many were queued. The engine resumes both from their
// recorded status.
func (uc *RetrySubmissionUseCase) RedriveFailed(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultRedriveLimit
	}
	subs, err := uc.repo.ListByStatus(ctx, []domain.SubmissionStatus{domain.StatusFailed}, limit)
	if err != nil {
		return 0, fmt.Errorf("list failed submissions: %w", err)
	}
	stalled := 0
	if rest := limit - len(subs); rest > 0 {
		cutoff := uc.now().Add(-uc.staleAfter)
		stuck, err := uc.repo.ListStale(ctx, stallableStatuses, cutoff, rest)
		if err != nil {
			return 0, fmt.Errorf("list stalled submissions: %w", err)
		}
		stalled = len(stuck)
		subs = append(subs, stuck...)
	}

	queued := 0
	var errs []error
	for _, sub := range subs {
		if err := uc.queue.PublishSubmissionReceived(ctx, sub.ID); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", sub.ID, err))
			continue
		}
		queued++
	}
	if queued > 0 {
		slog.Info("failed_submissions_redriven", "queued", queued, "listed", len(subs), "stalled", stalled)
	}
	return queued, errors.Join(errs...)
}

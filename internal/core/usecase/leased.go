package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
)

const defaultLeaseTTL = 2 * time.Minute

// LeasedAdvancer serializes Advance calls per submission id through a lease.
type LeasedAdvancer struct {
	next   ports.SubmissionAdvancer
	locker ports.SubmissionLocker
	ttl    time.Duration
}

func NewLeasedAdvancer(next ports.SubmissionAdvancer, locker ports.SubmissionLocker, ttl time.Duration) *LeasedAdvancer {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &LeasedAdvancer{next: next, locker: locker, ttl: ttl}
}

func (a *LeasedAdvancer) Advance(ctx context.Context, submissionID string, opts domain.AdvanceOptions) (domain.PipelineResult, error) {
	if a.locker == nil {
		return a.next.Advance(ctx, submissionID, opts)
	}

	release, err := a.locker.Acquire(ctx, submissionID, a.ttl)
	if err != nil {
		return domain.PipelineResult{}, fmt.Errorf("acquire submission lease: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("submission_lease_release_failed", "submission_id", submissionID, "error", err)
		}
	}()

	return a.next.Advance(ctx, submissionID, opts)
}

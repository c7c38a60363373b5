package ports

import (
	"context"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

// SubmitRequest is the input of a new submission.
type SubmitRequest struct {
	URL     string
	Channel domain.Channel
	Sender  string
	HotNews bool
}

// SubmissionIngestor accepts new URLs and schedules them for processing.
type SubmissionIngestor interface {
	Submit(ctx context.Context, req SubmitRequest) (*domain.Submission, error)
}

// SubmissionReader is the inbound read model for submission state.
type SubmissionReader interface {
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
}

// SubmissionAdvancer drives a submission through the pipeline.
type SubmissionAdvancer interface {
	Advance(ctx context.Context, submissionID string, opts domain.AdvanceOptions) (domain.PipelineResult, error)
}

// SubmissionRetrier re-drives failed, dead and stalled submissions.
type SubmissionRetrier interface {
	Retry(ctx context.Context, submissionID string, fromScratch bool) (*domain.Submission, error)
	RedriveFailed(ctx context.Context, limit int) (int, error)
}

// SubmissionReporter exports submissions for operators.
type SubmissionReporter interface {
	Export(ctx context.Context, statuses []domain.SubmissionStatus, limit int) ([]byte, error)
}

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
	"github.com/kirillkom/tutorial-pipeline/internal/core/usecase"
)

const (
	DefaultAdvanceTimeout  = 90 * time.Second
	DefaultRedriveInterval = 5 * time.Minute
	DefaultRedriveBatch    = 50
)

// Recorder receives worker-level measurements.
type Recorder interface {
	StartAdvance()
	FinishAdvance(status string, duration time.Duration)
	ObserveQueueLag(lag time.Duration)
	RecordRedrive(count int)
}

type Options struct {
	AdvanceTimeout  time.Duration
	RedriveInterval time.Duration
	RedriveBatch    int
	Recorder        Recorder
}

// Consumer advances submissions announced on the queue and periodically
// re-drives failed ones.
type Consumer struct {
	reader   ports.SubmissionReader
	advancer ports.SubmissionAdvancer
	queue    ports.MessageQueue
	retrier  ports.SubmissionRetrier
	recorder Recorder
	opts     Options
	now      func() time.Time
}

func NewConsumer(
	reader ports.SubmissionReader,
	advancer ports.SubmissionAdvancer,
	queue ports.MessageQueue,
	retrier ports.SubmissionRetrier,
	opts Options,
) *Consumer {
	if opts.AdvanceTimeout <= 0 {
		opts.AdvanceTimeout = DefaultAdvanceTimeout
	}
	if opts.RedriveInterval <= 0 {
		opts.RedriveInterval = DefaultRedriveInterval
	}
	if opts.RedriveBatch <= 0 {
		opts.RedriveBatch = DefaultRedriveBatch
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Consumer{
		reader:   reader,
		advancer: advancer,
		queue:    queue,
		retrier:  retrier,
		recorder: recorder,
		opts:     opts,
		now:      time.Now,
	}
}

// Handle runs one leased advance for submissionID. A stop for lack of budget
// republishes the id so the next delivery resumes where this one stopped.
func (c *Consumer) Handle(ctx context.Context, submissionID string) error {
	sub, err := c.reader.GetByID(ctx, submissionID)
	if err != nil {
		if domain.IsKind(err, domain.ErrSubmissionNotFound) {
			slog.Warn("worker_submission_missing", "submission_id", submissionID)
			return nil
		}
		return fmt.Errorf("load submission: %w", err)
	}
	if sub.Status.IsTerminal() {
		slog.Debug("worker_submission_skipped", "submission_id", submissionID, "status", string(sub.Status))
		return nil
	}
	if sub.StartedAt == nil {
		c.recorder.ObserveQueueLag(c.now().Sub(sub.CreatedAt))
	}

	advanceCtx, cancel := context.WithTimeout(ctx, c.opts.AdvanceTimeout)
	defer cancel()

	start := c.now()
	c.recorder.StartAdvance()
	result, err := c.advancer.Advance(advanceCtx, submissionID, domain.AdvanceOptions{HotNews: sub.HotNews})
	if err != nil {
		c.recorder.FinishAdvance("error", c.now().Sub(start))
		if domain.IsKind(err, domain.ErrLeaseHeld) {
			slog.Info("worker_submission_leased_elsewhere", "submission_id", submissionID)
			return nil
		}
		return fmt.Errorf("advance submission: %w", err)
	}
	c.recorder.FinishAdvance(string(result.Status), c.now().Sub(start))

	switch {
	case usecase.IsBudgetExhausted(result):
		if err := c.queue.PublishSubmissionReceived(ctx, submissionID); err != nil {
			return fmt.Errorf("requeue submission after budget exhaustion: %w", err)
		}
		slog.Info("worker_submission_requeued", "submission_id", submissionID, "status", string(result.Status))
	case result.Success:
		slog.Info("worker_submission_published", "submission_id", submissionID, "tutorial_id", result.TutorialID)
	default:
		slog.Warn("worker_submission_stopped",
			"submission_id", submissionID,
			"status", string(result.Status),
			"error", result.Error,
		)
	}
	return nil
}

// RunRedrive republishes failed submissions every interval until ctx ends.
func (c *Consumer) RunRedrive(ctx context.Context) {
	ticker := time.NewTicker(c.opts.RedriveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.redriveOnce(ctx)
		}
	}
}

func (c *Consumer) redriveOnce(ctx context.Context) {
	queued, err := c.retrier.RedriveFailed(ctx, c.opts.RedriveBatch)
	c.recorder.RecordRedrive(queued)
	if err != nil {
		slog.Error("worker_redrive_failed", "queued", queued, "error", err)
	}
}

type noopRecorder struct{}

func (noopRecorder) StartAdvance()                       {}
func (noopRecorder) FinishAdvance(string, time.Duration) {}
func (noopRecorder) ObserveQueueLag(time.Duration)       {}
func (noopRecorder) RecordRedrive(int)                   {}

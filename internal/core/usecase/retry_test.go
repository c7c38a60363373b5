package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

func TestRetryResumesAtLastStep(t *testing.T) {
	repo := newSubmissionRepoFake(domain.Submission{
		ID:            "sub-1",
		Status:        domain.StatusDead,
		LastStep:      domain.StatusGenerating,
		RetryCount:    3,
		ExtractedText: domain.Ptr("text"),
	})
	queue := &queueFake{}
	uc := NewRetrySubmissionUseCase(repo, queue, 0)

	sub, err := uc.Retry(context.Background(), "sub-1", false)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if sub.Status != domain.StatusFailed || sub.LastStep != domain.StatusGenerating || sub.RetryCount != 0 {
		t.Fatalf("unexpected retried submission: %+v", sub)
	}
	if sub.ExtractedText == nil {
		t.Fatalf("payloads must survive a resume retry")
	}
	if len(queue.published) != 1 {
		t.Fatalf("expected republish, got %v", queue.published)
	}
}

func TestRetryFromScratchClearsPayloads(t *testing.T) {
	cls := sampleClassification("go")
	repo := newSubmissionRepoFake(domain.Submission{
		ID:             "sub-1",
		Status:         domain.StatusFailed,
		LastStep:       domain.StatusPublishing,
		RetryCount:     1,
		ExtractedText:  domain.Ptr("text"),
		Classification: &cls,
	})
	uc := NewRetrySubmissionUseCase(repo, &queueFake{}, 0)

	if _, err := uc.Retry(context.Background(), "sub-1", true); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	stored := repo.get("sub-1")
	if stored.Status != domain.StatusReceived || stored.LastStep != domain.StatusReceived || stored.RetryCount != 0 {
		t.Fatalf("unexpected reset: %+v", stored)
	}
	if stored.ExtractedText != nil || stored.Classification != nil || stored.GeneratedTutorial != nil {
		t.Fatalf("expected payloads cleared: %+v", stored)
	}
}

func TestRetryRejectsActiveSubmission(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newSubmissionRepoFake(domain.Submission{ID: "sub-1", Status: domain.StatusClassifying, UpdatedAt: now.Add(-time.Minute)})
	uc := NewRetrySubmissionUseCase(repo, &queueFake{}, 5*time.Minute)
	uc.now = func() time.Time { return now }

	if _, err := uc.Retry(context.Background(), "sub-1", false); !domain.IsKind(err, domain.ErrNotRetryable) {
		t.Fatalf("expected not retryable, got %v", err)
	}
}

func TestRetryAcceptsStalledSubmission(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status domain.SubmissionStatus
	}{
		{name: "in progress", status: domain.StatusGenerating},
		{name: "step done", status: domain.StatusClassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newSubmissionRepoFake(domain.Submission{
				ID:         "sub-1",
				Status:     tt.status,
				LastStep:   tt.status,
				RetryCount: 1,
				UpdatedAt:  now.Add(-10 * time.Minute),
			})
			queue := &queueFake{}
			uc := NewRetrySubmissionUseCase(repo, queue, 5*time.Minute)
			uc.now = func() time.Time { return now }

			sub, err := uc.Retry(context.Background(), "sub-1", false)
			if err != nil {
				t.Fatalf("Retry() error = %v", err)
			}
			if sub.Status != domain.StatusFailed || sub.LastStep != tt.status || sub.RetryCount != 1 {
				t.Fatalf("unexpected retried submission: %+v", sub)
			}
			if len(queue.published) != 1 {
				t.Fatalf("expected republish, got %v", queue.published)
			}
		})
	}
}

func TestRedriveFailedIncludesStalledSubmissions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newSubmissionRepoFake(
		domain.Submission{ID: "failed", Status: domain.StatusFailed, UpdatedAt: now},
		domain.Submission{ID: "stuck-running", Status: domain.StatusExtracting, UpdatedAt: now.Add(-time.Hour)},
		domain.Submission{ID: "stuck-done", Status: domain.StatusGenerated, UpdatedAt: now.Add(-6 * time.Minute)},
		domain.Submission{ID: "live", Status: domain.StatusClassifying, UpdatedAt: now.Add(-time.Minute)},
		domain.Submission{ID: "queued", Status: domain.StatusReceived, UpdatedAt: now.Add(-time.Hour)},
		domain.Submission{ID: "done", Status: domain.StatusPublished, UpdatedAt: now.Add(-time.Hour)},
	)
	queue := &queueFake{}
	uc := NewRetrySubmissionUseCase(repo, queue, 5*time.Minute)
	uc.now = func() time.Time { return now }

	queued, err := uc.RedriveFailed(context.Background(), 10)
	if err != nil {
		t.Fatalf("RedriveFailed() error = %v", err)
	}
	got := make(map[string]bool)
	for _, id := range queue.published {
		got[id] = true
	}
	if queued != 3 || len(got) != 3 || !got["failed"] || !got["stuck-running"] || !got["stuck-done"] {
		t.Fatalf("expected failed and stalled rows queued, got %d %v", queued, queue.published)
	}
	for _, status := range repo.staleListed {
		if status == domain.StatusReceived || status.IsTerminal() || status == domain.StatusFailed {
			t.Fatalf("stale listing must only cover in-flight statuses, got %v", repo.staleListed)
		}
	}
}

func TestRedriveFailedSkipsStaleListingWhenBatchIsFull(t *testing.T) {
	repo := newSubmissionRepoFake(
		domain.Submission{ID: "a", Status: domain.StatusFailed},
		domain.Submission{ID: "b", Status: domain.StatusExtracting},
	)
	uc := NewRetrySubmissionUseCase(repo, &queueFake{}, 0)

	queued, err := uc.RedriveFailed(context.Background(), 1)
	if err != nil || queued != 1 {
		t.Fatalf("RedriveFailed() = %d, %v", queued, err)
	}
	if repo.staleListed != nil {
		t.Fatalf("stale rows must wait for the next batch, got listing %v", repo.staleListed)
	}
}

func TestRedriveFailed(t *testing.T) {
	repo := newSubmissionRepoFake(
		domain.Submission{ID: "a", Status: domain.StatusFailed},
		domain.Submission{ID: "b", Status: domain.StatusDead},
		domain.Submission{ID: "c", Status: domain.StatusFailed},
	)
	queue := &queueFake{}
	uc := NewRetrySubmissionUseCase(repo, queue, 0)

	queued, err := uc.RedriveFailed(context.Background(), 0)
	if err != nil {
		t.Fatalf("RedriveFailed() error = %v", err)
	}
	if queued != 2 || len(queue.published) != 2 {
		t.Fatalf("expected 2 queued, got %d %v", queued, queue.published)
	}
	if len(repo.listed) != 1 || repo.listed[0] != domain.StatusFailed {
		t.Fatalf("expected listing of failed submissions, got %v", repo.listed)
	}
}

type advancerFake struct {
	calls int
}

func (f *advancerFake) Advance(context.Context, string, domain.AdvanceOptions) (domain.PipelineResult, error) {
	f.calls++
	return domain.PipelineResult{Success: true, Status: domain.StatusPublished}, nil
}

type lockerFake struct {
	held     bool
	released int
	ttl      time.Duration
}

func (f *lockerFake) Acquire(_ context.Context, id string, ttl time.Duration) (func(context.Context) error, error) {
	if f.held {
		return nil, domain.WrapError(domain.ErrLeaseHeld, "acquire lease", errors.New(id))
	}
	f.ttl = ttl
	return func(context.Context) error {
		f.released++
		return nil
	}, nil
}

func TestLeasedAdvancer(t *testing.T) {
	next := &advancerFake{}
	locker := &lockerFake{}
	a := NewLeasedAdvancer(next, locker, 0)

	result, err := a.Advance(context.Background(), "sub-1", domain.AdvanceOptions{})
	if err != nil || !result.Success {
		t.Fatalf("Advance() = %+v, %v", result, err)
	}
	if next.calls != 1 || locker.released != 1 || locker.ttl != defaultLeaseTTL {
		t.Fatalf("unexpected lease handling: calls=%d released=%d ttl=%s", next.calls, locker.released, locker.ttl)
	}

	locker.held = true
	if _, err := a.Advance(context.Background(), "sub-1", domain.AdvanceOptions{}); !domain.IsKind(err, domain.ErrLeaseHeld) {
		t.Fatalf("expected lease held, got %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("advance must not run without the lease")
	}
}

type reportWriterFake struct {
	rows int
}

func (f *reportWriterFake) WriteSubmissions(subs []domain.Submission) ([]byte, error) {
	f.rows = len(subs)
	return []byte("xlsx"), nil
}

func TestReportExport(t *testing.T) {
	repo := newSubmissionRepoFake(
		domain.Submission{ID: "a", Status: domain.StatusDead},
		domain.Submission{ID: "b", Status: domain.StatusPublished},
	)
	writer := &reportWriterFake{}
	uc := NewReportUseCase(repo, writer)

	data, err := uc.Export(context.Background(), []domain.SubmissionStatus{domain.StatusDead}, 0)
	if err != nil || string(data) != "xlsx" || writer.rows != 1 {
		t.Fatalf("Export() = %q, %v rows=%d", data, err, writer.rows)
	}
}

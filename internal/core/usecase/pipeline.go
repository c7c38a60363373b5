package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/failure"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
)

const (
	StepExtract  = "extract"
	StepClassify = "classify"
	StepGenerate = "generate"
	StepPublish  = "publish"

	DefaultBudget         = 55 * time.Second
	DefaultMaxStepRetries = 2
	DefaultMaxRetries     = 3

	budgetExhaustedPrefix = "Budget exhausted at step: "
)

// StepResult is what a step hands back to the engine: the status to move to
// and the payload fields to persist with it.
type StepResult struct {
	Next    domain.SubmissionStatus
	Updates domain.SubmissionUpdate
}

type StepFunc func(ctx context.Context, sub domain.Submission, opts domain.AdvanceOptions) (StepResult, error)

// StepSet binds the four fixed pipeline stages.
type StepSet struct {
	Extract  StepFunc
	Classify StepFunc
	Generate StepFunc
	Publish  StepFunc
}

// StepObserver receives per-attempt outcomes; metrics implement it.
type StepObserver interface {
	ObserveStep(step string, outcome string, duration time.Duration)
}

type PipelineConfig struct {
	Budget         time.Duration
	MaxStepRetries int
	MaxRetries     int
}

func (c PipelineConfig) normalize() PipelineConfig {
	out := c
	if out.Budget <= 0 {
		out.Budget = DefaultBudget
	}
	// Zero step retries means a single attempt per step.
	if out.MaxStepRetries < 0 {
		out.MaxStepRetries = DefaultMaxStepRetries
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = DefaultMaxRetries
	}
	return out
}

type stage struct {
	name       string
	inProgress domain.SubmissionStatus
	done       domain.SubmissionStatus
	run        StepFunc
}

type PipelineEngine struct {
	repo       ports.SubmissionRepository
	stages     []stage
	classifier *failure.Classifier
	observer   StepObserver
	cfg        PipelineConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPipelineEngine(
	repo ports.SubmissionRepository,
	steps StepSet,
	classifier *failure.Classifier,
	cfg PipelineConfig,
) *PipelineEngine {
	if classifier == nil {
		classifier = failure.NewClassifier()
	}
	return &PipelineEngine{
		repo: repo,
		stages: []stage{
			{name: StepExtract, inProgress: domain.StatusExtracting, done: domain.StatusExtracted, run: steps.Extract},
			{name: StepClassify, inProgress: domain.StatusClassifying, done: domain.StatusClassified, run: steps.Classify},
			{name: StepGenerate, inProgress: domain.StatusGenerating, done: domain.StatusGenerated, run: steps.Generate},
			{name: StepPublish, inProgress: domain.StatusPublishing, done: domain.StatusPublished, run: steps.Publish},
		},
		classifier: classifier,
		cfg:        cfg.normalize(),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// WithObserver attaches a step observer and returns the engine.
func (e *PipelineEngine) WithObserver(observer StepObserver) *PipelineEngine {
	e.observer = observer
	return e
}

// Advance runs steps until the submission is published, fails, or the budget
// no longer covers starting another step. Step failures are reported in the
// result; the returned error is reserved for storage problems.
func (e *PipelineEngine) Advance(ctx context.Context, submissionID string, opts domain.AdvanceOptions) (domain.PipelineResult, error) {
	start := e.now()
	budget := opts.Budget
	if budget == 0 {
		budget = e.cfg.Budget
	}

	sub, err := e.load(ctx, submissionID)
	if err != nil {
		return domain.PipelineResult{}, err
	}
	if sub.Status.IsTerminal() {
		return resultFor(sub), nil
	}
	opts.HotNews = opts.HotNews || sub.HotNews

	for {
		st, ok := e.resolve(sub)
		if !ok {
			return resultFor(sub), nil
		}

		if elapsed := e.now().Sub(start); elapsed > budget {
			slog.Info("pipeline_budget_exhausted",
				"submission_id", sub.ID,
				"step", st.name,
				"elapsed_ms", elapsed.Milliseconds(),
			)
			return domain.PipelineResult{
				Success: false,
				Status:  sub.Status,
				Error:   budgetExhaustedPrefix + st.name,
			}, nil
		}

		begin := domain.SubmissionUpdate{
			Status:   domain.Ptr(st.inProgress),
			LastStep: domain.Ptr(st.inProgress),
		}
		if sub.StartedAt == nil {
			begin.StartedAt = domain.Ptr(e.now().UTC())
		}
		if err := e.repo.Update(ctx, sub.ID, begin); err != nil {
			return domain.PipelineResult{}, fmt.Errorf("set status=%s: %w", st.inProgress, err)
		}
		snapshot := begin.Apply(*sub)

		out, stepErr := e.runWithRetries(ctx, st, snapshot, opts, start, budget)
		if stepErr != nil {
			return e.fail(ctx, &snapshot, stepErr)
		}

		next := out.Next
		if next == "" {
			next = st.done
		}
		done := domain.SubmissionUpdate{
			Status:    domain.Ptr(next),
			LastStep:  domain.Ptr(next),
			LastError: domain.Ptr(""),
		}.Merge(out.Updates)
		if err := e.repo.Update(ctx, sub.ID, done); err != nil {
			return domain.PipelineResult{}, fmt.Errorf("set status=%s: %w", next, err)
		}

		sub, err = e.load(ctx, submissionID)
		if err != nil {
			return domain.PipelineResult{}, err
		}
	}
}

// IsBudgetExhausted reports whether a result stopped for lack of budget
// rather than because of a failure.
func IsBudgetExhausted(result domain.PipelineResult) bool {
	return !result.Success && strings.HasPrefix(result.Error, budgetExhaustedPrefix)
}

func (e *PipelineEngine) runWithRetries(
	ctx context.Context,
	st stage,
	sub domain.Submission,
	opts domain.AdvanceOptions,
	start time.Time,
	budget time.Duration,
) (StepResult, *failure.Error) {
	if st.run == nil {
		return StepResult{}, failure.Permanent(st.name, "step %s is not configured", st.name)
	}

	maxAttempts := e.cfg.MaxStepRetries + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return StepResult{}, e.classifier.Normalize(st.name, err)
		}

		began := e.now()
		out, err := st.run(ctx, sub, opts)
		if err == nil {
			e.observe(st.name, "success", e.now().Sub(began))
			return out, nil
		}

		ferr := e.classifier.Normalize(st.name, err)
		e.observe(st.name, string(ferr.Kind), e.now().Sub(began))
		if ferr.Permanent() || attempt == maxAttempts-1 {
			return StepResult{}, ferr
		}

		delay := failure.RetryDelay(attempt)
		remaining := budget - e.now().Sub(start)
		if delay > remaining {
			slog.Warn("pipeline_retry_abandoned",
				"submission_id", sub.ID,
				"step", st.name,
				"attempt", attempt+1,
				"backoff_ms", delay.Milliseconds(),
				"remaining_ms", remaining.Milliseconds(),
				"error", ferr.Error(),
			)
			return StepResult{}, ferr
		}

		slog.Warn("pipeline_step_retry",
			"submission_id", sub.ID,
			"step", st.name,
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"backoff_ms", delay.Milliseconds(),
			"error", ferr.Error(),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return StepResult{}, ferr
		}
	}
	return StepResult{}, failure.Transient(st.name, "step %s made no attempts", st.name)
}

func (e *PipelineEngine) fail(ctx context.Context, sub *domain.Submission, ferr *failure.Error) (domain.PipelineResult, error) {
	maxRetries := sub.MaxRetries
	if maxRetries <= 0 {
		maxRetries = e.cfg.MaxRetries
	}
	retryCount := sub.RetryCount + 1

	status := domain.StatusFailed
	if ferr.Permanent() || retryCount >= maxRetries {
		status = domain.StatusDead
	}

	slog.Error("pipeline_step_failed",
		"submission_id", sub.ID,
		"step", ferr.Step,
		"kind", string(ferr.Kind),
		"retry_count", retryCount,
		"status", string(status),
		"error", ferr.Error(),
	)

	update := domain.SubmissionUpdate{
		Status:     domain.Ptr(status),
		RetryCount: domain.Ptr(retryCount),
		LastError:  domain.Ptr(ferr.Error()),
	}
	if err := e.repo.Update(context.WithoutCancel(ctx), sub.ID, update); err != nil {
		return domain.PipelineResult{}, fmt.Errorf("set status=%s: %w", status, err)
	}

	return domain.PipelineResult{
		Success: false,
		Status:  status,
		Error:   ferr.Error(),
	}, nil
}

// resolve maps persisted state to the stage that runs next. A failed
// submission resumes from last_step: an in-progress label reruns its own
// stage and a done label moves on to the following one.
func (e *PipelineEngine) resolve(sub *domain.Submission) (stage, bool) {
	status := sub.Status
	if status == domain.StatusFailed {
		status = sub.LastStep
	}

	switch status {
	case "", domain.StatusReceived, domain.StatusFailed:
		return e.stages[0], true
	case domain.StatusPublished, domain.StatusDead:
		return stage{}, false
	}
	for i, st := range e.stages {
		switch status {
		case st.inProgress:
			return st, true
		case st.done:
			if i+1 < len(e.stages) {
				return e.stages[i+1], true
			}
			return stage{}, false
		}
	}
	return stage{}, false
}

func (e *PipelineEngine) load(ctx context.Context, submissionID string) (*domain.Submission, error) {
	sub, err := e.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("fetch submission by id: %w", err)
	}
	return sub, nil
}

func (e *PipelineEngine) observe(step, outcome string, d time.Duration) {
	if e.observer != nil {
		e.observer.ObserveStep(step, outcome, d)
	}
}

func resultFor(sub *domain.Submission) domain.PipelineResult {
	result := domain.PipelineResult{
		Success: sub.Status == domain.StatusPublished,
		Status:  sub.Status,
	}
	if sub.TutorialID != nil {
		result.TutorialID = *sub.TutorialID
	}
	if sub.Status == domain.StatusDead {
		result.Error = sub.LastError
	}
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

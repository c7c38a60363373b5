package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/failure"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
)

// PipelineSteps holds the collaborators of the extract, classify and
// generate steps and delegates publish to a Publisher. Each step returns
// early when its own output is already persisted.
type PipelineSteps struct {
	extractor  ports.ContentExtractor
	sources    ports.SourceRepository
	classifier ports.TutorialClassifier
	generator  ports.TutorialGenerator
	publisher  *Publisher
	now        func() time.Time
}

func NewPipelineSteps(
	extractor ports.ContentExtractor,
	sources ports.SourceRepository,
	classifier ports.TutorialClassifier,
	generator ports.TutorialGenerator,
	publisher *Publisher,
) *PipelineSteps {
	return &PipelineSteps{
		extractor:  extractor,
		sources:    sources,
		classifier: classifier,
		generator:  generator,
		publisher:  publisher,
		now:        time.Now,
	}
}

func (s *PipelineSteps) StepSet() StepSet {
	return StepSet{
		Extract:  s.Extract,
		Classify: s.Classify,
		Generate: s.Generate,
		Publish:  s.publisher.Publish,
	}
}

func (s *PipelineSteps) Extract(ctx context.Context, sub domain.Submission, _ domain.AdvanceOptions) (StepResult, error) {
	if hasText(sub.ExtractedText) {
		return StepResult{Next: domain.StatusExtracted}, nil
	}

	sourceType := sub.SourceType
	if !sourceType.Valid() {
		sourceType = domain.DetectSourceType(sub.URL)
	}
	text, err := s.extractor.Extract(ctx, sub.URL, sourceType)
	if err != nil {
		return StepResult{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return StepResult{}, failure.Permanent(StepExtract, "%s: insufficient text extracted from %s", sourceType, sub.URL)
	}

	source := &domain.Source{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		URL:          sub.URL,
		SourceType:   sourceType,
		RawText:      text,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.sources.Upsert(ctx, source); err != nil {
		return StepResult{}, fmt.Errorf("record source: %w", err)
	}

	return StepResult{
		Next:    domain.StatusExtracted,
		Updates: domain.SubmissionUpdate{ExtractedText: &text},
	}, nil
}

func (s *PipelineSteps) Classify(ctx context.Context, sub domain.Submission, _ domain.AdvanceOptions) (StepResult, error) {
	if sub.Classification != nil {
		return StepResult{Next: domain.StatusClassified}, nil
	}
	if !hasText(sub.ExtractedText) {
		return StepResult{}, failure.Permanent(StepClassify, "precondition failed: missing extracted text")
	}

	cls, err := s.classifier.Classify(ctx, *sub.ExtractedText)
	if err != nil {
		return StepResult{}, fmt.Errorf("classify submission: %w", err)
	}
	return StepResult{
		Next:    domain.StatusClassified,
		Updates: domain.SubmissionUpdate{Classification: &cls},
	}, nil
}

func (s *PipelineSteps) Generate(ctx context.Context, sub domain.Submission, opts domain.AdvanceOptions) (StepResult, error) {
	if sub.GeneratedTutorial != nil {
		return StepResult{Next: domain.StatusGenerated}, nil
	}
	if !hasText(sub.ExtractedText) {
		return StepResult{}, failure.Permanent(StepGenerate, "precondition failed: missing extracted text")
	}
	if sub.Classification == nil {
		return StepResult{}, failure.Permanent(StepGenerate, "precondition failed: missing classification")
	}

	generated, err := s.generator.Generate(ctx, *sub.ExtractedText, sub.URL, opts.HotNews)
	if err != nil {
		return StepResult{}, fmt.Errorf("generate tutorial: %w", err)
	}
	generated.Classification = *sub.Classification
	generated.Slug = domain.Slugify(firstNonEmpty(generated.Slug, generated.Title))

	return StepResult{
		Next:    domain.StatusGenerated,
		Updates: domain.SubmissionUpdate{GeneratedTutorial: &generated},
	}, nil
}

func hasText(text *string) bool {
	return text != nil && strings.TrimSpace(*text) != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

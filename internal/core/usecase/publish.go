package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/failure"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
)

const (
	DefaultMinSharedTopics = 2
	defaultCandidateLimit  = 20
)

type PublishConfig struct {
	MinSharedTopics int
	CandidateLimit  int
}

// Publisher creates or merges the tutorial for a generated submission and
// attaches media to it.
type Publisher struct {
	tutorials ports.TutorialRepository
	sources   ports.SourceRepository
	merger    ports.TutorialMerger
	media     *MediaGenerator
	graph     ports.TopicGraph
	cfg       PublishConfig
	now       func() time.Time
}

func NewPublisher(
	tutorials ports.TutorialRepository,
	sources ports.SourceRepository,
	merger ports.TutorialMerger,
	media *MediaGenerator,
	graph ports.TopicGraph,
	cfg PublishConfig,
) *Publisher {
	if cfg.MinSharedTopics <= 0 {
		cfg.MinSharedTopics = DefaultMinSharedTopics
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	return &Publisher{
		tutorials: tutorials,
		sources:   sources,
		merger:    merger,
		media:     media,
		graph:     graph,
		cfg:       cfg,
		now:       time.Now,
	}
}

type publishOutcome int

const (
	outcomeReused publishOutcome = iota
	outcomeCreated
	outcomeMerged
)

func (p *Publisher) Publish(ctx context.Context, sub domain.Submission, opts domain.AdvanceOptions) (StepResult, error) {
	if sub.TutorialID != nil && *sub.TutorialID != "" {
		return StepResult{Next: domain.StatusPublished}, nil
	}
	if sub.GeneratedTutorial == nil {
		return StepResult{}, failure.Permanent(StepPublish, "precondition failed: missing generated tutorial")
	}

	tutorial, outcome, err := p.resolveTutorial(ctx, sub, opts.HotNews)
	if err != nil {
		return StepResult{}, err
	}

	p.attachMedia(ctx, tutorial, outcome != outcomeReused)

	if err := p.sources.LinkTutorial(ctx, sub.ID, tutorial.ID); err != nil {
		return StepResult{}, fmt.Errorf("link source to tutorial: %w", err)
	}
	if p.graph != nil {
		if err := p.graph.ProjectTutorial(ctx, *tutorial); err != nil {
			slog.Warn("topic_graph_projection_failed", "tutorial_id", tutorial.ID, "error", err)
		}
	}

	slog.Info("tutorial_published",
		"submission_id", sub.ID,
		"tutorial_id", tutorial.ID,
		"slug", tutorial.Slug,
		"outcome", outcome.String(),
	)

	completedAt := p.now().UTC()
	return StepResult{
		Next: domain.StatusPublished,
		Updates: domain.SubmissionUpdate{
			TutorialID:  domain.Ptr(tutorial.ID),
			CompletedAt: &completedAt,
		},
	}, nil
}

func (p *Publisher) resolveTutorial(ctx context.Context, sub domain.Submission, hotNews bool) (*domain.Tutorial, publishOutcome, error) {
	existing, err := p.tutorials.FindBySourceURL(ctx, sub.URL)
	switch {
	case err == nil && existing != nil:
		return existing, outcomeReused, nil
	case err != nil && !domain.IsKind(err, domain.ErrTutorialNotFound):
		return nil, 0, fmt.Errorf("find tutorial by source url: %w", err)
	}

	generated := sub.GeneratedTutorial
	cls := generated.Classification

	candidates, err := p.tutorials.FindMergeCandidates(ctx, cls.MaturityLevel, cls.Topics, p.cfg.CandidateLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("find merge candidates: %w", err)
	}
	if target := SelectMergeTarget(candidates, cls, p.cfg.MinSharedTopics); target != nil {
		merged, err := p.merge(ctx, *target, sub)
		if err != nil {
			return nil, 0, err
		}
		return merged, outcomeMerged, nil
	}

	created, err := p.create(ctx, sub, hotNews)
	if err != nil {
		return nil, 0, err
	}
	return created, outcomeCreated, nil
}

// SelectMergeTarget picks the candidate with the same maturity level that
// shares the most topics with cls, provided it shares at least minShared.
func SelectMergeTarget(candidates []domain.Tutorial, cls domain.Classification, minShared int) *domain.Tutorial {
	var (
		best       *domain.Tutorial
		bestShared int
	)
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.MaturityLevel != cls.MaturityLevel {
			continue
		}
		shared := domain.SharedTopics(candidate.Topics, cls.Topics)
		if shared > bestShared {
			best, bestShared = candidate, shared
		}
	}
	if best == nil || bestShared < minShared {
		return nil
	}
	return best
}

func (p *Publisher) merge(ctx context.Context, target domain.Tutorial, sub domain.Submission) (*domain.Tutorial, error) {
	text := ""
	if sub.ExtractedText != nil {
		text = *sub.ExtractedText
	}
	result, err := p.merger.Merge(ctx, target, text, sub.URL)
	if err != nil {
		return nil, fmt.Errorf("merge into tutorial %s: %w", target.Slug, err)
	}
	updated, err := p.tutorials.ApplyMerge(ctx, target.ID, result, sub.URL)
	if err != nil {
		return nil, fmt.Errorf("apply merge to tutorial %s: %w", target.Slug, err)
	}
	return updated, nil
}

func (p *Publisher) create(ctx context.Context, sub domain.Submission, hotNews bool) (*domain.Tutorial, error) {
	generated := sub.GeneratedTutorial
	cls := generated.Classification
	now := p.now().UTC()

	tutorial := &domain.Tutorial{
		ID:             uuid.NewString(),
		Slug:           domain.Slugify(firstNonEmpty(generated.Slug, generated.Title)),
		Title:          generated.Title,
		Summary:        generated.Summary,
		Body:           generated.Body,
		ActionItems:    nonNil(generated.ActionItems),
		MaturityLevel:  cls.MaturityLevel,
		LevelRelation:  cls.LevelRelation,
		Difficulty:     cls.Difficulty,
		Topics:         nonNil(cls.Topics),
		Tags:           nonNil(cls.Tags),
		ToolsMentioned: nonNil(cls.ToolsMentioned),
		SourceURLs:     []string{sub.URL},
		SourceCount:    1,
		HotNews:        hotNews,
		Published:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := p.tutorials.Create(ctx, tutorial)
	if domain.IsKind(err, domain.ErrSlugConflict) {
		tutorial.Slug = tutorial.Slug + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
		err = p.tutorials.Create(ctx, tutorial)
	}
	if err != nil {
		return nil, fmt.Errorf("create tutorial %s: %w", tutorial.Slug, err)
	}
	return tutorial, nil
}

// attachMedia renders the image (only when missing) and the audio (when the
// body changed) concurrently. Media is best-effort: failures are logged.
func (p *Publisher) attachMedia(ctx context.Context, tutorial *domain.Tutorial, bodyChanged bool) {
	if p.media == nil {
		return
	}
	needImage := tutorial.ImageURL == nil && p.media.ImagesEnabled()
	needAudio := bodyChanged && p.media.AudioEnabled()
	if !needImage && !needAudio {
		return
	}

	var (
		g        errgroup.Group
		imageURL *string
		audioURL *string
	)
	if needImage {
		g.Go(func() error {
			url, err := p.media.GenerateImage(ctx, *tutorial)
			if err != nil {
				slog.Warn("media_generation_failed", "tutorial_id", tutorial.ID, "medium", "image", "error", err)
				return nil
			}
			imageURL = &url
			return nil
		})
	}
	if needAudio {
		g.Go(func() error {
			url, err := p.media.GenerateAudio(ctx, *tutorial)
			if err != nil {
				slog.Warn("media_generation_failed", "tutorial_id", tutorial.ID, "medium", "audio", "error", err)
				return nil
			}
			audioURL = &url
			return nil
		})
	}
	_ = g.Wait()

	if imageURL == nil && audioURL == nil {
		return
	}
	if err := p.tutorials.SetMedia(ctx, tutorial.ID, imageURL, audioURL); err != nil {
		slog.Warn("media_attach_failed", "tutorial_id", tutorial.ID, "error", err)
		return
	}
	if imageURL != nil {
		tutorial.ImageURL = imageURL
	}
	if audioURL != nil {
		tutorial.AudioURL = audioURL
	}
}

func (o publishOutcome) String() string {
	switch o {
	case outcomeCreated:
		return "created"
	case outcomeMerged:
		return "merged"
	default:
		return "reused"
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

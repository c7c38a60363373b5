package ports

import (
	"context"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

// SubmissionRepository persists the single mutable row per submission.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *domain.Submission) error
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	Update(ctx context.Context, id string, update domain.SubmissionUpdate) error
	ListByStatus(ctx context.Context, statuses []domain.SubmissionStatus, limit int) ([]domain.Submission, error)
	// ListStale returns rows in the given statuses not updated since updatedBefore, oldest first.
	ListStale(ctx context.Context, statuses []domain.SubmissionStatus, updatedBefore time.Time, limit int) ([]domain.Submission, error)
}

// TutorialRepository persists published tutorials.
type TutorialRepository interface {
	Create(ctx context.Context, tutorial *domain.Tutorial) error
	GetByID(ctx context.Context, id string) (*domain.Tutorial, error)
	FindBySourceURL(ctx context.Context, sourceURL string) (*domain.Tutorial, error)
	FindMergeCandidates(ctx context.Context, maturityLevel int, topics []string, limit int) ([]domain.Tutorial, error)
	ApplyMerge(ctx context.Context, id string, merge domain.MergeResult, sourceURL string) (*domain.Tutorial, error)
	SetMedia(ctx context.Context, id string, imageURL, audioURL *string) error
}

// SourceRepository records the provenance of extracted text.
type SourceRepository interface {
	Upsert(ctx context.Context, source *domain.Source) error
	LinkTutorial(ctx context.Context, submissionID, tutorialID string) error
}

// MediaStorage stores generated images and audio and hands out public URLs.
type MediaStorage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	PublicURL(path string) string
}

// MessageQueue publishes/consumes submission events.
type MessageQueue interface {
	PublishSubmissionReceived(ctx context.Context, submissionID string) error
	SubscribeSubmissionReceived(ctx context.Context, handler func(context.Context, string) error) error
}

// SubmissionLocker grants a single writer per submission id.
type SubmissionLocker interface {
	Acquire(ctx context.Context, submissionID string, ttl time.Duration) (release func(context.Context) error, err error)
}

// ContentExtractor pulls raw text for a URL of a known source type.
type ContentExtractor interface {
	Extract(ctx context.Context, rawURL string, sourceType domain.SourceType) (string, error)
}

// TutorialClassifier maps raw text to a classification.
type TutorialClassifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// TutorialGenerator rewrites raw text into a tutorial.
type TutorialGenerator interface {
	Generate(ctx context.Context, text, sourceURL string, hotNews bool) (domain.GeneratedTutorial, error)
}

// TutorialMerger folds new source text into an existing tutorial.
type TutorialMerger interface {
	Merge(ctx context.Context, existing domain.Tutorial, newText, newURL string) (domain.MergeResult, error)
}

// AudioScripter rewrites a markdown body as plain spoken prose.
type AudioScripter interface {
	Scriptify(ctx context.Context, body string) (string, error)
}

// ImageGenerator renders a cover image for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (data []byte, contentType string, err error)
}

// SpeechSynthesizer turns one bounded chunk of text into audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Chunker splits text into pieces the speech provider accepts.
type Chunker interface {
	Split(text string) []string
}

// TopicGraph projects published tutorials into a topic graph.
type TopicGraph interface {
	ProjectTutorial(ctx context.Context, tutorial domain.Tutorial) error
}

// ReportWriter renders submissions into a downloadable report.
type ReportWriter interface {
	WriteSubmissions(subs []domain.Submission) ([]byte, error)
}

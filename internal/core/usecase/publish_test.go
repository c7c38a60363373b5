package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

func generatedSubmission(topics ...string) domain.Submission {
	cls := sampleClassification(topics...)
	return domain.Submission{
		ID:            "sub-1",
		URL:           "https://example.com/new",
		ExtractedText: domain.Ptr("new raw text"),
		GeneratedTutorial: &domain.GeneratedTutorial{
			Title:          "Go Testing Tips",
			Slug:           "go-testing-tips",
			Summary:        "summary",
			Body:           "Body text. More body.",
			ActionItems:    []string{"write a test"},
			Classification: cls,
		},
	}
}

func candidate(id string, topics ...string) domain.Tutorial {
	return domain.Tutorial{
		ID:            id,
		Slug:          id + "-slug",
		MaturityLevel: 2,
		Topics:        topics,
		SourceURLs:    []string{"https://example.com/old"},
		SourceCount:   1,
		ImageURL:      domain.Ptr("https://cdn.test/images/old.png"),
	}
}

func newTestPublisher(tutorials *tutorialRepoFake, merger *mergerFake, media *MediaGenerator) (*Publisher, *sourceRepoFake) {
	sources := &sourceRepoFake{}
	return NewPublisher(tutorials, sources, merger, media, nil, PublishConfig{}), sources
}

func TestPublishCreatesWhenOnlyOneTopicShared(t *testing.T) {
	tutorials := &tutorialRepoFake{candidates: []domain.Tutorial{candidate("old", "go", "docker")}}
	merger := &mergerFake{}
	p, sources := newTestPublisher(tutorials, merger, nil)

	out, err := p.Publish(context.Background(), generatedSubmission("go", "testing"), domain.AdvanceOptions{HotNews: true})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if merger.calls != 0 || len(tutorials.created) != 1 {
		t.Fatalf("expected create without merge, merges=%d created=%d", merger.calls, len(tutorials.created))
	}
	created := tutorials.created[0]
	if created.Slug != "go-testing-tips" || created.SourceCount != 1 || !created.HotNews {
		t.Fatalf("unexpected created tutorial: %+v", created)
	}
	if out.Next != domain.StatusPublished || *out.Updates.TutorialID != created.ID || out.Updates.CompletedAt == nil {
		t.Fatalf("unexpected step result: %+v", out)
	}
	if sources.links["sub-1"] != created.ID {
		t.Fatalf("expected source link to %s, got %v", created.ID, sources.links)
	}
}

func TestPublishMergesWhenTwoTopicsShared(t *testing.T) {
	tutorials := &tutorialRepoFake{candidates: []domain.Tutorial{
		candidate("weak", "go"),
		candidate("strong", "Go", "Testing", "ci"),
	}}
	merger := &mergerFake{out: domain.MergeResult{Body: "merged", Summary: "merged summary"}}
	p, _ := newTestPublisher(tutorials, merger, nil)

	out, err := p.Publish(context.Background(), generatedSubmission("go", "testing"), domain.AdvanceOptions{})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if merger.calls != 1 || len(tutorials.created) != 0 {
		t.Fatalf("expected merge only, merges=%d created=%d", merger.calls, len(tutorials.created))
	}
	if *out.Updates.TutorialID != "strong" {
		t.Fatalf("expected merge into strong candidate, got %s", *out.Updates.TutorialID)
	}
	if tutorials.mergedURL != "https://example.com/new" || tutorials.merged["strong"].Body != "merged" {
		t.Fatalf("unexpected merge write: url=%s merged=%+v", tutorials.mergedURL, tutorials.merged)
	}
}

func TestSelectMergeTargetIgnoresOtherMaturity(t *testing.T) {
	other := candidate("other", "go", "testing")
	other.MaturityLevel = 3
	if got := SelectMergeTarget([]domain.Tutorial{other}, sampleClassification("go", "testing"), 2); got != nil {
		t.Fatalf("expected no target, got %+v", got)
	}
}

func TestPublishReusesTutorialAlreadyHoldingURL(t *testing.T) {
	existing := candidate("existing", "go")
	tutorials := &tutorialRepoFake{bySource: map[string]domain.Tutorial{"https://example.com/new": existing}}
	merger := &mergerFake{}
	p, _ := newTestPublisher(tutorials, merger, nil)

	out, err := p.Publish(context.Background(), generatedSubmission("go", "testing"), domain.AdvanceOptions{})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if *out.Updates.TutorialID != "existing" || merger.calls != 0 || len(tutorials.created) != 0 {
		t.Fatalf("expected reuse without writes, got %+v", out)
	}
}

func TestPublishRetriesSlugConflictOnce(t *testing.T) {
	tutorials := &tutorialRepoFake{conflictsLeft: 1}
	p, _ := newTestPublisher(tutorials, &mergerFake{}, nil)

	if _, err := p.Publish(context.Background(), generatedSubmission("go"), domain.AdvanceOptions{}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(tutorials.created) != 1 || !strings.HasPrefix(tutorials.created[0].Slug, "go-testing-tips-") {
		t.Fatalf("expected suffixed slug, got %+v", tutorials.created)
	}

	tutorials = &tutorialRepoFake{conflictsLeft: 2}
	p, _ = newTestPublisher(tutorials, &mergerFake{}, nil)
	_, err := p.Publish(context.Background(), generatedSubmission("go"), domain.AdvanceOptions{})
	if !domain.IsKind(err, domain.ErrSlugConflict) {
		t.Fatalf("expected slug conflict after second collision, got %v", err)
	}
}

func TestPublishIsIdempotentOnceTutorialLinked(t *testing.T) {
	tutorials := &tutorialRepoFake{}
	p, _ := newTestPublisher(tutorials, &mergerFake{}, nil)
	sub := generatedSubmission("go")
	sub.TutorialID = domain.Ptr("tut-1")

	out, err := p.Publish(context.Background(), sub, domain.AdvanceOptions{})
	if err != nil || out.Next != domain.StatusPublished || !out.Updates.IsEmpty() || len(tutorials.created) != 0 {
		t.Fatalf("unexpected publish re-entry: %+v %v", out, err)
	}
}

func TestPublishAttachesMediaAndSwallowsFailures(t *testing.T) {
	storage := &storageFake{}
	speech := &speechFake{}
	media := NewMediaGenerator(&imageFake{err: errors.New("image provider down")}, nil, speech, chunkerFake{}, storage)
	tutorials := &tutorialRepoFake{}
	p, _ := newTestPublisher(tutorials, &mergerFake{}, media)

	out, err := p.Publish(context.Background(), generatedSubmission("go"), domain.AdvanceOptions{})
	if err != nil {
		t.Fatalf("media failure must not fail publish: %v", err)
	}
	id := *out.Updates.TutorialID
	attached := tutorials.media[id]
	if attached[0] != nil {
		t.Fatalf("expected no image url, got %s", *attached[0])
	}
	if attached[1] == nil || *attached[1] != "https://cdn.test/audio/go-testing-tips.mp3" {
		t.Fatalf("unexpected audio url: %v", attached[1])
	}
	if len(speech.chunks) != 1 {
		t.Fatalf("expected one synthesized chunk, got %d", len(speech.chunks))
	}
}

func TestPublishMergeSkipsImageWhenPresent(t *testing.T) {
	storage := &storageFake{}
	media := NewMediaGenerator(&imageFake{}, nil, &speechFake{}, chunkerFake{}, storage)
	tutorials := &tutorialRepoFake{candidates: []domain.Tutorial{candidate("strong", "go", "testing")}}
	p, _ := newTestPublisher(tutorials, &mergerFake{out: domain.MergeResult{Body: "merged body", Summary: "s"}}, media)

	if _, err := p.Publish(context.Background(), generatedSubmission("go", "testing"), domain.AdvanceOptions{}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if _, ok := storage.uploads["images/strong-slug.png"]; ok {
		t.Fatalf("image must not be regenerated for a tutorial that has one")
	}
	if string(storage.uploads["audio/strong-slug.mp3"]) != "merged body" {
		t.Fatalf("expected audio regenerated from merged body, got %q", storage.uploads["audio/strong-slug.mp3"])
	}
}

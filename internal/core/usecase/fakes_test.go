package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

type submissionRepoFake struct {
	mu      sync.Mutex
	subs    map[string]domain.Submission
	updates []domain.SubmissionUpdate
	created *domain.Submission
	listed  []domain.SubmissionStatus

	staleListed []domain.SubmissionStatus

	createErr error
	updateErr error
}

func newSubmissionRepoFake(subs ...domain.Submission) *submissionRepoFake {
	f := &submissionRepoFake{subs: make(map[string]domain.Submission)}
	for _, sub := range subs {
		f.subs[sub.ID] = sub
	}
	return f
}

func (f *submissionRepoFake) Create(_ context.Context, sub *domain.Submission) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copySub := *sub
	f.created = &copySub
	f.subs[sub.ID] = copySub
	return nil
}

func (f *submissionRepoFake) GetByID(_ context.Context, id string) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get submission", errors.New(id))
	}
	return &sub, nil
}

func (f *submissionRepoFake) Update(_ context.Context, id string, update domain.SubmissionUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	f.updates = append(f.updates, update)
	f.subs[id] = update.Apply(sub)
	return nil
}

func (f *submissionRepoFake) ListByStatus(_ context.Context, statuses []domain.SubmissionStatus, limit int) ([]domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = statuses
	var out []domain.Submission
	for _, sub := range f.subs {
		for _, status := range statuses {
			if sub.Status == status {
				out = append(out, sub)
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *submissionRepoFake) ListStale(_ context.Context, statuses []domain.SubmissionStatus, updatedBefore time.Time, limit int) ([]domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleListed = statuses
	var out []domain.Submission
	for _, sub := range f.subs {
		if !sub.UpdatedAt.Before(updatedBefore) {
			continue
		}
		for _, status := range statuses {
			if sub.Status == status && len(out) < limit {
				out = append(out, sub)
			}
		}
	}
	return out, nil
}

func (f *submissionRepoFake) get(id string) domain.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[id]
}

type queueFake struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (f *queueFake) PublishSubmissionReceived(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, id)
	return nil
}

func (f *queueFake) SubscribeSubmissionReceived(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type extractorFake struct {
	text  string
	err   error
	calls int
}

func (f *extractorFake) Extract(context.Context, string, domain.SourceType) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type sourceRepoFake struct {
	upserted []domain.Source
	links    map[string]string
	err      error
}

func (f *sourceRepoFake) Upsert(_ context.Context, source *domain.Source) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, *source)
	return nil
}

func (f *sourceRepoFake) LinkTutorial(_ context.Context, submissionID, tutorialID string) error {
	if f.links == nil {
		f.links = make(map[string]string)
	}
	f.links[submissionID] = tutorialID
	return nil
}

type classifierFake struct {
	cls   domain.Classification
	err   error
	calls int
}

func (f *classifierFake) Classify(context.Context, string) (domain.Classification, error) {
	f.calls++
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	return f.cls, nil
}

type generatorFake struct {
	out     domain.GeneratedTutorial
	err     error
	calls   int
	hotNews bool
}

func (f *generatorFake) Generate(_ context.Context, _, _ string, hotNews bool) (domain.GeneratedTutorial, error) {
	f.calls++
	f.hotNews = hotNews
	if f.err != nil {
		return domain.GeneratedTutorial{}, f.err
	}
	return f.out, nil
}

type tutorialRepoFake struct {
	mu         sync.Mutex
	bySource   map[string]domain.Tutorial
	candidates []domain.Tutorial
	created    []domain.Tutorial
	merged     map[string]domain.MergeResult
	mergedURL  string
	media      map[string][2]*string

	conflictsLeft int
}

func (f *tutorialRepoFake) Create(_ context.Context, tutorial *domain.Tutorial) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return domain.WrapError(domain.ErrSlugConflict, "create tutorial", errors.New(tutorial.Slug))
	}
	f.created = append(f.created, *tutorial)
	return nil
}

func (f *tutorialRepoFake) GetByID(context.Context, string) (*domain.Tutorial, error) {
	return nil, domain.ErrTutorialNotFound
}

func (f *tutorialRepoFake) FindBySourceURL(_ context.Context, sourceURL string) (*domain.Tutorial, error) {
	if t, ok := f.bySource[sourceURL]; ok {
		return &t, nil
	}
	return nil, domain.WrapError(domain.ErrTutorialNotFound, "find tutorial", errors.New(sourceURL))
}

func (f *tutorialRepoFake) FindMergeCandidates(context.Context, int, []string, int) ([]domain.Tutorial, error) {
	return f.candidates, nil
}

func (f *tutorialRepoFake) ApplyMerge(_ context.Context, id string, merge domain.MergeResult, sourceURL string) (*domain.Tutorial, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.merged == nil {
		f.merged = make(map[string]domain.MergeResult)
	}
	f.merged[id] = merge
	f.mergedURL = sourceURL
	for _, c := range f.candidates {
		if c.ID == id {
			c.Body, c.Summary, c.ActionItems = merge.Body, merge.Summary, merge.ActionItems
			c.SourceURLs = append(append([]string{}, c.SourceURLs...), sourceURL)
			c.SourceCount++
			return &c, nil
		}
	}
	return nil, domain.ErrTutorialNotFound
}

func (f *tutorialRepoFake) SetMedia(_ context.Context, id string, imageURL, audioURL *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.media == nil {
		f.media = make(map[string][2]*string)
	}
	f.media[id] = [2]*string{imageURL, audioURL}
	return nil
}

type mergerFake struct {
	out   domain.MergeResult
	calls int
}

func (f *mergerFake) Merge(context.Context, domain.Tutorial, string, string) (domain.MergeResult, error) {
	f.calls++
	return f.out, nil
}

type imageFake struct{ err error }

func (f *imageFake) Generate(context.Context, string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("png"), "image/png", nil
}

type speechFake struct {
	mu     sync.Mutex
	chunks []string
	err    error
}

func (f *speechFake) Synthesize(_ context.Context, text string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, text)
	return []byte(text), nil
}

type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

type storageFake struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (f *storageFake) Upload(_ context.Context, path string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[path] = data
	return f.PublicURL(path), nil
}

func (f *storageFake) PublicURL(path string) string { return "https://cdn.test/" + path }

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

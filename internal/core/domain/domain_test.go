package domain

import (
	"strings"
	"testing"
)

func TestDetectSourceType(t *testing.T) {
	tests := []struct {
		url  string
		want SourceType
	}{
		{url: "https://www.tiktok.com/@user/video/123", want: SourceTikTok},
		{url: "https://vm.tiktok.com/ZMabc/", want: SourceTikTok},
		{url: "https://twitter.com/user/status/1", want: SourceTweet},
		{url: "https://x.com/user/status/1", want: SourceTweet},
		{url: "https://mobile.twitter.com/user/status/1", want: SourceTweet},
		{url: "https://www.youtube.com/watch?v=abc", want: SourceYouTube},
		{url: "https://m.youtube.com/shorts/abc", want: SourceYouTube},
		{url: "https://youtu.be/abc", want: SourceYouTube},
		{url: "https://www.linkedin.com/pulse/some-post", want: SourceLinkedIn},
		{url: "https://example.org/papers/paper.PDF", want: SourcePDF},
		{url: "https://blog.example.org/post", want: SourceArticle},
		{url: "https://notx.com/post", want: SourceArticle},
		{url: "not a url", want: SourceArticle},
	}

	for _, tt := range tests {
		if got := DetectSourceType(tt.url); got != tt.want {
			t.Errorf("DetectSourceType(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	got, err := NormalizeURL("  example.com/post#frag ")
	if err != nil {
		t.Fatalf("NormalizeURL() error = %v", err)
	}
	if got != "https://example.com/post" {
		t.Fatalf("NormalizeURL() = %q", got)
	}

	for _, raw := range []string{"", "ftp://example.com/file", "https://localhost/"} {
		if _, err := NormalizeURL(raw); !IsKind(err, ErrInvalidInput) {
			t.Errorf("NormalizeURL(%q) error = %v, want invalid input", raw, err)
		}
	}
}

func TestSharedTopics(t *testing.T) {
	if got := SharedTopics([]string{"Go", "testing", "ci"}, []string{"go ", "CI", "docker", "ci"}); got != 2 {
		t.Fatalf("SharedTopics() = %d, want 2", got)
	}
	if got := SharedTopics(nil, []string{"go"}); got != 0 {
		t.Fatalf("SharedTopics() = %d, want 0", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Build a CLI in Go!":   "build-a-cli-in-go",
		"  --Hello__World--  ": "hello-world",
		"¿¿??":                 "tutorial",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Slugify(strings.Repeat("abc ", 40)); len(got) > maxSlugLen || strings.HasSuffix(got, "-") {
		t.Fatalf("Slugify() long input = %q", got)
	}
}

func TestSubmissionUpdateApply(t *testing.T) {
	text := "raw"
	sub := Submission{
		Status:         StatusFailed,
		ExtractedText:  &text,
		Classification: &Classification{MaturityLevel: 2},
	}

	reset := SubmissionUpdate{ClearPayloads: true, Status: Ptr(StatusReceived)}
	got := reset.Apply(sub)
	if got.ExtractedText != nil || got.Classification != nil || got.Status != StatusReceived {
		t.Fatalf("unexpected reset result: %+v", got)
	}

	merged := SubmissionUpdate{Status: Ptr(StatusExtracted), LastError: Ptr("")}.Merge(SubmissionUpdate{ExtractedText: Ptr("new")})
	if merged.Status == nil || *merged.Status != StatusExtracted || merged.ExtractedText == nil || *merged.ExtractedText != "new" {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
	if !(SubmissionUpdate{}).IsEmpty() || merged.IsEmpty() {
		t.Fatalf("IsEmpty mismatch")
	}
}

package gemini

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

func TestExtractText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}}},
		},
	}
	text, err := extractText(resp)
	if err != nil {
		t.Fatalf("extractText() error = %v", err)
	}
	if text != `{"a":1}` {
		t.Fatalf("unexpected text %q", text)
	}

	if _, err := extractText(&genai.GenerateContentResponse{}); err == nil {
		t.Fatalf("expected error for empty response")
	}
}

func TestCleanJSONBlock(t *testing.T) {
	for _, in := range []string{"```json\n{\"a\":1}\n```", `{"a":1}`} {
		if got := cleanJSONBlock(in); got != `{"a":1}` {
			t.Fatalf("cleanJSONBlock(%q) = %q", in, got)
		}
	}
}

func TestClassifyGeminiError(t *testing.T) {
	throttled := fmt.Errorf("gemini generate: %w", &googleapi.Error{Code: 429})
	if !classifyGeminiError(throttled).Retryable {
		t.Fatalf("429 must be retryable")
	}

	badRequest := fmt.Errorf("gemini generate: %w", &googleapi.Error{Code: 400})
	if class := classifyGeminiError(badRequest); class.Retryable || class.RecordFailure {
		t.Fatalf("400 must not retry or trip the breaker, got %+v", class)
	}

	if classifyGeminiError(errors.New("boom")).Retryable {
		t.Fatalf("unknown errors must not retry")
	}
}

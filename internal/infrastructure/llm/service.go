package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

// Completer is a raw prompt-in, text-out completion backend.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt string) (string, error)
	CompleteText(ctx context.Context, prompt string) (string, error)
}

// Service implements the classification, generation, merge and audio-script
// contracts on top of any Completer and validates what the model returns.
type Service struct {
	completer Completer
	validate  *validator.Validate
}

func NewService(completer Completer) *Service {
	return &Service{
		completer: completer,
		validate:  validator.New(),
	}
}

func (s *Service) Classify(ctx context.Context, text string) (domain.Classification, error) {
	var cls domain.Classification
	if err := s.completeInto(ctx, buildClassificationPrompt(text), "classification", &cls); err != nil {
		return domain.Classification{}, err
	}
	cls.Topics = normalizeSet(cls.Topics)
	cls.Tags = normalizeSet(cls.Tags)
	cls.ToolsMentioned = normalizeSet(cls.ToolsMentioned)
	cls.LevelRelation = domain.LevelRelation(strings.ToLower(strings.TrimSpace(string(cls.LevelRelation))))
	cls.Difficulty = domain.Difficulty(strings.ToLower(strings.TrimSpace(string(cls.Difficulty))))

	if err := s.validate.Struct(cls); err != nil {
		return domain.Classification{}, fmt.Errorf("llm classification failed validation: %w", err)
	}
	return cls, nil
}

func (s *Service) Generate(ctx context.Context, text, sourceURL string, hotNews bool) (domain.GeneratedTutorial, error) {
	var out domain.GeneratedTutorial
	if err := s.completeInto(ctx, buildGenerationPrompt(text, sourceURL, hotNews), "tutorial", &out); err != nil {
		return domain.GeneratedTutorial{}, err
	}
	out.Title = strings.TrimSpace(out.Title)
	out.Summary = strings.TrimSpace(out.Summary)
	out.Body = strings.TrimSpace(out.Body)
	out.ActionItems = trimList(out.ActionItems)

	if err := s.validate.Struct(out); err != nil {
		return domain.GeneratedTutorial{}, fmt.Errorf("llm tutorial failed validation: %w", err)
	}
	return out, nil
}

func (s *Service) Merge(ctx context.Context, existing domain.Tutorial, newText, newURL string) (domain.MergeResult, error) {
	var out domain.MergeResult
	if err := s.completeInto(ctx, buildMergePrompt(existing, newText, newURL), "merge", &out); err != nil {
		return domain.MergeResult{}, err
	}
	out.Body = strings.TrimSpace(out.Body)
	out.Summary = strings.TrimSpace(out.Summary)
	out.ActionItems = trimList(out.ActionItems)

	if err := s.validate.Struct(out); err != nil {
		return domain.MergeResult{}, fmt.Errorf("llm merge failed validation: %w", err)
	}
	return out, nil
}

func (s *Service) Scriptify(ctx context.Context, body string) (string, error) {
	script, err := s.completer.CompleteText(ctx, buildScriptPrompt(body))
	if err != nil {
		return "", fmt.Errorf("llm scriptify: %w", err)
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return "", fmt.Errorf("llm scriptify: empty response")
	}
	return script, nil
}

func (s *Service) completeInto(ctx context.Context, prompt, what string, out any) error {
	raw, err := s.completer.CompleteJSON(ctx, prompt)
	if err != nil {
		return fmt.Errorf("llm %s: %w", what, err)
	}
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), out); err != nil {
		return fmt.Errorf("parse %s json: %w", what, err)
	}
	return nil
}

// ExtractJSONObject trims code fences and prose around the outermost object.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/resilience"
)

// Client satisfies llm.Completer with Google Gemini.
type Client struct {
	client   *genai.Client
	model    string
	executor *resilience.Executor
}

func New(ctx context.Context, apiKey, model string, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Client{client: client, model: model, executor: executor}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Client) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	text, err := c.generate(ctx, prompt, true)
	if err != nil {
		return "", err
	}
	return cleanJSONBlock(text), nil
}

func (c *Client) CompleteText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, false)
}

func (c *Client) generate(ctx context.Context, prompt string, asJSON bool) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.3)
	if asJSON {
		model.ResponseMIMEType = "application/json"
	}

	var text string
	call := func(ctx context.Context) error {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return fmt.Errorf("gemini generate: %w", err)
		}
		text, err = extractText(resp)
		return err
	}

	if err := resilience.Call(ctx, c.executor, "gemini.generate", call, classifyGeminiError); err != nil {
		return "", resilience.AsTemporary("gemini generate", err, classifyGeminiError)
	}
	return strings.TrimSpace(text), nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("gemini: no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// classifyGeminiError counts every API refusal except a malformed request
// against the breaker; quota and auth problems affect all submissions.
func classifyGeminiError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyContext(err); ok {
		return class
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusBadRequest {
			return resilience.Rejected
		}
		if resilience.IsRetryableHTTPStatus(apiErr.Code) {
			return resilience.Transient
		}
	}
	return resilience.Fault
}

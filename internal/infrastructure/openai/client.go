package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/resilience"
)

// Client covers the audio and image endpoints of an OpenAI-compatible API:
// speech-to-text for short videos, text-to-speech for narration and cover
// image generation.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
	opts       Options
}

type Options struct {
	TranscribeModel string
	SpeechModel     string
	Voice           string
	ImageModel      string
	ImageSize       string
	Timeout         time.Duration
	MaxMediaBytes   int64

	ResilienceExecutor *resilience.Executor
}

func (o Options) normalize() Options {
	out := o
	if out.TranscribeModel == "" {
		out.TranscribeModel = "whisper-1"
	}
	if out.SpeechModel == "" {
		out.SpeechModel = "tts-1"
	}
	if out.Voice == "" {
		out.Voice = "alloy"
	}
	if out.ImageModel == "" {
		out.ImageModel = "dall-e-3"
	}
	if out.ImageSize == "" {
		out.ImageSize = "1024x1024"
	}
	if out.Timeout <= 0 {
		out.Timeout = 2 * time.Minute
	}
	if out.MaxMediaBytes <= 0 {
		out.MaxMediaBytes = 25 << 20
	}
	return out
}

func New(baseURL, apiKey string, opts Options) *Client {
	opts = opts.normalize()
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.openai.com"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.ResilienceExecutor,
		opts:       opts,
	}
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := resilience.Call(ctx, c.executor, "openai."+operation, fn, resilience.ClassifyHTTPError)
	if err == nil {
		return nil
	}
	if resilience.ClassifyHTTPError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "openai "+operation, err)
	}
	return fmt.Errorf("openai %s: %w", operation, err)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// do sends req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, decodeAPIError(operation, resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	if int64(len(body)) > c.opts.MaxMediaBytes {
		return nil, fmt.Errorf("%s response exceeds %d bytes", operation, c.opts.MaxMediaBytes)
	}
	return body, nil
}

func (c *Client) postJSON(ctx context.Context, path, operation string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(raw), "application/json")
	if err != nil {
		return nil, err
	}
	return c.do(req, operation)
}

func decodeAPIError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
		if apiErr.Error.Type != "" {
			message = apiErr.Error.Type + ": " + message
		}
	}
	return &resilience.StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: message}
}

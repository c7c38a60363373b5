package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
)

// Transcribe downloads the media at mediaURL and returns its spoken text.
func (c *Client) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	var media []byte
	err := c.call(ctx, "download", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
		if err != nil {
			return err
		}
		media, err = c.do(req, "download")
		return err
	})
	if err != nil {
		return "", err
	}
	if len(media) == 0 {
		return "", errors.New("openai transcribe: media is empty")
	}

	var text string
	err = c.call(ctx, "transcribe", func(ctx context.Context) error {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", mediaFilename(mediaURL))
		if err != nil {
			return fmt.Errorf("create multipart file: %w", err)
		}
		if _, err := part.Write(media); err != nil {
			return fmt.Errorf("copy media data: %w", err)
		}
		if err := writer.WriteField("model", c.opts.TranscribeModel); err != nil {
			return fmt.Errorf("write model field: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("close multipart writer: %w", err)
		}

		req, err := c.newRequest(ctx, http.MethodPost, "/v1/audio/transcriptions", body, writer.FormDataContentType())
		if err != nil {
			return err
		}
		raw, err := c.do(req, "transcribe")
		if err != nil {
			return err
		}

		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("decode transcription response: %w", err)
		}
		text = strings.TrimSpace(payload.Text)
		return nil
	})
	return text, err
}

// Synthesize renders one chunk of narration as MP3.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("openai speech: input text is empty")
	}
	var audio []byte
	err := c.call(ctx, "speech", func(ctx context.Context) error {
		raw, err := c.postJSON(ctx, "/v1/audio/speech", "speech", map[string]any{
			"model":           c.opts.SpeechModel,
			"voice":           c.opts.Voice,
			"input":           text,
			"response_format": "mp3",
		})
		if err != nil {
			return err
		}
		audio = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("openai speech: empty audio response")
	}
	return audio, nil
}

func mediaFilename(mediaURL string) string {
	name := path.Base(strings.SplitN(mediaURL, "?", 2)[0])
	if name == "" || name == "." || name == "/" || !strings.Contains(name, ".") {
		return "media.mp4"
	}
	return name
}

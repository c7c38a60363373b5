package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ImageGenerator adapts the images endpoint to the pipeline's cover image port.
type ImageGenerator struct {
	client *Client
}

func (c *Client) Images() *ImageGenerator {
	return &ImageGenerator{client: c}
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (g *ImageGenerator) Generate(ctx context.Context, prompt string) ([]byte, string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, "", errors.New("image prompt required")
	}

	var image []byte
	err := g.client.call(ctx, "images", func(ctx context.Context) error {
		raw, err := g.client.postJSON(ctx, "/v1/images/generations", "images", map[string]any{
			"model":           g.client.opts.ImageModel,
			"prompt":          prompt,
			"n":               1,
			"size":            g.client.opts.ImageSize,
			"response_format": "b64_json",
		})
		if err != nil {
			return err
		}

		var resp imagesGenerationResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("decode images response: %w", err)
		}
		if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].B64JSON) == "" {
			return errors.New("no image returned")
		}
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(resp.Data[0].B64JSON))
		if err != nil {
			return fmt.Errorf("decode image base64: %w", err)
		}
		image = decoded
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return image, http.DetectContentType(image), nil
}

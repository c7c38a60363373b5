package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

type TikTokStrategy struct {
	reader      *Reader
	fetch       *fetcher
	resolverURL string
	transcriber Transcriber
}

type tiktokResolution struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Play  string `json:"play"`
		Title string `json:"title"`
	} `json:"data"`
}

func (s *TikTokStrategy) SourceType() domain.SourceType { return domain.SourceTikTok }

// Extract resolves the playable video, transcribes its speech and prefixes the
// caption. Without speech it falls back to whatever the reader proxy sees.
func (s *TikTokStrategy) Extract(ctx context.Context, rawURL string) (string, error) {
	video, err := s.resolve(ctx, rawURL)
	if err != nil && domain.IsKind(err, domain.ErrInvalidInput) {
		return "", err
	}

	if video != nil && video.Data.Play != "" && s.transcriber != nil {
		transcript, terr := s.transcriber.Transcribe(ctx, video.Data.Play)
		if terr == nil && longEnough(transcript, minSpokenChars) {
			return withCaption(video.Data.Title, transcript), nil
		}
		logFallback("tiktok", "transcriber", "reader", rawURL, terr)
	} else {
		logFallback("tiktok", "resolver", "reader", rawURL, err)
	}

	text, rerr := s.reader.Read(ctx, rawURL)
	if rerr != nil {
		return "", fmt.Errorf("tiktok: %w", rerr)
	}
	if longEnough(text, minArticleChars) {
		return text, nil
	}
	if video != nil && longEnough(video.Data.Title, minArticleChars) {
		return video.Data.Title, nil
	}
	return "", fmt.Errorf("tiktok: no spoken content or caption found for %s", rawURL)
}

func (s *TikTokStrategy) resolve(ctx context.Context, rawURL string) (*tiktokResolution, error) {
	if s.resolverURL == "" {
		return nil, fmt.Errorf("tiktok resolver is not configured")
	}
	endpoint := s.resolverURL + "?url=" + url.QueryEscape(rawURL) + "&hd=1"
	resp, err := s.fetch.get(ctx, "extract.tiktok_resolver", endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}

	var out tiktokResolution
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("decode tiktok resolver response: %w", err)
	}
	if out.Code != 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "tiktok", fmt.Errorf("content unavailable: %s", out.Msg))
	}
	return &out, nil
}

func withCaption(caption, transcript string) string {
	caption = strings.TrimSpace(caption)
	transcript = strings.TrimSpace(transcript)
	if caption == "" {
		return transcript
	}
	return caption + "\n\n" + transcript
}

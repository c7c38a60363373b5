package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/tutorial-pipeline/internal/core/audio"
	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
)

// MediaGenerator renders cover images and narrated audio for tutorials.
// A nil image generator or synthesizer disables that medium.
type MediaGenerator struct {
	images   ports.ImageGenerator
	scripter ports.AudioScripter
	speech   ports.SpeechSynthesizer
	chunker  ports.Chunker
	storage  ports.MediaStorage
}

func NewMediaGenerator(
	images ports.ImageGenerator,
	scripter ports.AudioScripter,
	speech ports.SpeechSynthesizer,
	chunker ports.Chunker,
	storage ports.MediaStorage,
) *MediaGenerator {
	return &MediaGenerator{
		images:   images,
		scripter: scripter,
		speech:   speech,
		chunker:  chunker,
		storage:  storage,
	}
}

func (m *MediaGenerator) ImagesEnabled() bool {
	return m != nil && m.images != nil && m.storage != nil
}

func (m *MediaGenerator) AudioEnabled() bool {
	return m != nil && m.speech != nil && m.chunker != nil && m.storage != nil
}

func (m *MediaGenerator) GenerateImage(ctx context.Context, tutorial domain.Tutorial) (string, error) {
	if !m.ImagesEnabled() {
		return "", errors.New("image generation is disabled")
	}

	prompt := fmt.Sprintf(
		"Minimal flat illustration for a technical tutorial titled %q. Theme: %s. No text, no letters.",
		tutorial.Title, tutorial.Summary,
	)
	data, contentType, err := m.images.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	if contentType == "" {
		contentType = "image/png"
	}

	url, err := m.storage.Upload(ctx, "images/"+tutorial.Slug+imageExtension(contentType), data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}

func (m *MediaGenerator) GenerateAudio(ctx context.Context, tutorial domain.Tutorial) (string, error) {
	if !m.AudioEnabled() {
		return "", errors.New("audio generation is disabled")
	}

	script := tutorial.Body
	if m.scripter != nil {
		rewritten, err := m.scripter.Scriptify(ctx, tutorial.Body)
		if err != nil {
			return "", fmt.Errorf("scriptify body: %w", err)
		}
		script = rewritten
	}

	chunks := m.chunker.Split(script)
	if len(chunks) == 0 {
		return "", errors.New("audio script is empty after sanitizing")
	}

	parts := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		part, err := m.speech.Synthesize(ctx, chunk)
		if err != nil {
			return "", fmt.Errorf("synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		parts = append(parts, part)
	}

	url, err := m.storage.Upload(ctx, "audio/"+tutorial.Slug+".mp3", audio.Concat(parts), "audio/mpeg")
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	return url, nil
}

func imageExtension(contentType string) string {
	switch {
	case strings.Contains(contentType, "jpeg"):
		return ".jpg"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".png"
	}
}

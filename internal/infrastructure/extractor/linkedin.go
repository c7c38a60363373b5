package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

type LinkedInStrategy struct {
	reader   *Reader
	cacheURL string
}

func (s *LinkedInStrategy) SourceType() domain.SourceType { return domain.SourceLinkedIn }

// Extract reads the post through the proxy. Long-form /pulse/ articles are
// often behind the login wall, so those get a second try via the web cache.
func (s *LinkedInStrategy) Extract(ctx context.Context, rawURL string) (string, error) {
	text, err := s.reader.Read(ctx, rawURL)
	if err == nil && longEnough(text, minArticleChars) {
		return text, nil
	}
	if !strings.Contains(rawURL, "/pulse/") || s.cacheURL == "" {
		if err != nil {
			return "", fmt.Errorf("linkedin: %w", err)
		}
		return "", fmt.Errorf("linkedin: insufficient text extracted from %s", rawURL)
	}
	logFallback("linkedin", "reader", "webcache", rawURL, err)

	text, err = s.reader.Read(ctx, s.cacheURL+rawURL)
	if err != nil {
		return "", fmt.Errorf("linkedin: %w", err)
	}
	if !longEnough(text, minArticleChars) {
		return "", fmt.Errorf("linkedin: insufficient text extracted from %s", rawURL)
	}
	return text, nil
}

package extractor

import (
	"context"
	"fmt"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

type ArticleStrategy struct {
	reader *Reader
	fetch  *fetcher
}

func (s *ArticleStrategy) SourceType() domain.SourceType { return domain.SourceArticle }

// Extract tries the reader proxy first and falls back to fetching the page
// and isolating its main content locally.
func (s *ArticleStrategy) Extract(ctx context.Context, rawURL string) (string, error) {
	text, err := s.reader.Read(ctx, rawURL)
	if err == nil && longEnough(text, minArticleChars) {
		return text, nil
	}
	logFallback("article", "reader", "direct", rawURL, err)

	resp, err := s.fetch.get(ctx, "extract.article", rawURL, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return "", fmt.Errorf("article: %w", err)
	}
	text, err = mainText(resp.body)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "article", err)
	}
	if !longEnough(text, minArticleChars) {
		return "", fmt.Errorf("article: insufficient text extracted from %s", rawURL)
	}
	return text, nil
}

package extractor

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

type TweetStrategy struct {
	reader     *Reader
	mirrorHost string
}

func (s *TweetStrategy) SourceType() domain.SourceType { return domain.SourceTweet }

func (s *TweetStrategy) Extract(ctx context.Context, rawURL string) (string, error) {
	text, err := s.reader.Read(ctx, rawURL)
	if err == nil && longEnough(text, minTweetChars) {
		return text, nil
	}

	mirror, mirrorErr := mirrorURL(rawURL, s.mirrorHost)
	if mirrorErr != nil {
		if err != nil {
			return "", fmt.Errorf("tweet: %w", err)
		}
		return "", fmt.Errorf("tweet: insufficient text extracted from %s", rawURL)
	}
	logFallback("tweet", "reader", "mirror", rawURL, err)

	text, err = s.reader.Read(ctx, mirror)
	if err != nil {
		return "", fmt.Errorf("tweet: %w", err)
	}
	if !longEnough(text, minTweetChars) {
		return "", fmt.Errorf("tweet: insufficient text extracted from %s", rawURL)
	}
	return text, nil
}

func mirrorURL(rawURL, host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("no mirror host configured")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Scheme = "https"
	u.Host = host
	u.RawQuery = ""
	return u.String(), nil
}

package domain

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

type SourceType string

const (
	SourceArticle  SourceType = "article"
	SourceTikTok   SourceType = "tiktok"
	SourceTweet    SourceType = "tweet"
	SourceYouTube  SourceType = "youtube"
	SourcePDF      SourceType = "pdf"
	SourceLinkedIn SourceType = "linkedin"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceArticle, SourceTikTok, SourceTweet, SourceYouTube, SourcePDF, SourceLinkedIn:
		return true
	default:
		return false
	}
}

// DetectSourceType routes a URL by registrable domain and path suffix.
// Anything unrecognised is treated as a generic article.
func DetectSourceType(rawURL string) SourceType {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return SourceArticle
	}

	host := strings.ToLower(parsed.Hostname())
	site := host
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		site = etld1
	}

	switch site {
	case "tiktok.com":
		return SourceTikTok
	case "twitter.com", "x.com":
		return SourceTweet
	case "youtube.com", "youtu.be":
		return SourceYouTube
	case "linkedin.com":
		return SourceLinkedIn
	}

	if strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf") {
		return SourcePDF
	}
	return SourceArticle
}

// NormalizeURL validates a user supplied URL and returns its canonical string form.
func NormalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", WrapError(ErrInvalidInput, "normalize url", errEmptyURL)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", WrapError(ErrInvalidInput, "normalize url", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", WrapError(ErrInvalidInput, "normalize url", errUnsupportedScheme)
	}
	if parsed.Hostname() == "" || !strings.Contains(parsed.Hostname(), ".") {
		return "", WrapError(ErrInvalidInput, "normalize url", errMissingHost)
	}
	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)
	return parsed.String(), nil
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

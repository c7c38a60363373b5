package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/resilience"
)

const (
	minArticleChars = 50
	minTweetChars   = 20
	minSpokenChars  = 20
)

// Strategy extracts raw text for one source type and owns its fallback chain.
// Error messages are matched by the pipeline's error classifier, so wording
// such as "insufficient text" or "no transcript" is deliberate.
type Strategy interface {
	SourceType() domain.SourceType
	Extract(ctx context.Context, rawURL string) (string, error)
}

// Transcriber turns a media URL into spoken text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (string, error)
}

type Config struct {
	ReaderBaseURL     string
	ReaderAPIKey      string
	TikTokResolverURL string
	TranscriptBaseURL string
	TweetMirrorHost   string
	WebCacheURL       string
	UserAgent         string
	Timeout           time.Duration
	MaxDownloadBytes  int64
}

func (c Config) normalize() Config {
	out := c
	if out.ReaderBaseURL == "" {
		out.ReaderBaseURL = "https://r.jina.ai"
	}
	if out.TikTokResolverURL == "" {
		out.TikTokResolverURL = "https://www.tikwm.com/api/"
	}
	if out.TweetMirrorHost == "" {
		out.TweetMirrorHost = "nitter.net"
	}
	if out.WebCacheURL == "" {
		out.WebCacheURL = "https://webcache.googleusercontent.com/search?q=cache:"
	}
	if out.UserAgent == "" {
		out.UserAgent = "Mozilla/5.0 (compatible; TutorialPipeline/1.0)"
	}
	if out.Timeout <= 0 {
		out.Timeout = 20 * time.Second
	}
	if out.MaxDownloadBytes <= 0 {
		out.MaxDownloadBytes = 25 << 20
	}
	out.ReaderBaseURL = strings.TrimRight(out.ReaderBaseURL, "/")
	out.TranscriptBaseURL = strings.TrimRight(out.TranscriptBaseURL, "/")
	return out
}

// Dispatcher routes a URL to the strategy registered for its source type.
type Dispatcher struct {
	strategies map[domain.SourceType]Strategy
}

func NewDispatcher(strategies ...Strategy) *Dispatcher {
	d := &Dispatcher{strategies: make(map[domain.SourceType]Strategy, len(strategies))}
	for _, s := range strategies {
		d.Register(s)
	}
	return d
}

// New wires the six built-in strategies around one HTTP fetcher.
func New(cfg Config, transcriber Transcriber, executor *resilience.Executor) *Dispatcher {
	cfg = cfg.normalize()
	f := &fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		executor:  executor,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxDownloadBytes,
	}
	reader := &Reader{baseURL: cfg.ReaderBaseURL, apiKey: cfg.ReaderAPIKey, fetch: f}

	return NewDispatcher(
		&ArticleStrategy{reader: reader, fetch: f},
		&TikTokStrategy{reader: reader, fetch: f, resolverURL: cfg.TikTokResolverURL, transcriber: transcriber},
		&TweetStrategy{reader: reader, mirrorHost: cfg.TweetMirrorHost},
		&YouTubeStrategy{reader: reader, fetch: f, transcriptBaseURL: cfg.TranscriptBaseURL},
		&PDFStrategy{fetch: f},
		&LinkedInStrategy{reader: reader, cacheURL: cfg.WebCacheURL},
	)
}

func (d *Dispatcher) Register(s Strategy) {
	d.strategies[s.SourceType()] = s
}

func (d *Dispatcher) Extract(ctx context.Context, rawURL string, sourceType domain.SourceType) (string, error) {
	strategy, ok := d.strategies[sourceType]
	if !ok {
		strategy, ok = d.strategies[domain.SourceArticle]
	}
	if !ok {
		return "", fmt.Errorf("no extraction strategy registered for %s", sourceType)
	}

	started := time.Now()
	text, err := strategy.Extract(ctx, rawURL)
	if err != nil {
		slog.Warn("extraction_failed",
			"source_type", string(strategy.SourceType()),
			"url", rawURL,
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err,
		)
		return "", err
	}
	slog.Info("extraction_succeeded",
		"source_type", string(strategy.SourceType()),
		"url", rawURL,
		"chars", utf8.RuneCountInString(text),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return text, nil
}

func longEnough(text string, min int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= min
}

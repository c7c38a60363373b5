package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/resilience"
)

// FetchError describes a failed upstream request. The cause keeps the
// "status <code>" wording of resilience.StatusError.
type FetchError struct {
	URL     string
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil && e.Message == "" {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

type response struct {
	body        []byte
	contentType string
}

type fetcher struct {
	client    *http.Client
	executor  *resilience.Executor
	userAgent string
	maxBytes  int64
}

func (f *fetcher) get(ctx context.Context, operation, rawURL string, headers map[string]string) (*response, error) {
	var out *response
	err := resilience.Call(ctx, f.executor, operation, func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", f.userAgent)
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resilience.NewStatusError(operation, resp)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
		if err != nil {
			return err
		}
		if int64(len(body)) > f.maxBytes {
			return fmt.Errorf("response exceeds %d bytes", f.maxBytes)
		}
		out = &response{body: body, contentType: resp.Header.Get("Content-Type")}
		return nil
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Cause: err}
	}
	return out, nil
}

// Reader proxies pages through a readability service that returns the
// main text of any URL appended to its base.
type Reader struct {
	baseURL string
	apiKey  string
	fetch   *fetcher
}

func (r *Reader) Read(ctx context.Context, target string) (string, error) {
	headers := map[string]string{
		"Accept":          "text/plain",
		"X-Return-Format": "text",
	}
	if r.apiKey != "" {
		headers["Authorization"] = "Bearer " + r.apiKey
	}
	resp, err := r.fetch.get(ctx, "extract.reader", r.baseURL+"/"+target, headers)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(resp.body)), nil
}

var contentSelectors = []string{
	"main",
	"article",
	"[role='main']",
	".post-content",
	".entry-content",
	".content",
	"#content",
}

// mainText strips page chrome and returns the text of the first content
// container, or of the body when none matches.
func mainText(html []byte, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript, iframe, form, aside, .ad, .ads, .sidebar, .cookie-banner, .popup").Remove()
	if len(noiseSelectors) > 0 {
		doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	}

	var content *goquery.Selection
	for _, selector := range contentSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			content = selection.First()
			break
		}
	}
	if content == nil {
		content = doc.Find("body")
	}
	return cleanLines(content.Text()), nil
}

func cleanLines(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

func logFallback(sourceType, from, to, rawURL string, err error) {
	attrs := []any{"source_type", sourceType, "from", from, "to", to, "url", rawURL}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	slog.Debug("extraction_fallback", attrs...)
}

package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/failure"
)

const longText = "Go channels let goroutines communicate safely. This walkthrough shows buffered and unbuffered channels in practice."

type readerStub map[string]func(w http.ResponseWriter)

// newReaderServer serves the readability proxy: the request URI minus its
// leading slash is the proxied target.
func newReaderServer(t *testing.T, routes readerStub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := strings.TrimPrefix(r.URL.RequestURI(), "/")
		if handler, ok := routes[target]; ok {
			handler(w)
			return
		}
		http.Error(w, "unknown target "+target, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func text(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) { _, _ = w.Write([]byte(body)) }
}

func status(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) { w.WriteHeader(code) }
}

type transcriberFake struct {
	text   string
	err    error
	gotURL string
}

func (f *transcriberFake) Transcribe(_ context.Context, mediaURL string) (string, error) {
	f.gotURL = mediaURL
	return f.text, f.err
}

func TestDispatcherFallsBackToArticleStrategy(t *testing.T) {
	reader := newReaderServer(t, readerStub{"https://example.com/post": text(longText)})
	d := New(Config{ReaderBaseURL: reader.URL}, nil, nil)

	got, err := d.Extract(context.Background(), "https://example.com/post", domain.SourceType("podcast"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != longText {
		t.Fatalf("unexpected text %q", got)
	}
}

type strategyFake struct {
	kind domain.SourceType
	out  string
}

func (s strategyFake) SourceType() domain.SourceType { return s.kind }
func (s strategyFake) Extract(context.Context, string) (string, error) {
	return s.out, nil
}

func TestDispatcherRoutesBySourceType(t *testing.T) {
	d := NewDispatcher(
		strategyFake{kind: domain.SourceArticle, out: "article"},
		strategyFake{kind: domain.SourcePDF, out: "pdf"},
	)

	got, err := d.Extract(context.Background(), "https://example.com/a.pdf", domain.SourcePDF)
	if err != nil || got != "pdf" {
		t.Fatalf("expected pdf strategy, got %q, %v", got, err)
	}

	if _, err := NewDispatcher().Extract(context.Background(), "https://example.com", domain.SourceArticle); err == nil {
		t.Fatalf("expected error without strategies")
	}
}

func TestArticleStrategyFallsBackToDirectFetch(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><body><nav>Home About</nav>\n<main>\n<h1>Channels</h1>\n<p>%s</p>\n</main>\n<footer>(c) 2026</footer></body></html>", longText)
	}))
	defer site.Close()

	reader := newReaderServer(t, readerStub{site.URL + "/post": status(http.StatusBadGateway)})
	d := New(Config{ReaderBaseURL: reader.URL}, nil, nil)

	got, err := d.Extract(context.Background(), site.URL+"/post", domain.SourceArticle)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Channels\n"+longText {
		t.Fatalf("unexpected text %q", got)
	}
	if strings.Contains(got, "Home About") || strings.Contains(got, "2026") {
		t.Fatalf("navigation and footer must be stripped: %q", got)
	}
}

func TestArticleStrategyErrorsClassify(t *testing.T) {
	tests := []struct {
		name string
		site http.HandlerFunc
		want failure.Kind
	}{
		{
			name: "short page is permanent",
			site: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html><body><p>Hi.</p></body></html>"))
			},
			want: failure.KindPermanent,
		},
		{
			name: "not found is permanent",
			site: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
			want: failure.KindPermanent,
		},
		{
			name: "upstream outage is transient",
			site: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			want: failure.KindTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := httptest.NewServer(tt.site)
			defer site.Close()
			reader := newReaderServer(t, readerStub{site.URL + "/post": text("short")})
			d := New(Config{ReaderBaseURL: reader.URL}, nil, nil)

			_, err := d.Extract(context.Background(), site.URL+"/post", domain.SourceArticle)
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := failure.Classify(err); got != tt.want {
				t.Fatalf("Classify(%q) = %s, want %s", err, got, tt.want)
			}
		})
	}
}

func TestReaderSendsBearerKey(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(longText))
	}))
	defer srv.Close()

	d := New(Config{ReaderBaseURL: srv.URL, ReaderAPIKey: "secret"}, nil, nil)
	if _, err := d.Extract(context.Background(), "https://example.com/post", domain.SourceArticle); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected authorization header %q", auth)
	}
}

func TestTikTokStrategyTranscribesResolvedVideo(t *testing.T) {
	var resolved string
	resolver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = r.URL.Query().Get("url")
		_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":{"play":"https://cdn.test/v.mp4","title":"Docker tip"}}`))
	}))
	defer resolver.Close()
	reader := newReaderServer(t, readerStub{})
	transcriber := &transcriberFake{text: "Use multi-stage builds to keep images small."}

	d := New(Config{ReaderBaseURL: reader.URL, TikTokResolverURL: resolver.URL + "/api/"}, transcriber, nil)
	got, err := d.Extract(context.Background(), "https://www.tiktok.com/@dev/video/1", domain.SourceTikTok)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Docker tip\n\nUse multi-stage builds to keep images small." {
		t.Fatalf("unexpected text %q", got)
	}
	if resolved != "https://www.tiktok.com/@dev/video/1" || transcriber.gotURL != "https://cdn.test/v.mp4" {
		t.Fatalf("unexpected resolve %q or media url %q", resolved, transcriber.gotURL)
	}
}

func TestTikTokStrategyUnavailableVideoIsPermanent(t *testing.T) {
	resolver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":-1,"msg":"video is private"}`))
	}))
	defer resolver.Close()

	d := New(Config{ReaderBaseURL: "http://unused.invalid", TikTokResolverURL: resolver.URL}, &transcriberFake{}, nil)
	_, err := d.Extract(context.Background(), "https://www.tiktok.com/@dev/video/2", domain.SourceTikTok)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if failure.Classify(err) != failure.KindPermanent {
		t.Fatalf("expected permanent failure for %q", err)
	}
}

func TestTikTokStrategyWithoutSpeechReportsNoSpokenContent(t *testing.T) {
	resolver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":{"play":"https://cdn.test/v.mp4","title":"vibes"}}`))
	}))
	defer resolver.Close()
	reader := newReaderServer(t, readerStub{"https://www.tiktok.com/@dev/video/3": text("TikTok")})

	d := New(Config{ReaderBaseURL: reader.URL, TikTokResolverURL: resolver.URL}, &transcriberFake{text: "la la"}, nil)
	_, err := d.Extract(context.Background(), "https://www.tiktok.com/@dev/video/3", domain.SourceTikTok)
	if err == nil || !strings.Contains(err.Error(), "no spoken content") {
		t.Fatalf("expected no spoken content error, got %v", err)
	}
	if failure.Classify(err) != failure.KindPermanent {
		t.Fatalf("expected permanent failure for %q", err)
	}
}

func TestTweetStrategyUsesMirror(t *testing.T) {
	reader := newReaderServer(t, readerStub{
		"https://x.com/dev/status/42":       text("Log in"),
		"https://mirror.test/dev/status/42": text("Tip: run go vet before every commit."),
	})

	d := New(Config{ReaderBaseURL: reader.URL, TweetMirrorHost: "mirror.test"}, nil, nil)
	got, err := d.Extract(context.Background(), "https://x.com/dev/status/42", domain.SourceTweet)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Tip: run go vet before every commit." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestYouTubeVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ", ok: true},
		{url: "https://youtu.be/dQw4w9WgXcQ?t=10", want: "dQw4w9WgXcQ", ok: true},
		{url: "https://youtube.com/shorts/abcDEF12345", want: "abcDEF12345", ok: true},
		{url: "https://www.youtube.com/embed/abc_DEF-123", want: "abc_DEF-123", ok: true},
		{url: "https://m.youtube.com/live/abcDEF12345?feature=share", want: "abcDEF12345", ok: true},
		{url: "https://www.youtube.com/channel/UC123", ok: false},
		{url: "https://www.youtube.com/watch?v=short", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := YouTubeVideoID(tt.url)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("YouTubeVideoID(%q) = %q, %v; want %q, %v", tt.url, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestYouTubeStrategy(t *testing.T) {
	transcripts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("video_id") {
		case "dQw4w9WgXcQ":
			_, _ = w.Write([]byte(`{"segments":[{"text":"Today we profile"},{"text":"a Go service with pprof."}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer transcripts.Close()
	reader := newReaderServer(t, readerStub{"https://www.youtube.com/watch?v=abcDEF12345": text("YouTube")})
	d := New(Config{ReaderBaseURL: reader.URL, TranscriptBaseURL: transcripts.URL}, nil, nil)

	got, err := d.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ", domain.SourceYouTube)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Today we profile a Go service with pprof." {
		t.Fatalf("unexpected transcript %q", got)
	}

	_, err = d.Extract(context.Background(), "https://youtu.be/abcDEF12345", domain.SourceYouTube)
	if err == nil || !strings.Contains(err.Error(), "no transcript") {
		t.Fatalf("expected no transcript error, got %v", err)
	}
	if failure.Classify(err) != failure.KindPermanent {
		t.Fatalf("expected permanent failure for %q", err)
	}

	_, err = d.Extract(context.Background(), "https://www.youtube.com/feed/trending", domain.SourceYouTube)
	if err == nil || !strings.Contains(err.Error(), "could not parse video id") {
		t.Fatalf("expected video id error, got %v", err)
	}
}

func TestLinkedInStrategyUsesWebCacheForPulse(t *testing.T) {
	post := "https://www.linkedin.com/pulse/go-generics-dev"
	reader := newReaderServer(t, readerStub{
		post:                            text("Sign in"),
		"https://cache.test/?q=" + post: text(longText),
	})

	d := New(Config{ReaderBaseURL: reader.URL, WebCacheURL: "https://cache.test/?q="}, nil, nil)
	got, err := d.Extract(context.Background(), post, domain.SourceLinkedIn)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != longText {
		t.Fatalf("unexpected text %q", got)
	}

	if _, err := d.Extract(context.Background(), "https://www.linkedin.com/posts/dev-123", domain.SourceLinkedIn); err == nil {
		t.Fatalf("posts have no web-cache fallback, expected error")
	}
}

func TestPDFStrategy(t *testing.T) {
	doc := buildPDF("Concurrency Notes", "Test Author",
		"Goroutines are cheap and channels coordinate them.",
		"Share memory by communicating instead of locking.")
	short := buildPDF("A very long title that alone would pass any length check", "Test Author", "Too brief.")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notes.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(doc)
		case "/short.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(short)
		default:
			_, _ = w.Write([]byte("<html>not a pdf</html>"))
		}
	}))
	defer srv.Close()
	d := New(Config{}, nil, nil)

	got, err := d.Extract(context.Background(), srv.URL+"/notes.pdf", domain.SourcePDF)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "Title: Concurrency Notes\nAuthor: Test Author\nPages: 2\n\n" +
		"Goroutines are cheap and channels coordinate them.\nShare memory by communicating instead of locking."
	if got != want {
		t.Fatalf("unexpected text:\n%s", got)
	}

	_, err = d.Extract(context.Background(), srv.URL+"/short.pdf", domain.SourcePDF)
	if err == nil || !strings.Contains(err.Error(), "insufficient text") {
		t.Fatalf("expected insufficient text for a short body, got %v", err)
	}
	if failure.Classify(err) != failure.KindPermanent {
		t.Fatalf("expected permanent failure for %q", err)
	}

	_, err = d.Extract(context.Background(), srv.URL+"/page.pdf", domain.SourcePDF)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for html, got %v", err)
	}
}

func TestParsePDFWithoutInfo(t *testing.T) {
	doc, err := ParsePDF(buildPDF("", "", "Only a body line here."))
	if err != nil {
		t.Fatalf("ParsePDF() error = %v", err)
	}
	if doc.Pages != 1 || doc.Title != "" || doc.Body != "Only a body line here." {
		t.Fatalf("unexpected document %+v", doc)
	}
	if got := doc.Text(); got != "Pages: 1\n\nOnly a body line here." {
		t.Fatalf("unexpected text %q", got)
	}
	if (PDFDocument{Pages: 3}).Text() != "" {
		t.Fatalf("empty body must yield empty text")
	}
}

func TestParsePDFRejectsGarbage(t *testing.T) {
	if _, err := ParsePDF([]byte("%PDF-1.4 truncated")); err == nil {
		t.Fatalf("expected error")
	}
}

// buildPDF writes a document with one text line per page and a correct xref
// table. Empty title and author leave the info dictionary empty.
func buildPDF(title, author string, pages ...string) []byte {
	const firstPage = 4
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+2*i)
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	for i, line := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", line)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", firstPage+2*i+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	info := "<< "
	if title != "" {
		info += fmt.Sprintf("/Title (%s) ", title)
	}
	if author != "" {
		info += fmt.Sprintf("/Author (%s) ", author)
	}
	objects = append(objects, info+">>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, len(objects), xref)
	return buf.Bytes()
}

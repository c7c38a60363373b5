package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

type PDFStrategy struct {
	fetch *fetcher
}

func (s *PDFStrategy) SourceType() domain.SourceType { return domain.SourcePDF }

func (s *PDFStrategy) Extract(ctx context.Context, rawURL string) (string, error) {
	resp, err := s.fetch.get(ctx, "extract.pdf", rawURL, map[string]string{"Accept": "application/pdf"})
	if err != nil {
		return "", fmt.Errorf("pdf: %w", err)
	}
	if !bytes.HasPrefix(resp.body, []byte("%PDF")) {
		return "", domain.WrapError(domain.ErrInvalidInput, "pdf", fmt.Errorf("response from %s is not a pdf document (content-type %q)", rawURL, resp.contentType))
	}

	doc, err := ParsePDF(resp.body)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "pdf", err)
	}
	if !longEnough(doc.Body, minArticleChars) {
		return "", fmt.Errorf("pdf: insufficient text extracted from %s (%d pages)", rawURL, doc.Pages)
	}
	return doc.Text(), nil
}

// PDFDocument is the extracted body plus the info dictionary fields.
type PDFDocument struct {
	Title  string
	Author string
	Pages  int
	Body   string
}

// Text prefixes the body with title, author and page count.
func (d PDFDocument) Text() string {
	if d.Body == "" {
		return ""
	}
	var header []string
	if d.Title != "" {
		header = append(header, "Title: "+d.Title)
	}
	if d.Author != "" {
		header = append(header, "Author: "+d.Author)
	}
	header = append(header, fmt.Sprintf("Pages: %d", d.Pages))
	return strings.Join(header, "\n") + "\n\n" + d.Body
}

// ParsePDF reads the plain text of every page and the info dictionary.
func ParsePDF(data []byte) (doc PDFDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return PDFDocument{}, fmt.Errorf("pdf reader: %w", err)
	}
	pages := r.NumPage()
	if pages == 0 {
		return PDFDocument{}, fmt.Errorf("pdf has no pages")
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return PDFDocument{}, fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return PDFDocument{}, fmt.Errorf("pdf read: %w", err)
	}

	info := r.Trailer().Key("Info")
	return PDFDocument{
		Title:  strings.TrimSpace(info.Key("Title").Text()),
		Author: strings.TrimSpace(info.Key("Author").Text()),
		Pages:  pages,
		Body:   cleanLines(string(b)),
	}, nil
}

package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/resilience"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

type YouTubeStrategy struct {
	reader            *Reader
	fetch             *fetcher
	transcriptBaseURL string
}

type transcriptResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
}

func (s *YouTubeStrategy) SourceType() domain.SourceType { return domain.SourceYouTube }

func (s *YouTubeStrategy) Extract(ctx context.Context, rawURL string) (string, error) {
	videoID, ok := YouTubeVideoID(rawURL)
	if !ok {
		return "", fmt.Errorf("youtube: could not parse video id from %s", rawURL)
	}

	transcript, terr := s.transcript(ctx, videoID)
	if terr == nil && longEnough(transcript, minSpokenChars) {
		return transcript, nil
	}
	logFallback("youtube", "transcript", "reader", rawURL, terr)

	text, rerr := s.reader.Read(ctx, "https://www.youtube.com/watch?v="+videoID)
	if rerr == nil && longEnough(text, minArticleChars) {
		return text, nil
	}

	if isNotFound(terr) || (terr == nil && rerr == nil) {
		return "", fmt.Errorf("youtube: no transcript available for video %s", videoID)
	}
	if rerr != nil {
		return "", fmt.Errorf("youtube: %w", rerr)
	}
	return "", fmt.Errorf("youtube: %w", terr)
}

func (s *YouTubeStrategy) transcript(ctx context.Context, videoID string) (string, error) {
	if s.transcriptBaseURL == "" {
		return "", errors.New("transcript service is not configured")
	}
	endpoint := s.transcriptBaseURL + "/transcript?video_id=" + url.QueryEscape(videoID)
	resp, err := s.fetch.get(ctx, "extract.youtube_transcript", endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return "", err
	}

	var out transcriptResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return "", fmt.Errorf("decode transcript response: %w", err)
	}
	if strings.TrimSpace(out.Text) != "" {
		return strings.TrimSpace(out.Text), nil
	}
	parts := make([]string, 0, len(out.Segments))
	for _, seg := range out.Segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// YouTubeVideoID returns the 11-character id from watch, short-link, shorts,
// embed and live URLs.
func YouTubeVideoID(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch {
	case host == "youtu.be":
		id = segments[0]
	case u.Query().Get("v") != "":
		id = u.Query().Get("v")
	case len(segments) >= 2:
		switch segments[0] {
		case "shorts", "embed", "live", "v":
			id = segments[1]
		}
	}
	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

func isNotFound(err error) bool {
	var statusErr *resilience.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

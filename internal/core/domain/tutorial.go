package domain

import (
	"strings"
	"time"
)

type LevelRelation string

const (
	RelationLevelUp       LevelRelation = "level-up"
	RelationLevelPractice LevelRelation = "level-practice"
	RelationCrossLevel    LevelRelation = "cross-level"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

type Classification struct {
	MaturityLevel  int           `json:"maturity_level" validate:"gte=0,lte=4"`
	LevelRelation  LevelRelation `json:"level_relation" validate:"required,oneof=level-up level-practice cross-level"`
	Topics         []string      `json:"topics" validate:"required,min=1,dive,required"`
	Tags           []string      `json:"tags" validate:"dive,required"`
	ToolsMentioned []string      `json:"tools_mentioned" validate:"dive,required"`
	Difficulty     Difficulty    `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
}

type GeneratedTutorial struct {
	Title          string         `json:"title" validate:"required"`
	Slug           string         `json:"slug"`
	Summary        string         `json:"summary" validate:"required"`
	Body           string         `json:"body" validate:"required"`
	ActionItems    []string       `json:"action_items"`
	Classification Classification `json:"classification" validate:"-"`
}

// Tutorial is the published artifact; several submissions may merge into one.
type Tutorial struct {
	ID             string        `json:"id"`
	Slug           string        `json:"slug"`
	Title          string        `json:"title"`
	Summary        string        `json:"summary"`
	Body           string        `json:"body"`
	ActionItems    []string      `json:"action_items"`
	MaturityLevel  int           `json:"maturity_level"`
	LevelRelation  LevelRelation `json:"level_relation"`
	Difficulty     Difficulty    `json:"difficulty"`
	Topics         []string      `json:"topics"`
	Tags           []string      `json:"tags"`
	ToolsMentioned []string      `json:"tools_mentioned"`
	SourceURLs     []string      `json:"source_urls"`
	SourceCount    int           `json:"source_count"`
	HotNews        bool          `json:"hot_news"`
	ImageURL       *string       `json:"image_url,omitempty"`
	AudioURL       *string       `json:"audio_url,omitempty"`
	Published      bool          `json:"published"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// MergeResult replaces the textual content of an existing tutorial.
type MergeResult struct {
	Body        string   `json:"body" validate:"required"`
	Summary     string   `json:"summary" validate:"required"`
	ActionItems []string `json:"action_items"`
}

// Source links a submission to the raw text it was extracted from.
type Source struct {
	ID           string     `json:"id"`
	SubmissionID string     `json:"submission_id"`
	URL          string     `json:"url"`
	SourceType   SourceType `json:"source_type"`
	RawText      string     `json:"raw_text"`
	TutorialID   *string    `json:"tutorial_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SharedTopics counts case-insensitive topic overlap between two sets.
func SharedTopics(a, b []string) int {
	seen := make(map[string]struct{}, len(a))
	for _, topic := range a {
		seen[normalizeTopic(topic)] = struct{}{}
	}
	shared := 0
	for _, topic := range b {
		key := normalizeTopic(topic)
		if _, ok := seen[key]; ok {
			shared++
			delete(seen, key)
		}
	}
	return shared
}

const maxSlugLen = 80

// Slugify lowercases s and joins its ASCII alphanumeric runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "tutorial"
	}
	return slug
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

const tutorialColumns = `id, slug, title, summary, body, action_items, maturity_level, level_relation, difficulty,
	topics, tags, tools_mentioned, source_urls, source_count, hot_news, image_url, audio_url, published,
	created_at, updated_at`

type TutorialRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewTutorialRepository(db *sql.DB) *TutorialRepository {
	return &TutorialRepository{db: db, now: time.Now}
}

// Create inserts a tutorial. A taken slug is reported as ErrSlugConflict.
func (r *TutorialRepository) Create(ctx context.Context, t *domain.Tutorial) error {
	lists, err := marshalTutorialLists(t)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO tutorials (
	id, slug, title, summary, body, action_items, maturity_level, level_relation, difficulty,
	topics, tags, tools_mentioned, source_urls, source_count, hot_news, image_url, audio_url, published,
	created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
`,
		t.ID, t.Slug, t.Title, t.Summary, t.Body, lists[0], t.MaturityLevel, string(t.LevelRelation), string(t.Difficulty),
		lists[1], lists[2], lists[3], lists[4], t.SourceCount, t.HotNews, nullString(t.ImageURL), nullString(t.AudioURL),
		t.Published, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrSlugConflict, "insert tutorial", fmt.Errorf("slug=%s", t.Slug))
		}
		return fmt.Errorf("insert tutorial: %w", err)
	}
	return nil
}

func (r *TutorialRepository) GetByID(ctx context.Context, id string) (*domain.Tutorial, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tutorialColumns+` FROM tutorials WHERE id = $1`, id)
	t, err := scanTutorial(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTutorialNotFound, "get tutorial", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan tutorial: %w", err)
	}
	return &t, nil
}

func (r *TutorialRepository) FindBySourceURL(ctx context.Context, sourceURL string) (*domain.Tutorial, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+tutorialColumns+`
FROM tutorials
WHERE source_urls @> jsonb_build_array($1::text)
ORDER BY created_at ASC
LIMIT 1
`, sourceURL)
	t, err := scanTutorial(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTutorialNotFound, "find tutorial by source url", fmt.Errorf("url=%s", sourceURL))
		}
		return nil, fmt.Errorf("scan tutorial: %w", err)
	}
	return &t, nil
}

// FindMergeCandidates returns published tutorials at maturityLevel sharing at
// least one topic. Ranking by overlap happens in the publish step.
func (r *TutorialRepository) FindMergeCandidates(ctx context.Context, maturityLevel int, topics []string, limit int) ([]domain.Tutorial, error) {
	normalized := make([]string, 0, len(topics))
	for _, topic := range topics {
		if t := strings.ToLower(strings.TrimSpace(topic)); t != "" {
			normalized = append(normalized, t)
		}
	}
	if len(normalized) == 0 {
		return []domain.Tutorial{}, nil
	}
	topicsJSON, err := marshalList(normalized)
	if err != nil {
		return nil, fmt.Errorf("marshal topics: %w", err)
	}

	q := psql.Select(tutorialColumns).
		From("tutorials").
		Where(sq.Eq{"maturity_level": maturityLevel, "published": true}).
		Where("topics ??| ARRAY(SELECT jsonb_array_elements_text(?::jsonb))", string(topicsJSON)).
		OrderBy("updated_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build candidate query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find merge candidates: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Tutorial, 0)
	for rows.Next() {
		t, err := scanTutorial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tutorial: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tutorials: %w", err)
	}
	return out, nil
}

// ApplyMerge replaces body, summary and action items and appends sourceURL to
// source_urls unless it is already present, all in one statement.
func (r *TutorialRepository) ApplyMerge(ctx context.Context, id string, merge domain.MergeResult, sourceURL string) (*domain.Tutorial, error) {
	actionItems, err := marshalList(merge.ActionItems)
	if err != nil {
		return nil, fmt.Errorf("marshal action items: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
UPDATE tutorials
SET body = $2,
	summary = $3,
	action_items = $4,
	source_urls = CASE WHEN source_urls @> jsonb_build_array($5::text) THEN source_urls ELSE source_urls || jsonb_build_array($5::text) END,
	source_count = CASE WHEN source_urls @> jsonb_build_array($5::text) THEN source_count ELSE source_count + 1 END,
	updated_at = $6
WHERE id = $1
RETURNING `+tutorialColumns, id, merge.Body, merge.Summary, actionItems, sourceURL, r.now().UTC())

	t, err := scanTutorial(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTutorialNotFound, "merge tutorial", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("merge tutorial: %w", err)
	}
	return &t, nil
}

func (r *TutorialRepository) SetMedia(ctx context.Context, id string, imageURL, audioURL *string) error {
	if imageURL == nil && audioURL == nil {
		return nil
	}
	q := psql.Update("tutorials").
		Set("updated_at", r.now().UTC()).
		Where(sq.Eq{"id": id})
	if imageURL != nil {
		q = q.Set("image_url", *imageURL)
	}
	if audioURL != nil {
		q = q.Set("audio_url", *audioURL)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build media update: %w", err)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set tutorial media: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set tutorial media rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrTutorialNotFound, "set tutorial media", fmt.Errorf("id=%s", id))
	}
	return nil
}

func marshalTutorialLists(t *domain.Tutorial) ([5][]byte, error) {
	var out [5][]byte
	fields := []struct {
		name   string
		values []string
	}{
		{"action_items", t.ActionItems},
		{"topics", t.Topics},
		{"tags", t.Tags},
		{"tools_mentioned", t.ToolsMentioned},
		{"source_urls", t.SourceURLs},
	}
	for i, f := range fields {
		raw, err := marshalList(f.values)
		if err != nil {
			return out, fmt.Errorf("marshal %s: %w", f.name, err)
		}
		out[i] = raw
	}
	return out, nil
}

func scanTutorial(row rowScanner) (domain.Tutorial, error) {
	var (
		t                                            domain.Tutorial
		levelRelation, difficulty                    string
		actionItems, topics, tags, tools, sourceURLs []byte
		imageURL, audioURL                           sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.Slug, &t.Title, &t.Summary, &t.Body, &actionItems, &t.MaturityLevel, &levelRelation, &difficulty,
		&topics, &tags, &tools, &sourceURLs, &t.SourceCount, &t.HotNews, &imageURL, &audioURL, &t.Published,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Tutorial{}, err
	}

	t.LevelRelation = domain.LevelRelation(levelRelation)
	t.Difficulty = domain.Difficulty(difficulty)
	t.ImageURL = stringPtr(imageURL)
	t.AudioURL = stringPtr(audioURL)

	if t.ActionItems, err = unmarshalList(actionItems, "action_items"); err != nil {
		return domain.Tutorial{}, err
	}
	if t.Topics, err = unmarshalList(topics, "topics"); err != nil {
		return domain.Tutorial{}, err
	}
	if t.Tags, err = unmarshalList(tags, "tags"); err != nil {
		return domain.Tutorial{}, err
	}
	if t.ToolsMentioned, err = unmarshalList(tools, "tools_mentioned"); err != nil {
		return domain.Tutorial{}, err
	}
	if t.SourceURLs, err = unmarshalList(sourceURLs, "source_urls"); err != nil {
		return domain.Tutorial{}, err
	}
	return t, nil
}

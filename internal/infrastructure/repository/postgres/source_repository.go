package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// Upsert keeps one source row per submission; a re-extraction overwrites it.
func (r *SourceRepository) Upsert(ctx context.Context, source *domain.Source) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sources (id, submission_id, url, source_type, raw_text, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (submission_id) DO UPDATE
SET url = EXCLUDED.url, source_type = EXCLUDED.source_type, raw_text = EXCLUDED.raw_text
`, source.ID, source.SubmissionID, source.URL, string(source.SourceType), source.RawText, source.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}
	return nil
}

// LinkTutorial is a no-op for submissions whose text predates source rows.
func (r *SourceRepository) LinkTutorial(ctx context.Context, submissionID, tutorialID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE sources
SET tutorial_id = $2
WHERE submission_id = $1
`, submissionID, tutorialID)
	if err != nil {
		return fmt.Errorf("link source to tutorial: %w", err)
	}
	return nil
}

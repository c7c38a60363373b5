package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

const submissionColumns = `id, url, source_type, channel, sender, hot_news, status, retry_count, max_retries,
	last_step, last_error, extracted_text, classification, generated_tutorial, tutorial_id,
	started_at, completed_at, created_at, updated_at`

type SubmissionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db, now: time.Now}
}

func (r *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO submissions (
	id, url, source_type, channel, sender, hot_news, status, retry_count, max_retries, last_step, last_error, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		sub.ID, sub.URL, string(sub.SourceType), string(sub.Channel), sub.Sender, sub.HotNews, string(sub.Status),
		sub.RetryCount, sub.MaxRetries, string(sub.LastStep), sub.LastError, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSubmissionNotFound, "get submission", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	return &sub, nil
}

// Update writes only the fields set on update, so payload columns are never
// nulled except by ClearPayloads.
func (r *SubmissionRepository) Update(ctx context.Context, id string, update domain.SubmissionUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	q := psql.Update("submissions").
		Set("updated_at", r.now().UTC()).
		Where(sq.Eq{"id": id})

	if update.ClearPayloads {
		if update.ExtractedText == nil {
			q = q.Set("extracted_text", nil)
		}
		if update.Classification == nil {
			q = q.Set("classification", nil)
		}
		if update.GeneratedTutorial == nil {
			q = q.Set("generated_tutorial", nil)
		}
	}
	if update.Status != nil {
		q = q.Set("status", string(*update.Status))
	}
	if update.LastStep != nil {
		q = q.Set("last_step", string(*update.LastStep))
	}
	if update.LastError != nil {
		q = q.Set("last_error", *update.LastError)
	}
	if update.RetryCount != nil {
		q = q.Set("retry_count", *update.RetryCount)
	}
	if update.ExtractedText != nil {
		q = q.Set("extracted_text", *update.ExtractedText)
	}
	if update.Classification != nil {
		raw, err := json.Marshal(update.Classification)
		if err != nil {
			return fmt.Errorf("marshal classification: %w", err)
		}
		q = q.Set("classification", raw)
	}
	if update.GeneratedTutorial != nil {
		raw, err := json.Marshal(update.GeneratedTutorial)
		if err != nil {
			return fmt.Errorf("marshal generated tutorial: %w", err)
		}
		q = q.Set("generated_tutorial", raw)
	}
	if update.TutorialID != nil {
		q = q.Set("tutorial_id", *update.TutorialID)
	}
	if update.StartedAt != nil {
		q = q.Set("started_at", *update.StartedAt)
	}
	if update.CompletedAt != nil {
		q = q.Set("completed_at", *update.CompletedAt)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build submission update: %w", err)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update submission rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrSubmissionNotFound, "update submission", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *SubmissionRepository) ListByStatus(ctx context.Context, statuses []domain.SubmissionStatus, limit int) ([]domain.Submission, error) {
	return r.list(ctx, statusQuery(statuses, limit))
}

// ListStale returns rows in the given statuses whose updated_at is older than updatedBefore.
func (r *SubmissionRepository) ListStale(ctx context.Context, statuses []domain.SubmissionStatus, updatedBefore time.Time, limit int) ([]domain.Submission, error) {
	return r.list(ctx, statusQuery(statuses, limit).Where(sq.Lt{"updated_at": updatedBefore.UTC()}))
}

func statusQuery(statuses []domain.SubmissionStatus, limit int) sq.SelectBuilder {
	q := psql.Select(submissionColumns).From("submissions").OrderBy("updated_at ASC")
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		q = q.Where(sq.Eq{"status": values})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

func (r *SubmissionRepository) list(ctx context.Context, q sq.SelectBuilder) ([]domain.Submission, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build submission list: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func scanSubmission(row rowScanner) (domain.Submission, error) {
	var (
		sub                                   domain.Submission
		sourceType, channel, status, lastStep string
		extracted, tutorialID                 sql.NullString
		classificationRaw, generatedRaw       []byte
		startedAt, completedAt                sql.NullTime
	)
	err := row.Scan(
		&sub.ID, &sub.URL, &sourceType, &channel, &sub.Sender, &sub.HotNews, &status, &sub.RetryCount, &sub.MaxRetries,
		&lastStep, &sub.LastError, &extracted, &classificationRaw, &generatedRaw, &tutorialID,
		&startedAt, &completedAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return domain.Submission{}, err
	}

	sub.SourceType = domain.SourceType(sourceType)
	sub.Channel = domain.Channel(channel)
	sub.Status = domain.SubmissionStatus(status)
	sub.LastStep = domain.SubmissionStatus(lastStep)
	sub.ExtractedText = stringPtr(extracted)
	sub.TutorialID = stringPtr(tutorialID)
	sub.StartedAt = timePtr(startedAt)
	sub.CompletedAt = timePtr(completedAt)

	if len(classificationRaw) > 0 {
		var cls domain.Classification
		if err := json.Unmarshal(classificationRaw, &cls); err != nil {
			return domain.Submission{}, fmt.Errorf("unmarshal classification: %w", err)
		}
		sub.Classification = &cls
	}
	if len(generatedRaw) > 0 {
		var gen domain.GeneratedTutorial
		if err := json.Unmarshal(generatedRaw, &gen); err != nil {
			return domain.Submission{}, fmt.Errorf("unmarshal generated tutorial: %w", err)
		}
		sub.GeneratedTutorial = &gen
	}
	return sub, nil
}

package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
)

const defaultReportLimit = 1000

type ReportUseCase struct {
	repo   ports.SubmissionRepository
	writer ports.ReportWriter
}

func NewReportUseCase(repo ports.SubmissionRepository, writer ports.ReportWriter) *ReportUseCase {
	return &ReportUseCase{repo: repo, writer: writer}
}

// Export renders submissions in the given statuses; no statuses means all.
func (uc *ReportUseCase) Export(ctx context.Context, statuses []domain.SubmissionStatus, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = defaultReportLimit
	}
	subs, err := uc.repo.ListByStatus(ctx, statuses, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	data, err := uc.writer.WriteSubmissions(subs)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return data, nil
}

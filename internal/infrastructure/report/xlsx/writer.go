package xlsx

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

const SheetName = "Submissions"

var columns = []string{
	"id", "url", "source_type", "channel", "status", "last_step",
	"retry_count", "last_error", "tutorial_id", "started_at", "completed_at", "created_at",
}

// Writer renders submissions as a single-sheet xlsx workbook.
type Writer struct{}

func New() *Writer {
	return &Writer{}
}

func (w *Writer) WriteSubmissions(subs []domain.Submission) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("xlsx: write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx: header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("xlsx: apply header style: %w", err)
	}

	for i, sub := range subs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("xlsx: cell name: %w", err)
		}
		row := submissionRow(sub)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx: write row %d: %w", i+2, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return nil, fmt.Errorf("xlsx: column name: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", lastCol, 18); err != nil {
		return nil, fmt.Errorf("xlsx: column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 48); err != nil {
		return nil, fmt.Errorf("xlsx: column width: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("xlsx: freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func submissionRow(sub domain.Submission) []any {
	tutorialID := ""
	if sub.TutorialID != nil {
		tutorialID = *sub.TutorialID
	}
	return []any{
		sub.ID,
		sub.URL,
		string(sub.SourceType),
		string(sub.Channel),
		string(sub.Status),
		string(sub.LastStep),
		sub.RetryCount,
		sub.LastError,
		tutorialID,
		formatTime(sub.StartedAt),
		formatTime(sub.CompletedAt),
		formatTime(&sub.CreatedAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

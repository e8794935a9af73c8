package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"gapcards-backend/internal/models"
)

// GapSource is the read side of the grading system.
type GapSource interface {
	AnswerSheet(ctx context.Context, sheetID uuid.UUID) (*models.AnswerSheet, error)
	EvaluationsWithGaps(ctx context.Context, sheetID uuid.UUID) ([]models.GapRecord, error)
}

type GapAggregator struct {
	source GapSource
}

func NewGapAggregator(source GapSource) *GapAggregator {
	return &GapAggregator{source: source}
}

// Gaps returns the sheet and its gap records in ascending question order.
// A sheet without gaps yields an empty slice and no error.
func (a *GapAggregator) Gaps(ctx context.Context, studentID, sheetID uuid.UUID) (*models.AnswerSheet, []models.GapRecord, error) {
	sheet, err := a.source.AnswerSheet(ctx, sheetID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load answer sheet: %w", err)
	}
	if sheet.StudentID != studentID {
		return nil, nil, ErrNotFound
	}

	records, err := a.source.EvaluationsWithGaps(ctx, sheetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load evaluations: %w", err)
	}

	gaps := make([]models.GapRecord, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Gaps) == "" {
			continue
		}
		gaps = append(gaps, r)
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].QuestionNum < gaps[j].QuestionNum
	})

	return sheet, gaps, nil
}

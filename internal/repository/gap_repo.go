package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gapcards-backend/internal/models"
)

// GapRepo reads graded answer sheets owned by the grading side of the app.
type GapRepo struct {
	pool *pgxpool.Pool
}

func NewGapRepo(pool *pgxpool.Pool) *GapRepo {
	return &GapRepo{pool: pool}
}

func (r *GapRepo) AnswerSheet(ctx context.Context, sheetID uuid.UUID) (*models.AnswerSheet, error) {
	s := &models.AnswerSheet{}
	query := `SELECT s.id, s.student_id, COALESCE(e.exam_name, ''), COALESCE(e.subject, '')
		FROM answer_sheets s LEFT JOIN exams e ON e.id = s.exam_id
		WHERE s.id = $1`

	err := r.pool.QueryRow(ctx, query, sheetID).Scan(&s.ID, &s.StudentID, &s.ExamName, &s.Subject)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *GapRepo) EvaluationsWithGaps(ctx context.Context, sheetID uuid.UUID) ([]models.GapRecord, error) {
	query := `SELECT question_num, COALESCE(extracted_text, ''), gaps, COALESCE(strengths, '')
		FROM question_evaluations
		WHERE answer_sheet_id = $1 AND gaps IS NOT NULL AND btrim(gaps) <> ''
		ORDER BY question_num ASC`

	rows, err := r.pool.Query(ctx, query, sheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.GapRecord
	for rows.Next() {
		var g models.GapRecord
		if err := rows.Scan(&g.QuestionNum, &g.ExtractedText, &g.Gaps, &g.Strengths); err != nil {
			return nil, err
		}
		records = append(records, g)
	}
	return records, rows.Err()
}

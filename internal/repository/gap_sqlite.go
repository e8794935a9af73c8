package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gapcards-backend/internal/models"
)

// SQLiteGapRepo holds graded answer sheets imported for offline generation.
type SQLiteGapRepo struct {
	db *sql.DB
}

func (r *SQLiteGapRepo) AnswerSheet(ctx context.Context, sheetID uuid.UUID) (*models.AnswerSheet, error) {
	var (
		s             models.AnswerSheet
		id, studentID string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, student_id, exam_name, subject FROM answer_sheets WHERE id = ?",
		sheetID.String(),
	).Scan(&id, &studentID, &s.ExamName, &s.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse sheet id: %w", err)
	}
	if s.StudentID, err = uuid.Parse(studentID); err != nil {
		return nil, fmt.Errorf("parse student id: %w", err)
	}
	return &s, nil
}

func (r *SQLiteGapRepo) EvaluationsWithGaps(ctx context.Context, sheetID uuid.UUID) ([]models.GapRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT question_num, extracted_text, gaps, strengths FROM question_evaluations
		 WHERE answer_sheet_id = ? AND gaps IS NOT NULL AND length(trim(gaps)) > 0
		 ORDER BY question_num ASC`,
		sheetID.String(),
	)
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

// ImportSheet stores a graded sheet and its evaluations, replacing any
// earlier import of the same sheet.
func (r *SQLiteGapRepo) ImportSheet(ctx context.Context, sheet *models.AnswerSheet, evals []models.GapRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM answer_sheets WHERE id = ?", sheet.ID.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO answer_sheets (id, student_id, exam_name, subject) VALUES (?, ?, ?, ?)",
		sheet.ID.String(), sheet.StudentID.String(), sheet.ExamName, sheet.Subject,
	); err != nil {
		return fmt.Errorf("insert answer sheet: %w", err)
	}

	for _, e := range evals {
		var gaps any
		if e.Gaps != "" {
			gaps = e.Gaps
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_evaluations (answer_sheet_id, question_num, extracted_text, gaps, strengths)
			 VALUES (?, ?, ?, ?, ?)`,
			sheet.ID.String(), e.QuestionNum, e.ExtractedText, gaps, e.Strengths,
		); err != nil {
			return fmt.Errorf("insert evaluation %d: %w", e.QuestionNum, err)
		}
	}

	return tx.Commit()
}

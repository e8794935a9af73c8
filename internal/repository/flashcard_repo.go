package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gapcards-backend/internal/models"
)

const flashcardColumns = `id, student_id, source_answer_sheet_id, subject, question, answer, explanation,
	tags, level, next_review_at, last_reviewed_at, version, created_at`

type FlashcardRepo struct {
	pool *pgxpool.Pool
}

func NewFlashcardRepo(pool *pgxpool.Pool) *FlashcardRepo {
	return &FlashcardRepo{pool: pool}
}

// CreateBatch inserts every candidate inside one transaction. Either all
// cards are visible afterwards or none are.
func (r *FlashcardRepo) CreateBatch(ctx context.Context, studentID uuid.UUID, sourceID *uuid.UUID, subject string, cards []models.CandidateCard, now time.Time) (int, error) {
	if len(cards) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin flashcard batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range cards {
		batch.Queue(
			`INSERT INTO flashcards (id, student_id, source_answer_sheet_id, subject, question, answer, explanation, tags, level, next_review_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $9)`,
			uuid.New(), studentID, sourceID, subject, c.Question, c.Answer, c.Explanation, nonNilTags(c.Tags), now,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range cards {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("failed to insert flashcard %d of %d: %w", i+1, len(cards), err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("failed to close flashcard batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit flashcard batch: %w", err)
	}
	return len(cards), nil
}

func (r *FlashcardRepo) Create(ctx context.Context, c *models.Flashcard) error {
	c.ID = uuid.New()
	c.Version = 1

	query := `INSERT INTO flashcards (id, student_id, source_answer_sheet_id, subject, question, answer, explanation, tags, level, next_review_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		c.ID, c.StudentID, c.SourceAnswerSheetID, c.Subject, c.Question, c.Answer, c.Explanation,
		nonNilTags(c.Tags), c.Level, c.NextReviewAt,
	).Scan(&c.CreatedAt)
}

func (r *FlashcardRepo) Get(ctx context.Context, studentID, cardID uuid.UUID) (*models.Flashcard, error) {
	query := `SELECT ` + flashcardColumns + ` FROM flashcards WHERE id = $1 AND student_id = $2`

	c, err := scanFlashcard(r.pool.QueryRow(ctx, query, cardID, studentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateSchedule writes the scheduling fields of one card if its version
// still matches u.ExpectedVersion.
func (r *FlashcardRepo) UpdateSchedule(ctx context.Context, studentID, cardID uuid.UUID, u models.ScheduleUpdate) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE flashcards SET level = $1, next_review_at = $2, last_reviewed_at = $3, version = version + 1
		 WHERE id = $4 AND student_id = $5 AND version = $6`,
		u.Level, u.NextReviewAt, u.ReviewedAt, cardID, studentID, u.ExpectedVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM flashcards WHERE id = $1 AND student_id = $2)",
		cardID, studentID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleVersion
}

func (r *FlashcardRepo) DueBefore(ctx context.Context, studentID uuid.UUID, ts time.Time, limit int) ([]models.Flashcard, error) {
	query := `SELECT ` + flashcardColumns + ` FROM flashcards
		WHERE student_id = $1 AND next_review_at <= $2
		ORDER BY next_review_at ASC, level ASC, id ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, studentID, ts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []models.Flashcard{}
	for rows.Next() {
		c, err := scanFlashcard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

func (r *FlashcardRepo) Stats(ctx context.Context, studentID uuid.UUID, now time.Time) (*models.FlashcardStats, error) {
	stats := &models.FlashcardStats{}

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE next_review_at <= $2),
			COUNT(*) FILTER (WHERE level >= $3),
			COUNT(*) FILTER (WHERE level > 1 AND level < $3),
			COUNT(*) FILTER (WHERE level = 1 AND last_reviewed_at IS NULL)
		 FROM flashcards WHERE student_id = $1`,
		studentID, now, models.MasteredLevel,
	).Scan(&stats.TotalCards, &stats.Due, &stats.Mastered, &stats.Learning, &stats.New)
	if err != nil {
		return nil, err
	}

	if stats.TotalCards > 0 {
		stats.MasteryRate = float64(stats.Mastered) / float64(stats.TotalCards) * 100
	}
	return stats, nil
}

func (r *FlashcardRepo) Delete(ctx context.Context, studentID, cardID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM flashcards WHERE id = $1 AND student_id = $2", cardID, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanFlashcard(row pgx.Row) (*models.Flashcard, error) {
	c := &models.Flashcard{}
	err := row.Scan(
		&c.ID, &c.StudentID, &c.SourceAnswerSheetID, &c.Subject, &c.Question, &c.Answer, &c.Explanation,
		&c.Tags, &c.Level, &c.NextReviewAt, &c.LastReviewedAt, &c.Version, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

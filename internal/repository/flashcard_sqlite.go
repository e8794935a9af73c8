package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gapcards-backend/internal/models"
)

// sqliteTimeLayout is fixed width so that text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteFlashcardRepo is the flashcard store used by srsctl and local runs.
type SQLiteFlashcardRepo struct {
	db *sql.DB
}

// NewSQLiteFlashcardRepo opens or creates a SQLite database at the given path.
func NewSQLiteFlashcardRepo(dbPath string) (*SQLiteFlashcardRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps writers serialized and transactions isolated.
	db.SetMaxOpenConns(1)

	r := &SQLiteFlashcardRepo{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteFlashcardRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteFlashcardRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Gaps returns the answer-sheet reader backed by the same database.
func (r *SQLiteFlashcardRepo) Gaps() *SQLiteGapRepo {
	return &SQLiteGapRepo{db: r.db}
}

func (r *SQLiteFlashcardRepo) Students() *SQLiteStudentRepo {
	return &SQLiteStudentRepo{db: r.db}
}

func (r *SQLiteFlashcardRepo) Jobs() *SQLiteJobRepo {
	return &SQLiteJobRepo{db: r.db}
}

func (r *SQLiteFlashcardRepo) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS flashcards (
		id                     TEXT PRIMARY KEY,
		student_id             TEXT NOT NULL,
		source_answer_sheet_id TEXT,
		subject                TEXT NOT NULL,
		question               TEXT NOT NULL CHECK (length(trim(question)) > 0),
		answer                 TEXT NOT NULL CHECK (length(trim(answer)) > 0),
		explanation            TEXT NOT NULL CHECK (length(trim(explanation)) > 0),
		tags                   TEXT NOT NULL DEFAULT '[]',
		level                  INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
		next_review_at         TEXT NOT NULL,
		last_reviewed_at       TEXT,
		version                INTEGER NOT NULL DEFAULT 1,
		created_at             TEXT NOT NULL,
		CHECK (last_reviewed_at IS NULL OR next_review_at >= last_reviewed_at)
	);
	CREATE INDEX IF NOT EXISTS idx_flashcards_due ON flashcards(student_id, next_review_at, level);
	CREATE INDEX IF NOT EXISTS idx_flashcards_source ON flashcards(source_answer_sheet_id);

	CREATE TABLE IF NOT EXISTS answer_sheets (
		id         TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		exam_name  TEXT NOT NULL DEFAULT '',
		subject    TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS question_evaluations (
		answer_sheet_id TEXT NOT NULL REFERENCES answer_sheets(id) ON DELETE CASCADE,
		question_num    INTEGER NOT NULL,
		extracted_text  TEXT NOT NULL DEFAULT '',
		gaps            TEXT,
		strengths       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (answer_sheet_id, question_num)
	);

	CREATE TABLE IF NOT EXISTS students (
		id      TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS jobs (
		id            TEXT PRIMARY KEY,
		student_id    TEXT NOT NULL,
		type          TEXT NOT NULL,
		reference_id  TEXT NOT NULL,
		config_json   TEXT NOT NULL DEFAULT '{}',
		status        TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		created_at    TEXT NOT NULL,
		completed_at  TEXT
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteFlashcardRepo) CreateBatch(ctx context.Context, studentID uuid.UUID, sourceID *uuid.UUID, subject string, cards []models.CandidateCard, now time.Time) (int, error) {
	if len(cards) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin flashcard batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO flashcards (id, student_id, source_answer_sheet_id, subject, question, answer, explanation, tags, level, next_review_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare flashcard insert: %w", err)
	}
	defer stmt.Close()

	ts := formatSQLiteTime(now)
	for i, c := range cards {
		tags, err := encodeTags(c.Tags)
		if err != nil {
			return 0, err
		}
		_, err = stmt.ExecContext(ctx,
			uuid.New().String(), studentID.String(), nullableUUID(sourceID), subject,
			c.Question, c.Answer, c.Explanation, tags, ts, ts,
		)
		if err != nil {
			return 0, fmt.Errorf("insert flashcard %d of %d: %w", i+1, len(cards), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit flashcard batch: %w", err)
	}
	return len(cards), nil
}

func (r *SQLiteFlashcardRepo) Create(ctx context.Context, c *models.Flashcard) error {
	c.ID = uuid.New()
	c.Version = 1
	c.CreatedAt = c.NextReviewAt

	tags, err := encodeTags(c.Tags)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO flashcards (id, student_id, source_answer_sheet_id, subject, question, answer, explanation, tags, level, next_review_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.StudentID.String(), nullableUUID(c.SourceAnswerSheetID), c.Subject,
		c.Question, c.Answer, c.Explanation, tags, c.Level,
		formatSQLiteTime(c.NextReviewAt), formatSQLiteTime(c.CreatedAt),
	)
	return err
}

func (r *SQLiteFlashcardRepo) Get(ctx context.Context, studentID, cardID uuid.UUID) (*models.Flashcard, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+flashcardColumns+` FROM flashcards WHERE id = ? AND student_id = ?`,
		cardID.String(), studentID.String(),
	)

	c, err := scanSQLiteFlashcard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *SQLiteFlashcardRepo) UpdateSchedule(ctx context.Context, studentID, cardID uuid.UUID, u models.ScheduleUpdate) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE flashcards SET level = ?, next_review_at = ?, last_reviewed_at = ?, version = version + 1
		 WHERE id = ? AND student_id = ? AND version = ?`,
		u.Level, formatSQLiteTime(u.NextReviewAt), formatSQLiteTime(u.ReviewedAt),
		cardID.String(), studentID.String(), u.ExpectedVersion,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM flashcards WHERE id = ? AND student_id = ?)",
		cardID.String(), studentID.String(),
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleVersion
}

func (r *SQLiteFlashcardRepo) DueBefore(ctx context.Context, studentID uuid.UUID, ts time.Time, limit int) ([]models.Flashcard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+flashcardColumns+` FROM flashcards
		 WHERE student_id = ? AND next_review_at <= ?
		 ORDER BY next_review_at ASC, level ASC, id ASC
		 LIMIT ?`,
		studentID.String(), formatSQLiteTime(ts), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []models.Flashcard{}
	for rows.Next() {
		c, err := scanSQLiteFlashcard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

func (r *SQLiteFlashcardRepo) Stats(ctx context.Context, studentID uuid.UUID, now time.Time) (*models.FlashcardStats, error) {
	stats := &models.FlashcardStats{}

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN next_review_at <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN level >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN level > 1 AND level < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN level = 1 AND last_reviewed_at IS NULL THEN 1 ELSE 0 END), 0)
		 FROM flashcards WHERE student_id = ?`,
		formatSQLiteTime(now), models.MasteredLevel, models.MasteredLevel, studentID.String(),
	).Scan(&stats.TotalCards, &stats.Due, &stats.Mastered, &stats.Learning, &stats.New)
	if err != nil {
		return nil, err
	}

	if stats.TotalCards > 0 {
		stats.MasteryRate = float64(stats.Mastered) / float64(stats.TotalCards) * 100
	}
	return stats, nil
}

func (r *SQLiteFlashcardRepo) Delete(ctx context.Context, studentID, cardID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM flashcards WHERE id = ? AND student_id = ?", cardID.String(), studentID.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteFlashcard(row rowScanner) (*models.Flashcard, error) {
	var (
		c                           models.Flashcard
		id, studentID               string
		sourceID, lastReviewed      sql.NullString
		tags, nextReview, createdAt string
	)

	err := row.Scan(
		&id, &studentID, &sourceID, &c.Subject, &c.Question, &c.Answer, &c.Explanation,
		&tags, &c.Level, &nextReview, &lastReviewed, &c.Version, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse card id: %w", err)
	}
	if c.StudentID, err = uuid.Parse(studentID); err != nil {
		return nil, fmt.Errorf("parse student id: %w", err)
	}
	if sourceID.Valid {
		sid, err := uuid.Parse(sourceID.String)
		if err != nil {
			return nil, fmt.Errorf("parse source id: %w", err)
		}
		c.SourceAnswerSheetID = &sid
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if c.NextReviewAt, err = time.Parse(sqliteTimeLayout, nextReview); err != nil {
		return nil, fmt.Errorf("parse next_review_at: %w", err)
	}
	if lastReviewed.Valid {
		t, err := time.Parse(sqliteTimeLayout, lastReviewed.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_reviewed_at: %w", err)
		}
		c.LastReviewedAt = &t
	}
	if c.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &c, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func encodeTags(tags []string) (string, error) {
	b, err := json.Marshal(nonNilTags(tags))
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

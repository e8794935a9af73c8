package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type SQLiteStudentRepo struct {
	db *sql.DB
}

func (r *SQLiteStudentRepo) StudentIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var id string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM students WHERE user_id = ?", userID.String()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(id)
}

// Enroll returns the student profile for userID, creating it on first use.
func (r *SQLiteStudentRepo) Enroll(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	id, err := r.StudentIDForUser(ctx, userID)
	if !errors.Is(err, ErrNotFound) {
		return id, err
	}

	id = uuid.New()
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO students (id, user_id) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING",
		id.String(), userID.String(),
	); err != nil {
		return uuid.Nil, err
	}
	return r.StudentIDForUser(ctx, userID)
}

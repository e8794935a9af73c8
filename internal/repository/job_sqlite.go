package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gapcards-backend/internal/models"
)

type SQLiteJobRepo struct {
	db *sql.DB
}

func (r *SQLiteJobRepo) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = "pending"
	j.CreatedAt = time.Now().UTC()

	config := string(j.ConfigJSON)
	if config == "" {
		config = "{}"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, student_id, type, reference_id, config_json, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), j.StudentID.String(), j.Type, j.ReferenceID.String(), config, j.Status,
		formatSQLiteTime(j.CreatedAt),
	)
	return err
}

func (r *SQLiteJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var (
		j                       models.Job
		jobID, studentID, refID string
		config, createdAt       string
		errMsg, completedAt     sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, student_id, type, reference_id, config_json, status, error_message, created_at, completed_at
		 FROM jobs WHERE id = ?`,
		id.String(),
	).Scan(&jobID, &studentID, &j.Type, &refID, &config, &j.Status, &errMsg, &createdAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if j.ID, err = uuid.Parse(jobID); err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	if j.StudentID, err = uuid.Parse(studentID); err != nil {
		return nil, fmt.Errorf("parse student id: %w", err)
	}
	if j.ReferenceID, err = uuid.Parse(refID); err != nil {
		return nil, fmt.Errorf("parse reference id: %w", err)
	}
	j.ConfigJSON = []byte(config)
	if errMsg.Valid {
		j.ErrorMessage = &errMsg.String
	}
	if j.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if completedAt.Valid {
		t, err := time.Parse(sqliteTimeLayout, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		j.CompletedAt = &t
	}
	return &j, nil
}

func (r *SQLiteJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if status == "completed" || status == "failed" {
		_, err := r.db.ExecContext(ctx, "UPDATE jobs SET status = ?, completed_at = ? WHERE id = ?",
			status, formatSQLiteTime(time.Now()), id.String())
		return err
	}
	_, err := r.db.ExecContext(ctx, "UPDATE jobs SET status = ? WHERE id = ?", status, id.String())
	return err
}

func (r *SQLiteJobRepo) UpdateError(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE jobs SET error_message = ? WHERE id = ?", errMsg, id.String())
	return err
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"gapcards-backend/internal/models"
)

const FlashcardQueue = "queue:flashcard-generation"

// JobStore persists background job records.
type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string) error
}

// JobQueue records generation jobs and pushes them onto the redis list the
// worker pool consumes.
type JobQueue struct {
	jobs  JobStore
	redis *redis.Client
}

func NewJobQueue(jobs JobStore, redisClient *redis.Client) *JobQueue {
	return &JobQueue{jobs: jobs, redis: redisClient}
}

// EnqueueGeneration creates a pending flashcard-generation job for sheetID.
func (q *JobQueue) EnqueueGeneration(ctx context.Context, studentID, sheetID uuid.UUID) (*models.Job, error) {
	job := &models.Job{
		StudentID:   studentID,
		Type:        models.JobTypeFlashcardGeneration,
		ReferenceID: sheetID,
	}
	configBytes, _ := json.Marshal(map[string]string{"sheet_id": sheetID.String()})
	job.ConfigJSON = configBytes

	if err := q.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if q.redis == nil {
		_ = q.jobs.UpdateStatus(ctx, job.ID, "failed")
		return nil, errors.New("flashcard queue is unavailable")
	}

	jobBytes, _ := json.Marshal(job)
	if err := q.redis.LPush(ctx, FlashcardQueue, string(jobBytes)).Err(); err != nil {
		log.Printf("failed to enqueue flashcard-generation job %s: %v", job.ID, err)
		_ = q.jobs.UpdateStatus(ctx, job.ID, "failed")
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// Get returns a job owned by studentID.
func (q *JobQueue) Get(ctx context.Context, studentID, jobID uuid.UUID) (*models.Job, error) {
	job, err := q.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.StudentID != studentID {
		return nil, ErrNotFound
	}
	return job, nil
}
